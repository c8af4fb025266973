package models

// AuSummary is one entry in the list returned by
// DaemonStatusService.getAuIds.
type AuSummary struct {
	Id   string `xml:"id" json:"id"`
	Name string `xml:"name" json:"name"`
}

// DaemonVersion is part of the platform configuration.
type DaemonVersion struct {
	BuildVersion int    `xml:"buildVersion" json:"build_version"`
	FullVersion  string `xml:"fullVersion" json:"full_version"`
	MajorVersion int    `xml:"majorVersion" json:"major_version"`
	MinorVersion int    `xml:"minorVersion" json:"minor_version"`
}

// JavaVersion is part of the platform configuration.
type JavaVersion struct {
	RuntimeName          string `xml:"runtimeName" json:"runtime_name"`
	RuntimeVersion       string `xml:"runtimeVersion" json:"runtime_version"`
	SpecificationVersion string `xml:"specificationVersion" json:"specification_version"`
	Version              string `xml:"version" json:"version"`
}

// PlatformStatus is the daemon's platform configuration, as returned
// by DaemonStatusService.getPlatformConfiguration.
type PlatformStatus struct {
	HostName      string        `xml:"hostName" json:"host_name"`
	IpAddress     string        `xml:"ipAddress" json:"ip_address"`
	V3Identity    string        `xml:"v3Identity" json:"v3_identity"`
	AdminEmail    string        `xml:"adminEmail" json:"admin_email"`
	Uptime        int64         `xml:"uptime" json:"uptime"`
	DaemonVersion DaemonVersion `xml:"daemonVersion" json:"daemon_version"`
	JavaVersion   JavaVersion   `xml:"javaVersion" json:"java_version"`
	Groups        []string      `xml:"groups" json:"groups"`
}

// PollStatus describes one poll a box is calling, from
// DaemonStatusService.queryPolls.
type PollStatus struct {
	AuId              string  `xml:"auId" json:"au_id"`
	AuName            string  `xml:"auName" json:"au_name"`
	PollKey           string  `xml:"pollKey" json:"poll_key"`
	PollStatus        string  `xml:"pollStatus" json:"poll_status"`
	PollVariant       string  `xml:"pollVariant" json:"poll_variant"`
	StartTime         int64   `xml:"startTime" json:"start_time"`
	Deadline          int64   `xml:"deadline" json:"deadline"`
	EndTime           int64   `xml:"endTime" json:"end_time"`
	AgreedUrlCount    int     `xml:"agreedUrlCount" json:"agreed_url_count"`
	DisagreedUrlCount int     `xml:"disagreedUrlCount" json:"disagreed_url_count"`
	NoQuorumUrlCount  int     `xml:"noQuorumUrlCount" json:"no_quorum_url_count"`
	ParticipantCount  int     `xml:"participantCount" json:"participant_count"`
	PercentAgreement  float64 `xml:"percentAgreement" json:"percent_agreement"`
	ErrorDetail       string  `xml:"errorDetail" json:"error_detail,omitempty"`
}

// VoteStatus describes one poll a box is voting in, from
// DaemonStatusService.queryVotes.
type VoteStatus struct {
	AuId          string  `xml:"auId" json:"au_id"`
	AuName        string  `xml:"auName" json:"au_name"`
	CallerId      string  `xml:"callerId" json:"caller_id"`
	VoteKey       string  `xml:"voteKey" json:"vote_key"`
	Status        string  `xml:"status" json:"status"`
	StartTime     int64   `xml:"startTime" json:"start_time"`
	Deadline      int64   `xml:"deadline" json:"deadline"`
	AgreementHint float64 `xml:"agreementHint" json:"agreement_hint"`
	ErrorDetail   string  `xml:"errorDetail" json:"error_detail,omitempty"`
}

// HasherResult is the decoded response of HasherService.hash.
// BlockFile holds the V3 block hash listing; when the daemon declines
// the request, ErrorMessage says why.
type HasherResult struct {
	BlockFile     string `xml:"blockFileDataHandler" json:"block_file"`
	BlockFileName string `xml:"blockFileName" json:"block_file_name"`
	BytesHashed   int64  `xml:"bytesHashed" json:"bytes_hashed"`
	ElapsedTime   int64  `xml:"elapsedTime" json:"elapsed_time"`
	ErrorMessage  string `xml:"errorMessage" json:"error_message,omitempty"`
	FilesHashed   int    `xml:"filesHashed" json:"files_hashed"`
	HashResult    string `xml:"hashResult" json:"hash_result,omitempty"`
	RequestId     string `xml:"requestId" json:"request_id"`
	Status        string `xml:"status" json:"status"`
}

// HasherParams is the request body of HasherService.hash.
type HasherParams struct {
	AuId               string `xml:"auId"`
	Url                string `xml:"url"`
	HashType           string `xml:"hashType"`
	Algorithm          string `xml:"algorithm"`
	RecordFilterStream bool   `xml:"recordFilterStream"`
}
