package models

import (
	"time"

	"github.com/satori/go.uuid"
)

// AuStatusResult is the daemon's report on one AU, as returned by
// DaemonStatusService.getAuStatus.
type AuStatusResult struct {
	AccessType             string  `xml:"accessType" json:"access_type,omitempty"`
	AvailableFromPublisher bool    `xml:"availableFromPublisher" json:"available_from_publisher"`
	ContentSize            int64   `xml:"contentSize" json:"content_size"`
	CrawlPool              string  `xml:"crawlPool" json:"crawl_pool,omitempty"`
	CreationTime           int64   `xml:"creationTime" json:"creation_time"`
	CurrentlyCrawling      bool    `xml:"currentlyCrawling" json:"currently_crawling"`
	CurrentlyPolling       bool    `xml:"currentlyPolling" json:"currently_polling"`
	DiskUsage              int64   `xml:"diskUsage" json:"disk_usage"`
	JournalTitle           string  `xml:"journalTitle" json:"journal_title,omitempty"`
	LastCompletedCrawl     int64   `xml:"lastCompletedCrawl" json:"last_completed_crawl"`
	LastCompletedPoll      int64   `xml:"lastCompletedPoll" json:"last_completed_poll"`
	LastCrawl              int64   `xml:"lastCrawl" json:"last_crawl"`
	LastCrawlResult        string  `xml:"lastCrawlResult" json:"last_crawl_result,omitempty"`
	LastPoll               int64   `xml:"lastPoll" json:"last_poll"`
	LastPollResult         string  `xml:"lastPollResult" json:"last_poll_result,omitempty"`
	PluginName             string  `xml:"pluginName" json:"plugin_name,omitempty"`
	Publisher              string  `xml:"publisher" json:"publisher,omitempty"`
	RecentPollAgreement    float64 `xml:"recentPollAgreement" json:"recent_poll_agreement"`
	Repository             string  `xml:"repository" json:"repository,omitempty"`
	Status                 string  `xml:"status" json:"status,omitempty"`
	SubstanceState         string  `xml:"substanceState" json:"substance_state,omitempty"`
	Volume                 string  `xml:"volume" json:"volume,omitempty"`
}

// AuStatus is a snapshot of one AU's state on every active box in its
// Pln. Boxes that answered are in Status; boxes that failed are in
// Errors. Both maps are keyed by box host:port. AuStatus records are
// never changed once saved.
type AuStatus struct {
	Id      string                     `json:"id"`
	AuId    int64                      `json:"au_id"`
	Created time.Time                  `json:"created"`
	Status  map[string]*AuStatusResult `json:"status"`
	Errors  map[string]string          `json:"errors"`
}

// NewAuStatus returns an empty status record for au.
func NewAuStatus(au *Au) *AuStatus {
	return &AuStatus{
		Id:      uuid.NewV4().String(),
		AuId:    au.Id,
		Created: time.Now().UTC(),
		Status:  make(map[string]*AuStatusResult),
		Errors:  make(map[string]string),
	}
}

// HasErrors returns true if any box failed to report.
func (status *AuStatus) HasErrors() bool {
	return len(status.Errors) > 0
}
