package models

import (
	"strings"
	"time"
)

// Deposit is one preserved content item.
type Deposit struct {
	Id                int64  `json:"id"`
	Uuid              string `json:"uuid"`
	AuId              int64  `json:"au_id"`
	ContentProviderId int64  `json:"content_provider_id"`
	Title             string `json:"title"`
	Url               string `json:"url"`
	ChecksumType      string `json:"checksum_type"`
	ChecksumValue     string `json:"checksum_value"`
	Size              int64  `json:"size"`

	// Agreement is the fraction of active boxes whose hash of this
	// deposit matched ChecksumValue at the last check. It's nil until
	// the deposit has been checked.
	Agreement *float64 `json:"agreement"`

	// Checked is when Agreement was last computed.
	Checked *time.Time `json:"checked"`
}

// HasFullAgreement returns true if every active box had a matching copy
// of this deposit at the last check.
func (deposit *Deposit) HasFullAgreement() bool {
	return deposit.Agreement != nil && *deposit.Agreement == 1.0
}

// ChecksumMatches returns true if digest matches this deposit's checksum.
// Daemons are not consistent about the case of hex digests, so the
// comparison ignores case.
func (deposit *Deposit) ChecksumMatches(digest string) bool {
	return ChecksumsMatch(deposit.ChecksumValue, digest)
}

// NeedsCheck returns true if the deposit should be included in a
// throttled agreement sweep at time now: it has not reached full
// agreement, and was not checked within the recheck interval.
func (deposit *Deposit) NeedsCheck(now time.Time, recheckInterval time.Duration) bool {
	if deposit.Agreement != nil && *deposit.Agreement >= 1.0 {
		return false
	}
	if deposit.Checked != nil && !deposit.Checked.Before(now.Add(-recheckInterval)) {
		return false
	}
	return true
}

// ChecksumsMatch compares two hex digests without regard to case.
// Empty digests never match.
func ChecksumsMatch(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}
	return strings.ToUpper(strings.TrimSpace(expected)) == strings.ToUpper(strings.TrimSpace(actual))
}
