package models

import (
	"time"

	"github.com/satori/go.uuid"
	"github.com/sfu-dhil/lockssomatic/constants"
)

// DepositStatus is a snapshot of a deposit's hash agreement across the
// active boxes of its Pln. Status maps box host:port to the hash the
// box reported, or to one of the sentinels constants.HashFailed and
// constants.HashUnknown. Errors holds the reason for each failure.
type DepositStatus struct {
	Id        string            `json:"id"`
	DepositId int64             `json:"deposit_id"`
	Created   time.Time         `json:"created"`
	Agreement float64           `json:"agreement"`
	Status    map[string]string `json:"status"`
	Errors    map[string]string `json:"errors"`
}

// NewDepositStatus returns an empty status record for deposit.
func NewDepositStatus(deposit *Deposit) *DepositStatus {
	return &DepositStatus{
		Id:        uuid.NewV4().String(),
		DepositId: deposit.Id,
		Created:   time.Now().UTC(),
		Status:    make(map[string]string),
		Errors:    make(map[string]string),
	}
}

// ComputeAgreement sets and returns the fraction of boxCount boxes
// whose reported hash matches checksum. Boxes that failed count
// against agreement: the denominator is always the number of active
// boxes, not the number that answered. With no boxes, agreement is 0.
func (status *DepositStatus) ComputeAgreement(checksum string, boxCount int) float64 {
	status.Agreement = Agreement(checksum, status.Status, boxCount)
	return status.Agreement
}

// Apply copies the result of this check onto the deposit's cached
// Agreement and Checked fields.
func (status *DepositStatus) Apply(deposit *Deposit) {
	agreement := status.Agreement
	checked := status.Created
	deposit.Agreement = &agreement
	deposit.Checked = &checked
}

// HasErrors returns true if any box failed to hash the deposit.
func (status *DepositStatus) HasErrors() bool {
	return len(status.Errors) > 0
}

// Agreement returns the fraction of boxCount boxes whose entry in
// hashes matches checksum, ignoring case. Sentinel entries never match.
func Agreement(checksum string, hashes map[string]string, boxCount int) float64 {
	if boxCount <= 0 {
		return 0.0
	}
	matches := 0
	for _, hash := range hashes {
		if hash == constants.HashFailed || hash == constants.HashUnknown {
			continue
		}
		if ChecksumsMatch(checksum, hash) {
			matches++
		}
	}
	return float64(matches) / float64(boxCount)
}
