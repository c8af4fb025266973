package models

import (
	"time"

	"github.com/satori/go.uuid"
)

// RepositorySpace describes one repository disk on a box, as returned
// by DaemonStatusService.queryRepositorySpaces.
type RepositorySpace struct {
	RepositorySpaceId string  `xml:"repositorySpaceId" json:"repository_space_id"`
	Active            int     `xml:"active" json:"active"`
	Free              int64   `xml:"free" json:"free"`
	Used              int64   `xml:"used" json:"used"`
	Size              int64   `xml:"size" json:"size"`
	PercentageFull    float64 `xml:"percentageFull" json:"percentage_full"`
	UnusedAu          int     `xml:"unusedAu" json:"unused_au"`
}

// BoxStatus is a snapshot of a box's reachability and disk usage.
type BoxStatus struct {
	Id      string             `json:"id"`
	BoxId   int64              `json:"box_id"`
	Created time.Time          `json:"created"`
	Success bool               `json:"success"`
	Errors  string             `json:"errors"`
	Data    []*RepositorySpace `json:"data"`
}

// NewBoxStatus returns an empty status record for box.
func NewBoxStatus(box *Box) *BoxStatus {
	return &BoxStatus{
		Id:      uuid.NewV4().String(),
		BoxId:   box.Id,
		Created: time.Now().UTC(),
		Data:    make([]*RepositorySpace, 0),
	}
}

// SpacesOver returns the repository spaces whose fill percentage is at
// or above threshold. PercentageFull is reported as a fraction (0.85)
// by some daemon versions and as a percentage (85) by others, so we
// normalize to a percentage.
func (status *BoxStatus) SpacesOver(threshold float64) []*RepositorySpace {
	full := make([]*RepositorySpace, 0)
	for _, space := range status.Data {
		if space.FullPercent() >= threshold {
			full = append(full, space)
		}
	}
	return full
}

// FullPercent returns how full the space is, from 0 to 100. Used and
// Size are exact, so they win when the daemon sends them.
func (space *RepositorySpace) FullPercent() float64 {
	if space.Size > 0 {
		return float64(space.Used) / float64(space.Size) * 100.0
	}
	if space.PercentageFull <= 1.0 {
		return space.PercentageFull * 100.0
	}
	return space.PercentageFull
}
