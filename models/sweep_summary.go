package models

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// SweepSummary describes the outcome of one status sweep: what was
// checked, how many box requests failed, and any errors that stopped
// part of the sweep (such as a Pln whose boxes could not be loaded).
// Individual box failures are recorded in the status records, and are
// only counted here.
type SweepSummary struct {
	// Name identifies the sweep in log messages, e.g. "deposit status".
	Name string

	// DryRun is true if results were computed but not saved.
	DryRun bool

	// StartedAt describes when the sweep started. If StartedAt.IsZero(),
	// the sweep has not started.
	StartedAt time.Time

	// FinishedAt describes when the sweep completed. Check Succeeded()
	// to see whether it completed without errors.
	FinishedAt time.Time

	// PlnsChecked is the number of networks the sweep visited.
	PlnsChecked int

	// UnitsChecked is the number of AUs, deposits or boxes checked.
	UnitsChecked int

	// UnitsSaved is the number of status records persisted.
	UnitsSaved int

	// BoxErrors is the number of individual box requests that failed.
	BoxErrors int

	// Errors is a list of errors that prevented part of the sweep
	// from running.
	Errors []string

	mutex sync.Mutex
}

func NewSweepSummary(name string, dryRun bool) *SweepSummary {
	return &SweepSummary{
		Name:   name,
		DryRun: dryRun,
		Errors: make([]string, 0),
	}
}

func (summary *SweepSummary) Start() {
	summary.StartedAt = time.Now().UTC()
}

func (summary *SweepSummary) Started() bool {
	return !summary.StartedAt.IsZero()
}

func (summary *SweepSummary) Finish() {
	summary.FinishedAt = time.Now().UTC()
}

func (summary *SweepSummary) Finished() bool {
	return !summary.FinishedAt.IsZero()
}

func (summary *SweepSummary) RunTime() time.Duration {
	if !summary.Started() {
		return time.Duration(0)
	}
	startTime := summary.StartedAt
	endTime := summary.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(startTime)
}

func (summary *SweepSummary) Succeeded() bool {
	return summary.Finished() && len(summary.Errors) == 0
}

// AddBoxErrors adds count to the number of failed box requests.
// It's safe to call from multiple goroutines.
func (summary *SweepSummary) AddBoxErrors(count int) {
	summary.mutex.Lock()
	summary.BoxErrors += count
	summary.mutex.Unlock()
}

func (summary *SweepSummary) AddError(format string, a ...interface{}) {
	summary.mutex.Lock()
	summary.Errors = append(summary.Errors, fmt.Sprintf(format, a...))
	summary.mutex.Unlock()
}

func (summary *SweepSummary) HasErrors() bool {
	return len(summary.Errors) > 0
}

func (summary *SweepSummary) AllErrorsAsString() string {
	if len(summary.Errors) > 0 {
		return strings.Join(summary.Errors, "\n")
	}
	return ""
}

// String returns a one-line description of the sweep, suitable
// for the log.
func (summary *SweepSummary) String() string {
	dryRun := ""
	if summary.DryRun {
		dryRun = " (dry run)"
	}
	return fmt.Sprintf("%s%s: %d plns, %d checked, %d saved, %d box errors, %d errors in %s",
		summary.Name, dryRun, summary.PlnsChecked, summary.UnitsChecked,
		summary.UnitsSaved, summary.BoxErrors, len(summary.Errors),
		summary.RunTime().Round(time.Millisecond))
}
