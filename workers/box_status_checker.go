package workers

import (
	stdcontext "context"
	"fmt"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
)

// BoxStatusChecker asks every active box for its repository space
// usage, saves a BoxStatus for each, and tells the box's contacts when
// the box is unreachable or running out of space.
type BoxStatusChecker struct {
	Context  *context.Context
	Options  SweepOptions
	Summary  *models.SweepSummary
	Notifier network.BoxNotifier
}

// NewBoxStatusChecker returns a checker that sends notifications
// through the context's notifier. Dry runs only log them.
func NewBoxStatusChecker(_context *context.Context, options SweepOptions) *BoxStatusChecker {
	notifier := _context.Notifier
	if options.DryRun || notifier == nil {
		notifier = network.NewLogNotifier(_context.MessageLog)
	}
	return &BoxStatusChecker{
		Context:  _context,
		Options:  options,
		Summary:  models.NewSweepSummary("box status", options.DryRun),
		Notifier: notifier,
	}
}

// Run checks the boxes of the selected networks, one box at a time.
func (checker *BoxStatusChecker) Run(ctx stdcontext.Context) (*models.SweepSummary, error) {
	summary := checker.Summary
	summary.Start()
	defer finishSweep(checker.Context, summary)
	plns, err := findPlns(checker.Context, checker.Options.PlnIds)
	if err != nil {
		summary.AddError("%v", err)
		return summary, err
	}
	for _, pln := range plns {
		if ctx.Err() != nil {
			break
		}
		boxes, err := checker.Context.Store.FindActiveBoxes(pln)
		if err != nil {
			summary.AddError("Cannot load boxes for pln %d: %v", pln.Id, err)
			continue
		}
		summary.PlnsChecked++
		for _, box := range boxes {
			status := checker.CheckBox(ctx, box)
			if ctx.Err() != nil {
				checker.Context.MessageLog.Warningf("Abandoned box %s: %v", box.HostPort(), ctx.Err())
				break
			}
			checker.record(box, status)
			checker.notify(box, status)
		}
	}
	return summary, ctx.Err()
}

// CheckBox returns the box's status. A box that can't be reached, or
// isn't ready, gets a status with Success false and the reason in
// Errors.
func (checker *BoxStatusChecker) CheckBox(ctx stdcontext.Context, box *models.Box) *models.BoxStatus {
	status := models.NewBoxStatus(box)
	spaces, err := checker.Context.Lockss.BoxStatus(ctx, box)
	if err != nil {
		message := boxErrorMessage(checker.Context, "Box status", box, err)
		if lockssomatic.CategoryOf(err) == lockssomatic.ErrNotReady {
			message = "Daemon not ready: " + message
		}
		status.Success = false
		status.Errors = message
		return status
	}
	status.Success = true
	status.Data = spaces
	return status
}

func (checker *BoxStatusChecker) record(box *models.Box, status *models.BoxStatus) {
	summary := checker.Summary
	summary.UnitsChecked++
	if !status.Success {
		summary.AddBoxErrors(1)
	}
	checker.Context.LogJson(fmt.Sprintf("box %s", box.HostPort()), status)
	if checker.Options.DryRun {
		return
	}
	if err := checker.Context.Store.SaveBoxStatus(status); err != nil {
		summary.AddError("Cannot save status of box %s: %v", box.HostPort(), err)
		checker.Context.IncrementFailed()
		return
	}
	summary.UnitsSaved++
	checker.Context.IncrementSucceeded()
}

func (checker *BoxStatusChecker) notify(box *models.Box, status *models.BoxStatus) {
	if !box.SendNotifications {
		return
	}
	var err error
	if !status.Success {
		err = checker.Notifier.Unreachable(box, status)
	} else if full := status.SpacesOver(checker.Context.Config.BoxFullThreshold); len(full) > 0 {
		err = checker.Notifier.FreeSpaceWarning(box, status, full)
	}
	if err != nil {
		checker.Summary.AddError("Cannot notify contacts of box %s: %v", box.HostPort(), err)
	}
}
