package workers

import (
	stdcontext "context"
	"fmt"
	"sync"

	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
)

// AUStatusChecker asks every active box in each network for its
// status report on each of the network's AUs, and saves one AuStatus
// per AU with the reports of the boxes that answered and the errors
// of the ones that didn't.
type AUStatusChecker struct {
	Context *context.Context
	Options SweepOptions
	Summary *models.SweepSummary
}

func NewAUStatusChecker(_context *context.Context, options SweepOptions) *AUStatusChecker {
	return &AUStatusChecker{
		Context: _context,
		Options: options,
		Summary: models.NewSweepSummary("AU status", options.DryRun),
	}
}

// Run checks every AU in the selected networks, one AU at a time.
// It returns an error only if it can't load the networks, or if ctx
// is cancelled, in which case the AUs checked so far stay saved and
// the AU in progress is dropped.
func (checker *AUStatusChecker) Run(ctx stdcontext.Context) (*models.SweepSummary, error) {
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
		checker.checkPln(ctx, pln)
	}
	return summary, ctx.Err()
}

func (checker *AUStatusChecker) checkPln(ctx stdcontext.Context, pln *models.Pln) {
	summary := checker.Summary
	boxes, err := checker.Context.Store.FindActiveBoxes(pln)
	if err != nil {
		summary.AddError("Cannot load boxes for pln %d: %v", pln.Id, err)
		return
	}
	aus, err := checker.Context.Store.FindAus(pln)
	if err != nil {
		summary.AddError("Cannot load AUs for pln %d: %v", pln.Id, err)
		return
	}
	summary.PlnsChecked++
	if len(boxes) == 0 {
		summary.AddError("Pln %d (%s) has no active boxes", pln.Id, pln.Name)
	}
	checker.Context.MessageLog.Infof("Checking %d AUs on %d boxes in pln %d (%s)",
		len(aus), len(boxes), pln.Id, pln.Name)
	for _, au := range aus {
		if ctx.Err() != nil {
			return
		}
		status, err := checker.CheckAu(ctx, boxes, au)
		if err != nil {
			checker.Context.MessageLog.Warningf("Abandoned AU %d: %v", au.Id, err)
			return
		}
		checker.record(au, status)
	}
}

// CheckAu asks each box for its report on au, and returns the merged
// status. Box failures are recorded in the status, not returned. The
// only error is ctx's, if it was cancelled before every box answered.
func (checker *AUStatusChecker) CheckAu(ctx stdcontext.Context, boxes []*models.Box, au *models.Au) (*models.AuStatus, error) {
	status := models.NewAuStatus(au)
	var mutex sync.Mutex
	err := forEachBox(ctx, boxes, checker.Context.Config.BoxConcurrency, func(ctx stdcontext.Context, box *models.Box) {
		result, err := checker.Context.Lockss.AuStatus(ctx, box, au)
		mutex.Lock()
		defer mutex.Unlock()
		if err != nil {
			status.Errors[box.HostPort()] = boxErrorMessage(checker.Context,
				fmt.Sprintf("AU status of %d", au.Id), box, err)
			return
		}
		status.Status[box.HostPort()] = result
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

func (checker *AUStatusChecker) record(au *models.Au, status *models.AuStatus) {
	summary := checker.Summary
	summary.UnitsChecked++
	summary.AddBoxErrors(len(status.Errors))
	checker.Context.LogJson(fmt.Sprintf("au %d", au.Id), status)
	if checker.Options.DryRun {
		return
	}
	if err := checker.Context.Store.SaveAuStatus(status); err != nil {
		summary.AddError("Cannot save status of AU %d: %v", au.Id, err)
		checker.Context.IncrementFailed()
		return
	}
	summary.UnitsSaved++
	checker.Context.IncrementSucceeded()
}
