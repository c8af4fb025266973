package workers

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/util"
	"github.com/sfu-dhil/lockssomatic/util/storage"
)

// Deposits are loaded from the store this many at a time.
const DEPOSIT_PAGE_SIZE = 100

// DepositSweepOptions select the deposits a DepositStatusChecker
// checks.
type DepositSweepOptions struct {
	SweepOptions

	// Uuids limits the sweep to these deposits.
	Uuids []string

	// All checks deposits even if they have full agreement or were
	// checked recently.
	All bool

	// Limit is the most deposits to check in each network. Zero means
	// no limit.
	Limit int
}

// DepositStatusChecker asks every active box in each network to hash
// its copy of each deposit due for a check, and records how many of
// the hashes match the deposit's checksum. The agreement is the
// fraction of all active boxes that match, so a box that fails counts
// against agreement.
type DepositStatusChecker struct {
	Context *context.Context
	Options DepositSweepOptions
	Summary *models.SweepSummary

	// Now returns the time the sweep uses to decide which deposits
	// are due. Tests replace it.
	Now func() time.Time
}

func NewDepositStatusChecker(_context *context.Context, options DepositSweepOptions) *DepositStatusChecker {
	return &DepositStatusChecker{
		Context: _context,
		Options: options,
		Summary: models.NewSweepSummary("deposit status", options.DryRun),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Run checks the selected deposits, one at a time. It returns an
// error only if it can't load the networks, or if ctx is cancelled,
// in which case the deposits checked so far stay saved and the
// deposit in progress is dropped.
func (checker *DepositStatusChecker) Run(ctx stdcontext.Context) (*models.SweepSummary, error) {
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

func (checker *DepositStatusChecker) newQuery(pln *models.Pln) *storage.DepositQuery {
	query := storage.NewDepositQuery(checker.Context.Config.RecheckInterval())
	query.Now = checker.Now()
	query.PlnIds = []int64{pln.Id}
	query.Uuids = checker.Options.Uuids
	query.All = checker.Options.All
	return query
}

func (checker *DepositStatusChecker) checkPln(ctx stdcontext.Context, pln *models.Pln) {
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
		summary.AddError("Pln %d (%s) has no active boxes; agreement will be 0", pln.Id, pln.Name)
	}
	ausById := make(map[int64]*models.Au, len(aus))
	for _, au := range aus {
		ausById[au.Id] = au
	}

	query := checker.newQuery(pln)
	remaining := checker.Options.Limit
	for {
		if ctx.Err() != nil {
			return
		}
		query.Limit = DEPOSIT_PAGE_SIZE
		if checker.Options.Limit > 0 {
			if remaining <= 0 {
				return
			}
			query.Limit = util.Min(DEPOSIT_PAGE_SIZE, remaining)
		}
		deposits, err := checker.Context.Store.FindDepositsForCheck(query)
		if err != nil {
			summary.AddError("Cannot load deposits for pln %d: %v", pln.Id, err)
			return
		}
		for _, deposit := range deposits {
			if ctx.Err() != nil {
				return
			}
			query.After = deposit.Id
			remaining--
			au := ausById[deposit.AuId]
			if au == nil {
				summary.AddError("Deposit %s belongs to AU %d, which is not in pln %d",
					deposit.Uuid, deposit.AuId, pln.Id)
				continue
			}
			status, err := checker.CheckDeposit(ctx, boxes, au, deposit)
			if err != nil {
				checker.Context.MessageLog.Warningf("Abandoned deposit %s: %v", deposit.Uuid, err)
				return
			}
			checker.record(deposit, status)
		}
		if len(deposits) < query.Limit {
			return
		}
	}
}

// CheckDeposit asks each box to hash deposit and returns the status
// with the agreement computed. Boxes that fail are recorded with the
// HashFailed sentinel and an error; boxes that answer without a hash
// get HashUnknown. The only error is ctx's, if it was cancelled before
// every box answered.
func (checker *DepositStatusChecker) CheckDeposit(ctx stdcontext.Context, boxes []*models.Box, au *models.Au, deposit *models.Deposit) (*models.DepositStatus, error) {
	hashes := models.NewSynchronizedMap()
	errs := models.NewSynchronizedMap()
	err := forEachBox(ctx, boxes, checker.Context.Config.BoxConcurrency, func(ctx stdcontext.Context, box *models.Box) {
		hash, err := checker.Context.Lockss.Hash(ctx, box, au, deposit)
		if err != nil {
			hashes.Add(box.HostPort(), constants.HashFailed)
			errs.Add(box.HostPort(), boxErrorMessage(checker.Context,
				fmt.Sprintf("Hash of deposit %s", deposit.Uuid), box, err))
			return
		}
		if hash == "" {
			hashes.Add(box.HostPort(), constants.HashUnknown)
			return
		}
		hashes.Add(box.HostPort(), hash)
	})
	if err != nil {
		return nil, err
	}
	status := models.NewDepositStatus(deposit)
	status.Status = hashes.Copy()
	status.Errors = errs.Copy()
	status.ComputeAgreement(deposit.ChecksumValue, len(boxes))
	return status, nil
}

func (checker *DepositStatusChecker) record(deposit *models.Deposit, status *models.DepositStatus) {
	summary := checker.Summary
	summary.UnitsChecked++
	summary.AddBoxErrors(len(status.Errors))
	checker.Context.LogJson(fmt.Sprintf("deposit %s", deposit.Uuid), status)
	checker.Context.MessageLog.Infof("Deposit %s: agreement %.2f", deposit.Uuid, status.Agreement)
	if checker.Options.DryRun {
		return
	}
	status.Apply(deposit)
	if err := checker.Context.Store.SaveDepositStatus(status, deposit); err != nil {
		summary.AddError("Cannot save status of deposit %s: %v", deposit.Uuid, err)
		checker.Context.IncrementFailed()
		return
	}
	summary.UnitsSaved++
	checker.Context.IncrementSucceeded()
}
