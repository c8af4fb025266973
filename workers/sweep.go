package workers

import (
	stdcontext "context"
	"fmt"
	"io"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/sfu-dhil/lockssomatic/util"
	"golang.org/x/sync/errgroup"
)

// SweepOptions are the settings shared by the status sweeps.
type SweepOptions struct {
	// PlnIds limits the sweep to these networks. Empty means all.
	PlnIds []int64

	// DryRun computes every status record, logs it to the JSON log,
	// and saves nothing.
	DryRun bool
}

// forEachBox calls fn once for each box, running at most concurrency
// calls at a time, and returns when all of them have finished. fn
// records its own results and errors; forEachBox only reports whether
// ctx was cancelled while the boxes were working, in which case the
// caller should throw the results away.
func forEachBox(ctx stdcontext.Context, boxes []*models.Box, concurrency int, fn func(stdcontext.Context, *models.Box)) error {
	if concurrency < 1 {
		concurrency = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, box := range boxes {
		box := box
		group.Go(func() error {
			fn(groupCtx, box)
			return nil
		})
	}
	group.Wait()
	return ctx.Err()
}

// boxErrorMessage logs a failed box request and returns the message
// to record in the status. Protocol errors usually mean a daemon
// version we don't understand, so they're logged as errors. Other
// failures are routine.
func boxErrorMessage(_context *context.Context, what string, box *models.Box, err error) string {
	message := util.Truncate(err.Error(), network.MAX_ERR_MSG_SIZE)
	if lockssomatic.CategoryOf(err) == lockssomatic.ErrProtocol {
		_context.MessageLog.Errorf("protocol error: %s on %s: %s", what, box.HostPort(), message)
	} else {
		_context.MessageLog.Warningf("%s on %s: %s", what, box.HostPort(), message)
	}
	return message
}

// findPlns loads the networks to sweep. Failing to load them is the
// only fatal error a sweep can have.
func findPlns(_context *context.Context, plnIds []int64) ([]*models.Pln, error) {
	plns, err := _context.Store.FindPlns(plnIds)
	if err != nil {
		return nil, fmt.Errorf("Cannot load networks: %v", err)
	}
	return plns, nil
}

// finishSweep logs the summary and the context's stats.
func finishSweep(_context *context.Context, summary *models.SweepSummary) {
	summary.Finish()
	if summary.HasErrors() {
		_context.MessageLog.Warningf("%s", summary.String())
		for _, message := range summary.Errors {
			_context.MessageLog.Warningf("  %s", message)
		}
	} else {
		_context.MessageLog.Infof("%s", summary.String())
	}
	_context.LogStats()
}

// ReportSweep tells the person who ran a sweep how it went, and
// returns the process exit code. A clean sweep prints nothing unless
// verbose is set. Failures go to stderr, with the paths of the logs
// that have the details.
func ReportSweep(_context *context.Context, stdout, stderr io.Writer, summary *models.SweepSummary, err error, verbose bool) int {
	if err == nil && !summary.HasErrors() {
		if verbose {
			fmt.Fprintln(stdout, summary.String())
		}
		return 0
	}
	fmt.Fprintln(stderr, summary.String())
	if summary.HasErrors() {
		fmt.Fprintln(stderr, summary.AllErrorsAsString())
	}
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
	}
	fmt.Fprintf(stderr, "See %s and %s for details.\n", _context.PathToLogFile(), _context.PathToJsonLog())
	return 1
}
