package main

import (
	stdcontext "context"
	"fmt"
	"os"

	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/workers"
	"gopkg.in/alecthomas/kingpin.v2"
)

type Options struct {
	PathToConfigFile string
	PlnIds           []int64
	Uuids            []string
	All              bool
	Limit            int
	DryRun           bool
	Verbose          bool
}

// lom_deposit_status asks every active box to hash each deposit that
// is due for a check, and saves the agreement.
func main() {
	opts := parseCommandLine(os.Args[1:])
	config, err := models.LoadConfigFile(opts.PathToConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if opts.Verbose {
		config.LogToStderr = true
		config.LogLevel = logging.DEBUG
	}
	_context, err := context.NewContext(config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	go context.CancelOnInterrupt(cancel)

	checker := workers.NewDepositStatusChecker(_context, workers.DepositSweepOptions{
		SweepOptions: workers.SweepOptions{
			PlnIds: opts.PlnIds,
			DryRun: opts.DryRun,
		},
		Uuids: opts.Uuids,
		All:   opts.All,
		Limit: opts.Limit,
	})
	summary, err := checker.Run(ctx)
	cancel()
	_context.Close()
	os.Exit(workers.ReportSweep(_context, os.Stdout, os.Stderr, summary, err, opts.Verbose))
}

func parseCommandLine(args []string) Options {
	opts := Options{}
	app := kingpin.New("lom_deposit_status",
		"Checks that every active box has a matching copy of each deposit.\n\n"+
			"By default, deposits that reached full agreement, or were checked within\n"+
			"RecheckHours, are skipped. Use --all to check them anyway.")
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to the LOCKSSOMatic config file.").
		Required().
		StringVar(&opts.PathToConfigFile)
	app.Flag("pln", "Check only this network. Repeat for more than one.").
		Int64ListVar(&opts.PlnIds)
	app.Flag("uuid", "Check only this deposit. Repeat for more than one.").
		StringsVar(&opts.Uuids)
	app.Flag("all", "Check deposits even if they agree or were checked recently.").
		BoolVar(&opts.All)
	app.Flag("limit", "Check at most this many deposits in each network.").
		Default("0").
		IntVar(&opts.Limit)
	app.Flag("dry-run", "Check the deposits, but don't save anything.").
		BoolVar(&opts.DryRun)
	app.Flag("verbose", "Log debug messages to stderr.").
		Short('v').
		BoolVar(&opts.Verbose)
	kingpin.MustParse(app.Parse(args))
	return opts
}
