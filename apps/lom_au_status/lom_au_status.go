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
	DryRun           bool
	Verbose          bool
}

// lom_au_status asks every active box for its status report on each
// AU, and saves one AuStatus per AU.
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

	checker := workers.NewAUStatusChecker(_context, workers.SweepOptions{
		PlnIds: opts.PlnIds,
		DryRun: opts.DryRun,
	})
	summary, err := checker.Run(ctx)
	cancel()
	_context.Close()
	os.Exit(workers.ReportSweep(_context, os.Stdout, os.Stderr, summary, err, opts.Verbose))
}

// See if you can figure out from the function name what this does.
func parseCommandLine(args []string) Options {
	opts := Options{}
	app := kingpin.New("lom_au_status",
		"Checks the status of every AU on every active box, and saves the results.")
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to the LOCKSSOMatic config file.").
		Required().
		StringVar(&opts.PathToConfigFile)
	app.Flag("pln", "Check only this network. Repeat for more than one.").
		Int64ListVar(&opts.PlnIds)
	app.Flag("dry-run", "Check the AUs, but don't save anything.").
		BoolVar(&opts.DryRun)
	app.Flag("verbose", "Log debug messages to stderr.").
		Short('v').
		BoolVar(&opts.Verbose)
	kingpin.MustParse(app.Parse(args))
	return opts
}
