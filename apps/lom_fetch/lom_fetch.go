package main

import (
	stdcontext "context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/sfu-dhil/lockssomatic/workers"
	"gopkg.in/alecthomas/kingpin.v2"
)

type Options struct {
	PathToConfigFile string
	Uuid             string
	OutputPath       string
	S3Bucket         string
	S3Prefix         string
	S3Region         string
	Verbose          bool
}

// lom_fetch downloads a verified copy of a deposit from one of the
// boxes in its network.
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

	err = fetch(ctx, _context, opts)
	cancel()
	_context.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func fetch(ctx stdcontext.Context, _context *context.Context, opts Options) error {
	fetcher := workers.NewContentFetcher(_context)
	deposit, reader, err := fetcher.FetchByUuid(ctx, opts.Uuid)
	if err != nil {
		return err
	}
	defer reader.Close()

	if opts.S3Bucket != "" {
		return export(_context, opts, deposit, reader)
	}
	var writer io.Writer = os.Stdout
	if opts.OutputPath != "-" {
		file, err := os.Create(opts.OutputPath)
		if err != nil {
			return fmt.Errorf("Cannot create %s: %v", opts.OutputPath, err)
		}
		defer file.Close()
		writer = file
	}
	size, err := io.Copy(writer, reader)
	if err != nil {
		return fmt.Errorf("Cannot write deposit %s: %v", deposit.Uuid, err)
	}
	_context.MessageLog.Infof("Wrote %s of deposit %s (%s) to %s",
		humanize.Bytes(uint64(size)), deposit.Uuid, reader.MimeType, opts.OutputPath)
	return nil
}

func export(_context *context.Context, opts Options, deposit *models.Deposit, content *workers.FetchedContent) error {
	upload := network.NewS3Upload(opts.S3Region, opts.S3Bucket, opts.S3Prefix, deposit, content.MimeType)
	upload.AddMetadata("box", content.Box)
	upload.Send(content)
	if upload.ErrorMessage != "" {
		return fmt.Errorf("Cannot upload deposit %s to %s: %s", deposit.Uuid, opts.S3Bucket, upload.ErrorMessage)
	}
	_context.MessageLog.Infof("Uploaded %s of deposit %s to %s",
		humanize.Bytes(uint64(content.Size)), deposit.Uuid, upload.Response.Location)
	return nil
}

func parseCommandLine(args []string) Options {
	opts := Options{}
	app := kingpin.New("lom_fetch",
		"Downloads a deposit from a box whose copy matches the deposit's checksum.\n\n"+
			"Only deposits with full agreement at the last check can be fetched.")
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to the LOCKSSOMatic config file.").
		Required().
		StringVar(&opts.PathToConfigFile)
	app.Flag("uuid", "UUID of the deposit to fetch.").
		Required().
		StringVar(&opts.Uuid)
	app.Flag("out", "Write the deposit here. Use - for stdout.").
		Default("-").
		StringVar(&opts.OutputPath)
	app.Flag("s3-bucket", "Upload the deposit to this S3 bucket instead of writing it out. "+
		"Credentials come from AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY.").
		StringVar(&opts.S3Bucket)
	app.Flag("s3-prefix", "Key prefix for uploads. The key is <prefix>/<uuid>.").
		StringVar(&opts.S3Prefix)
	app.Flag("s3-region", "AWS region of the S3 bucket.").
		Default("us-east-1").
		StringVar(&opts.S3Region)
	app.Flag("verbose", "Log debug messages to stderr.").
		Short('v').
		BoolVar(&opts.Verbose)
	kingpin.MustParse(app.Parse(args))
	return opts
}
