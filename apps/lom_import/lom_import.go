package main

import (
	"fmt"
	"os"

	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/util/storage"
	"gopkg.in/alecthomas/kingpin.v2"
)

type Options struct {
	PathToConfigFile string
	PathToDump       string
}

// lom_import loads networks, boxes, AUs and deposits exported from
// the LOCKSSOMatic web application into the configured store.
func main() {
	opts := parseCommandLine(os.Args[1:])
	config, err := models.LoadConfigFile(opts.PathToConfigFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if err := importDump(config, opts.PathToDump); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func importDump(config *models.Config, pathToDump string) error {
	dump, err := storage.LoadDump(pathToDump)
	if err != nil {
		return err
	}
	store, err := storage.Open(config)
	if err != nil {
		return err
	}
	defer store.Close()
	if pgStore, ok := store.(*storage.PostgresStore); ok {
		if err := pgStore.EnsureSchema(); err != nil {
			return err
		}
	}
	importer, ok := store.(storage.Importer)
	if !ok {
		return fmt.Errorf("Storage driver %s cannot import records", config.StorageDriver)
	}
	if err := storage.Import(importer, dump); err != nil {
		return err
	}
	fmt.Printf("Imported %d plns, %d boxes, %d content providers, %d AUs, %d deposits\n",
		len(dump.Plns), len(dump.Boxes), len(dump.ContentProviders), len(dump.Aus), len(dump.Deposits))
	return nil
}

func parseCommandLine(args []string) Options {
	opts := Options{}
	app := kingpin.New("lom_import",
		"Imports a JSON export of networks, boxes, AUs and deposits into the store.")
	app.HelpFlag.Short('h')
	app.Flag("config", "Path to the LOCKSSOMatic config file.").
		Required().
		StringVar(&opts.PathToConfigFile)
	app.Arg("dump", "Path to the JSON export.").
		Required().
		StringVar(&opts.PathToDump)
	kingpin.MustParse(app.Parse(args))
	return opts
}
