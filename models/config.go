package models

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/util"
	"github.com/sfu-dhil/lockssomatic/util/fileutil"
)

type Config struct {
	// ActiveConfig is the configuration currently
	// in use.
	ActiveConfig string

	// BoltDBPath is the path to the bolt database file used when
	// StorageDriver is "bolt".
	BoltDBPath string

	// BoxConcurrency is the maximum number of boxes we'll talk to at
	// once while checking a single AU or deposit. Set to 1 to contact
	// boxes one at a time.
	BoxConcurrency int

	// BoxFullThreshold is the percentage (0-100) at which a box's
	// repository space is considered nearly full. The box status check
	// sends a free space warning for any box over this threshold.
	BoxFullThreshold float64

	// BoxTimeout is the maximum amount of time we'll wait for any single
	// request to a box. The format is the same as time.ParseDuration:
	//
	// "800ms" for 800 milliseconds
	// "10s" for ten seconds
	// "1m" for one minute
	BoxTimeout string

	// AcceptInvalidSSLCerts allows self-signed certificates on boxes
	// that serve their web services over https. Use this in testing
	// only.
	AcceptInvalidSSLCerts bool

	// LogDirectory is where we'll write our log files.
	LogDirectory string

	// LogLevel is defined in github.com/op/go-logging
	// and should be one of the following:
	// 1 - CRITICAL
	// 2 - ERROR
	// 3 - WARNING
	// 4 - NOTICE
	// 5 - INFO
	// 6 - DEBUG
	LogLevel logging.Level

	// If true, processes will log to STDERR in addition
	// to their standard log files.
	LogToStderr bool

	// NotifyTopic is the NSQ topic to which box notifications
	// (unreachable, nearly full) are published.
	NotifyTopic string

	// NsqdAddress is the TCP address of the nsqd that receives box
	// notifications, e.g. "localhost:4150". If this is empty,
	// notifications are written to the log instead.
	NsqdAddress string

	// PostgresURL is the connection string for the LOCKSSOMatic
	// database when StorageDriver is "postgres". If it's empty, we
	// use the environment variable LOM_DATABASE_URL.
	PostgresURL string

	// RecheckHours is the minimum number of hours between agreement
	// checks on a deposit that has not reached full agreement.
	RecheckHours int

	// StorageDriver is either "bolt" or "postgres".
	StorageDriver string

	// TempDirectory is where the content fetcher spools downloads
	// while it verifies their checksums. Defaults to the system
	// temp directory.
	TempDirectory string
}

// This returns the configuration that the user requested,
// which is specified in the -config flag when we run a
// program from the command line
func LoadConfigFile(pathToConfigFile string) (*Config, error) {
	file, err := fileutil.LoadRelativeFile(pathToConfigFile)
	if err != nil {
		detailedError := fmt.Errorf("Error reading config file '%s': %v\n",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config := &Config{}
	err = json.Unmarshal(file, config)
	if err != nil {
		detailedError := fmt.Errorf("Error parsing JSON from config file '%s': %v",
			pathToConfigFile, err)
		return nil, detailedError
	}
	config.ActiveConfig = pathToConfigFile
	config.SetDefaults()
	return config, nil
}

// SetDefaults fills in sensible values for settings that were left
// out of the config file.
func (config *Config) SetDefaults() {
	if config.BoxConcurrency < 1 {
		config.BoxConcurrency = 4
	}
	if config.BoxFullThreshold <= 0 {
		config.BoxFullThreshold = 90.0
	}
	if config.BoxTimeout == "" {
		config.BoxTimeout = "30s"
	}
	if config.LogLevel == 0 {
		config.LogLevel = logging.INFO
	}
	if config.NotifyTopic == "" {
		config.NotifyTopic = "lom_box_notify"
	}
	if config.RecheckHours <= 0 {
		config.RecheckHours = 24
	}
	if config.StorageDriver == "" {
		config.StorageDriver = constants.StorageBolt
	}
}

// Validate returns an error if the config is unusable.
func (config *Config) Validate() error {
	if !util.StringListContains(constants.StorageDrivers, config.StorageDriver) {
		return fmt.Errorf("StorageDriver '%s' is not one of %v",
			config.StorageDriver, constants.StorageDrivers)
	}
	if config.StorageDriver == constants.StorageBolt && config.BoltDBPath == "" {
		return fmt.Errorf("You must define config.BoltDBPath for the bolt storage driver")
	}
	if config.StorageDriver == constants.StoragePostgres && config.GetPostgresURL() == "" {
		return fmt.Errorf("Postgres storage requires config.PostgresURL " +
			"or environment variable LOM_DATABASE_URL")
	}
	if _, err := time.ParseDuration(config.BoxTimeout); err != nil {
		return fmt.Errorf("BoxTimeout '%s' is not a valid duration: %v", config.BoxTimeout, err)
	}
	if config.BoxFullThreshold > 100.0 {
		return fmt.Errorf("BoxFullThreshold must be a percentage between 0 and 100")
	}
	return nil
}

// Ensures that the logging directory exists, creating it if necessary.
// Returns the absolute path the logging directory.
func (config *Config) EnsureLogDirectory() (string, error) {
	config.ExpandFilePaths()
	if config.LogDirectory == "" {
		return "", fmt.Errorf("You must define config.LogDirectory")
	}
	if !fileutil.FileExists(config.LogDirectory) {
		err := os.MkdirAll(config.LogDirectory, 0755)
		if err != nil {
			return "", err
		}
	}
	return config.AbsLogDirectory(), nil
}

func (config *Config) AbsLogDirectory() string {
	absLogDir, err := filepath.Abs(config.LogDirectory)
	if err != nil {
		msg := fmt.Sprintf("Cannot get absolute path to log directory. "+
			"config.LogDirectory is set to '%s'", config.LogDirectory)
		panic(msg)
	}
	return absLogDir
}

// Expands ~ file paths to absolute paths.
func (config *Config) ExpandFilePaths() {
	expanded, err := fileutil.ExpandTilde(config.LogDirectory)
	if err == nil {
		config.LogDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.BoltDBPath)
	if err == nil {
		config.BoltDBPath = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.TempDirectory)
	if err == nil {
		config.TempDirectory = expanded
	}
}

// GetBoxTimeout returns BoxTimeout as a time.Duration. Call Validate
// first; an unparseable value falls back to 30 seconds.
func (config *Config) GetBoxTimeout() time.Duration {
	timeout, err := time.ParseDuration(config.BoxTimeout)
	if err != nil || timeout <= 0 {
		return 30 * time.Second
	}
	return timeout
}

// RecheckInterval returns the minimum time between agreement checks
// on a deposit.
func (config *Config) RecheckInterval() time.Duration {
	hours := config.RecheckHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// GetPostgresURL returns the Postgres connection string from the
// config file, or from the environment if the config doesn't set it.
func (config *Config) GetPostgresURL() string {
	if config.PostgresURL != "" {
		return config.PostgresURL
	}
	return os.Getenv("LOM_DATABASE_URL")
}

// TestsAreRunning returns true if we're running unit or integration
// tests; false otherwise.
func (config *Config) TestsAreRunning() bool {
	return flag.Lookup("test.v") != nil
}
