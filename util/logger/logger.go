package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path"
	"path/filepath"

	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic/models"
)

/*
InitLogger creates and returns a logger suitable for logging
human-readable message.
*/
func InitLogger(config *models.Config) (*logging.Logger, error) {
	processName := path.Base(os.Args[0])
	filename := fmt.Sprintf("%s.log", processName)
	logDir, err := config.EnsureLogDirectory()
	if err != nil {
		return nil, fmt.Errorf("Cannot create log directory '%s': %v", config.LogDirectory, err)
	}
	filename = filepath.Join(logDir, filename)
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("Cannot open log file '%s': %v", filename, err)
	}

	log := logging.MustGetLogger(processName)
	format := logging.MustStringFormatter("%{time} [%{level}] %{message}")
	logging.SetFormatter(format)

	logBackend := logging.NewLogBackend(writer, "", 0)
	var leveled logging.LeveledBackend
	if config.LogToStderr {
		// Log to BOTH file and stderr
		stderrBackend := logging.NewLogBackend(os.Stderr, "", stdlog.LstdFlags|stdlog.Lshortfile)
		stderrBackend.Color = true
		leveled = logging.SetBackend(logBackend, stderrBackend)
	} else {
		// Log to file only
		leveled = logging.SetBackend(logBackend)
	}
	leveled.SetLevel(config.LogLevel, processName)

	return log, nil
}

/*
InitJsonLogger creates and returns a logger suitable for logging JSON
data. Each status record a sweep computes is written to this log
between BEGIN and END marker lines, whether or not it was saved,
so a dry run leaves a full record of what it would have saved.
*/
func InitJsonLogger(config *models.Config) (*stdlog.Logger, error) {
	processName := path.Base(os.Args[0])
	filename := fmt.Sprintf("%s.json", processName)
	logDir, err := config.EnsureLogDirectory()
	if err != nil {
		return nil, fmt.Errorf("Cannot create log directory '%s': %v", config.LogDirectory, err)
	}
	filename = filepath.Join(logDir, filename)
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("Cannot open log file '%s': %v", filename, err)
	}
	return stdlog.New(writer, "", 0), nil
}

/*
Discard logger returns a logger that writes to dev/null.
Suitable for use in testing.
*/
func DiscardLogger(module string) *logging.Logger {
	log := logging.MustGetLogger(module)
	devnull := logging.NewLogBackend(io.Discard, "", 0)
	leveled := logging.SetBackend(devnull)
	leveled.SetLevel(logging.INFO, module)
	return log
}

// DiscardJsonLogger is the JSON log equivalent of DiscardLogger.
func DiscardJsonLogger() *stdlog.Logger {
	return stdlog.New(io.Discard, "", 0)
}
