package context

import (
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"

	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/sfu-dhil/lockssomatic/service"
	"github.com/sfu-dhil/lockssomatic/util/logger"
	"github.com/sfu-dhil/lockssomatic/util/storage"
)

/*
Context sets up the items common to all of the status sweeps
(lom_au_status, lom_deposit_status, lom_box_status) and the
content fetcher: config, logs, the store, the box notifier and
the LOCKSS service. It also keeps count of the units that
succeeded and failed.
*/
type Context struct {
	Config     *models.Config
	MessageLog *logging.Logger
	JsonLog    *stdlog.Logger
	Store      storage.Store
	Notifier   network.BoxNotifier
	Lockss     *service.LockssService
	succeeded  int64
	failed     int64
}

/*
NewContext creates and returns a new Context object, with logs
in config.LogDirectory, the store named by config.StorageDriver,
and an NSQ notifier if config.NsqdAddress is set. Without an
nsqd, notifications go to the message log.

This object is meant to be used as a singleton by each of the
lom_* apps. Call Close when you're done with it.
*/
func NewContext(config *models.Config) (*Context, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	messageLog, err := logger.InitLogger(config)
	if err != nil {
		return nil, err
	}
	jsonLog, err := logger.InitJsonLogger(config)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(config)
	if err != nil {
		return nil, err
	}
	var notifier network.BoxNotifier
	if config.NsqdAddress != "" {
		notifier, err = network.NewNSQNotifier(config.NsqdAddress, config.NotifyTopic, messageLog)
		if err != nil {
			store.Close()
			return nil, err
		}
	} else {
		notifier = network.NewLogNotifier(messageLog)
	}
	return New(config, messageLog, jsonLog, store, notifier), nil
}

// New assembles a Context from parts the caller has already set up.
// The tests use this with discard loggers and a temporary store.
func New(config *models.Config, messageLog *logging.Logger, jsonLog *stdlog.Logger, store storage.Store, notifier network.BoxNotifier) *Context {
	client := network.NewBoxClient(config.GetBoxTimeout(), config.AcceptInvalidSSLCerts, messageLog)
	return &Context{
		Config:     config,
		MessageLog: messageLog,
		JsonLog:    jsonLog,
		Store:      store,
		Notifier:   notifier,
		Lockss:     service.NewLockssService(client, messageLog),
	}
}

// Close stops the notifier and closes the store.
func (context *Context) Close() error {
	if context.Notifier != nil {
		context.Notifier.Stop()
	}
	if context.Store != nil {
		return context.Store.Close()
	}
	return nil
}

// LogJson writes obj to the JSON log as indented JSON, between
// BEGIN and END lines that carry key. testutil.FindRecordInLog
// reads records back out.
func (context *Context) LogJson(key string, obj interface{}) error {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("Cannot convert %s to JSON: %v", key, err)
	}
	context.JsonLog.Printf("-------- BEGIN %s\n%s\n -------- END %s", key, string(data), key)
	return nil
}

// Returns the number of units that succeeded.
func (context *Context) Succeeded() int64 {
	return atomic.LoadInt64(&context.succeeded)
}

// Returns the number of units that failed.
func (context *Context) Failed() int64 {
	return atomic.LoadInt64(&context.failed)
}

// Increases the count of successfully processed units by one.
func (context *Context) IncrementSucceeded() int64 {
	return atomic.AddInt64(&context.succeeded, 1)
}

// Increases the count of unsuccessfully processed units by one.
func (context *Context) IncrementFailed() int64 {
	return atomic.AddInt64(&context.failed, 1)
}

// Returns the path to this process' log file
func (context *Context) PathToLogFile() string {
	return filepath.Join(context.Config.AbsLogDirectory(), path.Base(os.Args[0])+".log")
}

// Returns the path to this process' JSON log file
func (context *Context) PathToJsonLog() string {
	return filepath.Join(context.Config.AbsLogDirectory(), path.Base(os.Args[0])+".json")
}

// Logs info about the number of units that have succeeded and failed.
func (context *Context) LogStats() {
	context.MessageLog.Infof("**STATS** Succeeded: %d, Failed: %d",
		context.Succeeded(), context.Failed())
}
