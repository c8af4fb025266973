package context_test

import (
	"bytes"
	stdlog "log"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/sfu-dhil/lockssomatic/util/logger"
	"github.com/sfu-dhil/lockssomatic/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	configFile := filepath.Join("config", "test.json")
	appConfig, err := models.LoadConfigFile(configFile)
	require.Nil(t, err)

	// In some tests we want to log to STDERR, but in this case, if it
	// happens to be turned on, it just creates useless, annoying output.
	appConfig.LogToStderr = false
	tempDir := t.TempDir()
	appConfig.LogDirectory = filepath.Join(tempDir, "log")
	appConfig.BoltDBPath = filepath.Join(tempDir, "lom.db")
	appConfig.NsqdAddress = ""

	_context, err := context.NewContext(appConfig)
	require.Nil(t, err)
	require.NotNil(t, _context)
	defer _context.Close()

	expectedPathToLogFile := filepath.Join(_context.Config.AbsLogDirectory(), path.Base(os.Args[0])+".log")
	expectedPathToJsonLog := filepath.Join(_context.Config.AbsLogDirectory(), path.Base(os.Args[0])+".json")

	assert.NotNil(t, _context.Config)
	assert.NotNil(t, _context.Store)
	assert.NotNil(t, _context.Lockss)
	assert.NotNil(t, _context.MessageLog)
	assert.NotNil(t, _context.JsonLog)
	assert.IsType(t, &network.LogNotifier{}, _context.Notifier)
	assert.Equal(t, expectedPathToLogFile, _context.PathToLogFile())
	assert.Equal(t, expectedPathToJsonLog, _context.PathToJsonLog())
	assert.Equal(t, int64(0), _context.Succeeded())
	assert.Equal(t, int64(0), _context.Failed())
	assert.Equal(t, appConfig.GetBoxTimeout(), _context.Lockss.Client().Timeout())

	assert.NotPanics(t, func() { _context.MessageLog.Info("Test INFO log message") })
	assert.NotPanics(t, func() { _context.MessageLog.Debug("Test DEBUG log message") })
	assert.NotPanics(t, func() { _context.LogStats() })
	assert.FileExists(t, expectedPathToLogFile)
	assert.FileExists(t, expectedPathToJsonLog)
}

func TestNewContextBadConfig(t *testing.T) {
	appConfig := &models.Config{StorageDriver: "mongo"}
	_, err := context.NewContext(appConfig)
	assert.NotNil(t, err)
}

func TestCounters(t *testing.T) {
	_context := context.New(&models.Config{}, logger.DiscardLogger("context_test"),
		logger.DiscardJsonLogger(), nil, nil)
	assert.EqualValues(t, 1, _context.IncrementSucceeded())
	assert.EqualValues(t, 2, _context.IncrementSucceeded())
	assert.EqualValues(t, 1, _context.IncrementFailed())
	assert.EqualValues(t, 2, _context.Succeeded())
	assert.EqualValues(t, 1, _context.Failed())
	assert.Nil(t, _context.Close())
}

func TestLogJson(t *testing.T) {
	var buf bytes.Buffer
	_context := context.New(&models.Config{}, logger.DiscardLogger("context_test"),
		stdlog.New(&buf, "", 0), nil, nil)
	status := &models.BoxStatus{Id: "1234", BoxId: 9, Success: true, Errors: "none"}
	require.Nil(t, _context.LogJson("box 9", status))
	status.Errors = "second"
	require.Nil(t, _context.LogJson("box 9", status))

	logged := &models.BoxStatus{}
	require.Nil(t, testutil.FindRecordInReader(&buf, "box 9", logged))
	assert.Equal(t, "1234", logged.Id)
	assert.EqualValues(t, 9, logged.BoxId)
	assert.Equal(t, "second", logged.Errors)
}
