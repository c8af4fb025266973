package workers_test

import (
	"bytes"
	stdlog "log"
	"sync"
	"testing"

	"github.com/sfu-dhil/lockssomatic/context"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/util/logger"
	"github.com/sfu-dhil/lockssomatic/util/storage"
	"github.com/sfu-dhil/lockssomatic/util/testutil"
)

// recordingNotifier remembers the notifications it was asked to send.
type recordingNotifier struct {
	mutex       sync.Mutex
	unreachable []string
	freeSpace   []string
}

func (notifier *recordingNotifier) Unreachable(box *models.Box, status *models.BoxStatus) error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.unreachable = append(notifier.unreachable, box.HostPort())
	return nil
}

func (notifier *recordingNotifier) FreeSpaceWarning(box *models.Box, status *models.BoxStatus, spaces []*models.RepositorySpace) error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	notifier.freeSpace = append(notifier.freeSpace, box.HostPort())
	return nil
}

func (notifier *recordingNotifier) Stop() {}

// testNetwork is a Pln whose boxes are fake daemons, saved in a
// temporary bolt store.
type testNetwork struct {
	Context  *context.Context
	Store    *storage.BoltStore
	JsonLog  *bytes.Buffer
	Notifier *recordingNotifier
	Daemons  []*testutil.FakeDaemon
	*testutil.Network
}

func newTestNetwork(t *testing.T, boxCount, depositCount int) *testNetwork {
	daemons := make([]*testutil.FakeDaemon, boxCount)
	hostPorts := make([]string, boxCount)
	for i := range daemons {
		daemons[i] = testutil.NewFakeDaemon("", "")
		t.Cleanup(daemons[i].Close)
		hostPorts[i] = daemons[i].HostPort()
	}
	store := testutil.NewBoltStore(t)
	network := testutil.MakeNetwork(t, store, hostPorts, depositCount)
	for _, daemon := range daemons {
		daemon.Username = network.Pln.Username
		daemon.Password = network.Pln.Password
	}
	config := &models.Config{
		BoxConcurrency:   4,
		BoxFullThreshold: 90,
		BoxTimeout:       "2s",
		RecheckHours:     24,
		TempDirectory:    t.TempDir(),
	}
	jsonLog := &bytes.Buffer{}
	notifier := &recordingNotifier{}
	_context := context.New(config, logger.DiscardLogger("workers_test"),
		stdlog.New(jsonLog, "", 0), store, notifier)
	return &testNetwork{
		Context:  _context,
		Store:    store,
		JsonLog:  jsonLog,
		Notifier: notifier,
		Daemons:  daemons,
		Network:  network,
	}
}

// hashAll makes every daemon report the correct hash for every deposit.
func (tn *testNetwork) hashAll() {
	for _, daemon := range tn.Daemons {
		for _, deposit := range tn.Deposits {
			daemon.Hashes[deposit.Url] = deposit.ChecksumValue
		}
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
