package workers_test

import (
	stdcontext "context"
	"fmt"
	"testing"

	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/util/testutil"
	"github.com/sfu-dhil/lockssomatic/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAUStatusChecker(t *testing.T) {
	tn := newTestNetwork(t, 3, 0)
	for i, daemon := range tn.Daemons[:2] {
		daemon.AuStatus = &models.AuStatusResult{
			ContentSize:         int64(1000 * (i + 1)),
			RecentPollAgreement: 0.9,
			Status:              "Active",
		}
	}
	tn.Daemons[2].Faults["getAuStatus"] = "No Archival Unit with provided identifier"

	checker := workers.NewAUStatusChecker(tn.Context, workers.SweepOptions{})
	summary, err := checker.Run(stdcontext.Background())
	require.Nil(t, err)
	assert.True(t, summary.Succeeded())
	assert.Equal(t, 1, summary.UnitsChecked)
	assert.Equal(t, 1, summary.UnitsSaved)
	assert.Equal(t, 1, summary.BoxErrors)

	statuses, err := tn.Store.FindAuStatuses(tn.Au.Id)
	require.Nil(t, err)
	require.Equal(t, 1, len(statuses))
	status := statuses[0]
	require.Equal(t, 2, len(status.Status))
	assert.EqualValues(t, 1000, status.Status[tn.Boxes[0].HostPort()].ContentSize)
	assert.EqualValues(t, 2000, status.Status[tn.Boxes[1].HostPort()].ContentSize)
	require.Equal(t, 1, len(status.Errors))
	assert.Contains(t, status.Errors[tn.Boxes[2].HostPort()], "No Archival Unit")

	logged := &models.AuStatus{}
	require.Nil(t, testutil.FindRecordInReader(tn.JsonLog, fmt.Sprintf("au %d", tn.Au.Id), logged))
	assert.Equal(t, status.Id, logged.Id)
}

func TestAUStatusCheckerNotReady(t *testing.T) {
	tn := newTestNetwork(t, 2, 0)
	tn.Daemons[0].AuStatus = &models.AuStatusResult{Status: "Active"}
	tn.Daemons[1].Ready = false

	summary, err := workers.NewAUStatusChecker(tn.Context, workers.SweepOptions{}).Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, summary.BoxErrors)
	assert.Equal(t, 0, tn.Daemons[1].Calls("getAuStatus"))

	statuses, err := tn.Store.FindAuStatuses(tn.Au.Id)
	require.Nil(t, err)
	require.Equal(t, 1, len(statuses))
	assert.Contains(t, statuses[0].Errors[tn.Boxes[1].HostPort()], "not ready")
}

func TestAUStatusCheckerDryRun(t *testing.T) {
	tn := newTestNetwork(t, 1, 0)
	tn.Daemons[0].AuStatus = &models.AuStatusResult{Status: "Active"}
	summary, err := workers.NewAUStatusChecker(tn.Context, workers.SweepOptions{DryRun: true}).Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, summary.UnitsChecked)
	assert.Equal(t, 0, summary.UnitsSaved)
	statuses, err := tn.Store.FindAuStatuses(tn.Au.Id)
	require.Nil(t, err)
	assert.Empty(t, statuses)
}

func TestAUStatusCheckerCancelled(t *testing.T) {
	tn := newTestNetwork(t, 1, 0)
	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	cancel()
	summary, err := workers.NewAUStatusChecker(tn.Context, workers.SweepOptions{}).Run(ctx)
	assert.Equal(t, stdcontext.Canceled, err)
	assert.Equal(t, 0, summary.UnitsChecked)
	assert.Equal(t, 0, tn.Daemons[0].Calls("isDaemonReady"))
}
