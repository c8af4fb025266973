package workers_test

import (
	stdcontext "context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/sfu-dhil/lockssomatic/util/testutil"
	"github.com/sfu-dhil/lockssomatic/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositAgreement(t *testing.T) {
	tn := newTestNetwork(t, 4, 1)
	deposit := tn.Deposits[0]
	tn.Daemons[0].Hashes[deposit.Url] = deposit.ChecksumValue
	tn.Daemons[1].Hashes[deposit.Url] = deposit.ChecksumValue
	// Daemons[2] has no hash for the deposit, so it fails.
	tn.Daemons[3].Hashes[deposit.Url] = strings.ToLower(deposit.ChecksumValue)

	checker := workers.NewDepositStatusChecker(tn.Context, workers.DepositSweepOptions{})
	summary, err := checker.Run(stdcontext.Background())
	require.Nil(t, err)
	assert.True(t, summary.Succeeded())
	assert.Equal(t, 1, summary.PlnsChecked)
	assert.Equal(t, 1, summary.UnitsChecked)
	assert.Equal(t, 1, summary.UnitsSaved)
	assert.Equal(t, 1, summary.BoxErrors)

	statuses, err := tn.Store.FindDepositStatuses(deposit.Id)
	require.Nil(t, err)
	require.Equal(t, 1, len(statuses))
	status := statuses[0]
	assert.Equal(t, 0.75, status.Agreement)
	assert.Equal(t, 4, len(status.Status))
	assert.Equal(t, constants.HashFailed, status.Status[tn.Boxes[2].HostPort()])
	assert.Equal(t, strings.ToLower(deposit.ChecksumValue), status.Status[tn.Boxes[3].HostPort()])
	require.Equal(t, 1, len(status.Errors))
	assert.Contains(t, status.Errors[tn.Boxes[2].HostPort()], "No AU contains URL")

	saved, err := tn.Store.FindDeposit(deposit.Uuid)
	require.Nil(t, err)
	require.NotNil(t, saved.Agreement)
	assert.Equal(t, 0.75, *saved.Agreement)
	require.NotNil(t, saved.Checked)
	assert.WithinDuration(t, status.Created, *saved.Checked, time.Second)

	logged := &models.DepositStatus{}
	require.Nil(t, testutil.FindRecordInReader(tn.JsonLog, "deposit "+deposit.Uuid, logged))
	assert.Equal(t, status.Id, logged.Id)
	assert.EqualValues(t, 1, tn.Context.Succeeded())
}

func TestDepositBoxIsolation(t *testing.T) {
	tn := newTestNetwork(t, 2, 1)
	tn.hashAll()
	deposit := tn.Deposits[0]

	server := network.NewTCPTestServer("127.0.0.1:0", network.HangUpCallback)
	defer server.Close()
	deadBox := testutil.MakeBox(tn.Pln, server.Addr())
	require.Nil(t, tn.Store.SaveBox(deadBox))

	checker := workers.NewDepositStatusChecker(tn.Context, workers.DepositSweepOptions{})
	summary, err := checker.Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, summary.UnitsSaved)

	statuses, err := tn.Store.FindDepositStatuses(deposit.Id)
	require.Nil(t, err)
	require.Equal(t, 1, len(statuses))
	status := statuses[0]
	assert.Equal(t, deposit.ChecksumValue, status.Status[tn.Boxes[0].HostPort()])
	assert.Equal(t, deposit.ChecksumValue, status.Status[tn.Boxes[1].HostPort()])
	assert.Equal(t, constants.HashFailed, status.Status[deadBox.HostPort()])
	assert.NotEmpty(t, status.Errors[deadBox.HostPort()])
	assert.InDelta(t, 2.0/3.0, status.Agreement, 0.0001)
}

func TestDepositUnknownHash(t *testing.T) {
	tn := newTestNetwork(t, 1, 1)
	// A hash for some other URL: the box answers, but has nothing
	// for this deposit.
	tn.Daemons[0].Hashes[tn.Deposits[0].Url] = ""
	checker := workers.NewDepositStatusChecker(tn.Context, workers.DepositSweepOptions{})
	_, err := checker.Run(stdcontext.Background())
	require.Nil(t, err)
	statuses, err := tn.Store.FindDepositStatuses(tn.Deposits[0].Id)
	require.Nil(t, err)
	require.Equal(t, 1, len(statuses))
	assert.Equal(t, constants.HashUnknown, statuses[0].Status[tn.Boxes[0].HostPort()])
	assert.Empty(t, statuses[0].Errors)
	assert.Equal(t, 0.0, statuses[0].Agreement)
}

func TestDepositDryRun(t *testing.T) {
	tn := newTestNetwork(t, 2, 2)
	tn.hashAll()
	options := workers.DepositSweepOptions{SweepOptions: workers.SweepOptions{DryRun: true}}
	checker := workers.NewDepositStatusChecker(tn.Context, options)
	summary, err := checker.Run(stdcontext.Background())
	require.Nil(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 2, summary.UnitsChecked)
	assert.Equal(t, 0, summary.UnitsSaved)

	for _, deposit := range tn.Deposits {
		statuses, err := tn.Store.FindDepositStatuses(deposit.Id)
		require.Nil(t, err)
		assert.Empty(t, statuses)
		saved, err := tn.Store.FindDeposit(deposit.Uuid)
		require.Nil(t, err)
		assert.Nil(t, saved.Agreement)
		assert.Nil(t, saved.Checked)
		assert.Nil(t, deposit.Agreement)

		logged := &models.DepositStatus{}
		require.Nil(t, testutil.FindRecordInReader(strings.NewReader(tn.JsonLog.String()),
			"deposit "+deposit.Uuid, logged))
		assert.Equal(t, 1.0, logged.Agreement)
	}
}

func TestDepositThrottle(t *testing.T) {
	tn := newTestNetwork(t, 1, 4)
	tn.hashAll()
	now := time.Now().UTC()
	recent := now.Add(-1 * time.Hour)
	stale := now.Add(-25 * time.Hour)
	old := now.Add(-48 * time.Hour)

	checkedRecently, checkedLongAgo, agreed, neverChecked := tn.Deposits[0], tn.Deposits[1], tn.Deposits[2], tn.Deposits[3]
	checkedRecently.Agreement, checkedRecently.Checked = floatPtr(0.5), &recent
	checkedLongAgo.Agreement, checkedLongAgo.Checked = floatPtr(0.5), &stale
	agreed.Agreement, agreed.Checked = floatPtr(1.0), &old
	for _, deposit := range tn.Deposits[:3] {
		require.Nil(t, tn.Store.SaveDeposit(deposit))
	}

	checker := workers.NewDepositStatusChecker(tn.Context, workers.DepositSweepOptions{})
	checker.Now = func() time.Time { return now }
	summary, err := checker.Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 2, summary.UnitsChecked)
	assert.Equal(t, 2, tn.Daemons[0].Calls("hash"))

	count := func(deposit *models.Deposit) int {
		statuses, err := tn.Store.FindDepositStatuses(deposit.Id)
		require.Nil(t, err)
		return len(statuses)
	}
	assert.Equal(t, 0, count(checkedRecently))
	assert.Equal(t, 1, count(checkedLongAgo))
	assert.Equal(t, 0, count(agreed))
	assert.Equal(t, 1, count(neverChecked))

	// Everything checked just now, so a second sweep does nothing.
	checker = workers.NewDepositStatusChecker(tn.Context, workers.DepositSweepOptions{})
	summary, err = checker.Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 0, summary.UnitsChecked)

	// All overrides the throttle.
	options := workers.DepositSweepOptions{All: true}
	checker = workers.NewDepositStatusChecker(tn.Context, options)
	summary, err = checker.Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 4, summary.UnitsChecked)
}

func TestDepositUuidsAndLimit(t *testing.T) {
	tn := newTestNetwork(t, 1, 5)
	tn.hashAll()

	options := workers.DepositSweepOptions{Uuids: []string{strings.ToUpper(tn.Deposits[3].Uuid)}}
	summary, err := workers.NewDepositStatusChecker(tn.Context, options).Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, summary.UnitsChecked)
	statuses, err := tn.Store.FindDepositStatuses(tn.Deposits[3].Id)
	require.Nil(t, err)
	assert.Equal(t, 1, len(statuses))

	options = workers.DepositSweepOptions{Limit: 2}
	summary, err = workers.NewDepositStatusChecker(tn.Context, options).Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, 2, summary.UnitsChecked)
}

func TestDepositPaging(t *testing.T) {
	count := workers.DEPOSIT_PAGE_SIZE + 5
	tn := newTestNetwork(t, 1, count)
	tn.hashAll()
	options := workers.DepositSweepOptions{SweepOptions: workers.SweepOptions{DryRun: true}}
	summary, err := workers.NewDepositStatusChecker(tn.Context, options).Run(stdcontext.Background())
	require.Nil(t, err)
	assert.Equal(t, count, summary.UnitsChecked)
}

func TestDepositNoBoxes(t *testing.T) {
	tn := newTestNetwork(t, 0, 1)
	summary, err := workers.NewDepositStatusChecker(tn.Context, workers.DepositSweepOptions{}).Run(stdcontext.Background())
	require.Nil(t, err)
	assert.True(t, summary.HasErrors())
	assert.Contains(t, summary.AllErrorsAsString(), "no active boxes")
	statuses, err := tn.Store.FindDepositStatuses(tn.Deposits[0].Id)
	require.Nil(t, err)
	require.Equal(t, 1, len(statuses))
	assert.Equal(t, 0.0, statuses[0].Agreement)
}

func TestDepositCancel(t *testing.T) {
	tn := newTestNetwork(t, 1, 3)
	tn.hashAll()
	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()
	hashCalls := 0
	tn.Daemons[0].OnCall = func(operation string) {
		if operation == "hash" {
			hashCalls++
			if hashCalls == 2 {
				cancel()
			}
		}
	}

	summary, err := workers.NewDepositStatusChecker(tn.Context, workers.DepositSweepOptions{}).Run(ctx)
	require.NotNil(t, err)
	assert.Equal(t, stdcontext.Canceled, err)
	assert.Equal(t, 1, summary.UnitsSaved)

	for i, deposit := range tn.Deposits {
		statuses, err := tn.Store.FindDepositStatuses(deposit.Id)
		require.Nil(t, err)
		expected := 0
		if i == 0 {
			expected = 1
		}
		assert.Equal(t, expected, len(statuses), fmt.Sprintf("deposit %d", i))
	}
	assert.Equal(t, 2, tn.Daemons[0].Calls("hash"))
}

func TestDepositBadPln(t *testing.T) {
	tn := newTestNetwork(t, 1, 1)
	options := workers.DepositSweepOptions{SweepOptions: workers.SweepOptions{PlnIds: []int64{999}}}
	summary, err := workers.NewDepositStatusChecker(tn.Context, options).Run(stdcontext.Background())
	require.NotNil(t, err)
	assert.True(t, summary.HasErrors())
	assert.True(t, summary.Finished())
}
