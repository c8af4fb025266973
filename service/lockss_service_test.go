package service_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/sfu-dhil/lockssomatic/service"
	"github.com/sfu-dhil/lockssomatic/util/logger"
	"github.com/sfu-dhil/lockssomatic/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	daemon  *testutil.FakeDaemon
	box     *models.Box
	au      *models.Au
	deposit *models.Deposit
	service *service.LockssService
}

func newFixture(t *testing.T) *fixture {
	pln := testutil.MakePln()
	daemon := testutil.NewFakeDaemon(pln.Username, pln.Password)
	t.Cleanup(daemon.Close)
	au := testutil.MakeAu(pln, testutil.MakeContentProvider(pln))
	log := logger.DiscardLogger("lockss_service_test")
	return &fixture{
		daemon:  daemon,
		box:     testutil.MakeBox(pln, daemon.HostPort()),
		au:      au,
		deposit: testutil.MakeDeposit(au),
		service: service.NewLockssService(network.NewBoxClient(5*time.Second, false, log), log),
	}
}

func TestHash(t *testing.T) {
	f := newFixture(t)
	f.daemon.Hashes[f.deposit.Url] = "abcdef0123456789"
	hash, err := f.service.Hash(context.Background(), f.box, f.au, f.deposit)
	require.Nil(t, err)
	assert.Equal(t, "abcdef0123456789", hash)
	assert.Equal(t, 1, f.daemon.Calls("hash"))
}

func TestHashMultipart(t *testing.T) {
	f := newFixture(t)
	f.daemon.Multipart = true
	f.daemon.Hashes[f.deposit.Url] = f.deposit.ChecksumValue
	hash, err := f.service.Hash(context.Background(), f.box, f.au, f.deposit)
	require.Nil(t, err)
	assert.Equal(t, f.deposit.ChecksumValue, hash)
}

func TestHashErrorMessage(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Hash(context.Background(), f.box, f.au, f.deposit)
	require.NotNil(t, err)
	assert.Equal(t, lockssomatic.ErrRemoteFault, lockssomatic.CategoryOf(err))
	assert.Contains(t, err.Error(), "No AU contains URL")
}

func TestHashUnsupportedAlgorithm(t *testing.T) {
	f := newFixture(t)
	f.deposit.ChecksumType = "crc32"
	_, err := f.service.Hash(context.Background(), f.box, f.au, f.deposit)
	require.NotNil(t, err)
	assert.Equal(t, lockssomatic.ErrConfig, lockssomatic.CategoryOf(err))
	assert.Equal(t, 0, f.daemon.Calls("hash"))
}

func TestHashNotReady(t *testing.T) {
	f := newFixture(t)
	f.daemon.Ready = false
	f.daemon.Hashes[f.deposit.Url] = "abc"
	_, err := f.service.Hash(context.Background(), f.box, f.au, f.deposit)
	require.NotNil(t, err)
	assert.Equal(t, lockssomatic.ErrNotReady, lockssomatic.CategoryOf(err))
	assert.Equal(t, 0, f.daemon.Calls("hash"))
}

func TestFindBlockHash(t *testing.T) {
	url := "http://example.com/deposit.zip"
	block := testutil.BlockFile(url, "DEADBEEF")
	assert.Equal(t, "DEADBEEF", service.FindBlockHash(block))
	assert.Equal(t, "DEADBEEF", service.FindBlockHash(base64.StdEncoding.EncodeToString([]byte(block))))
	assert.Equal(t, "", service.FindBlockHash("# Block hashes\n# end\n"))
	assert.Equal(t, "", service.FindBlockHash(""))
	assert.Equal(t, "", service.FindBlockHash("not base64 and no hash"))
}

func TestAuStatus(t *testing.T) {
	f := newFixture(t)
	f.daemon.AuStatus = &models.AuStatusResult{
		ContentSize:         2048,
		RecentPollAgreement: 1.0,
		Status:              "100.00% Agreement",
		Volume:              "Volume 3",
	}
	result, err := f.service.AuStatus(context.Background(), f.box, f.au)
	require.Nil(t, err)
	assert.EqualValues(t, 2048, result.ContentSize)
	assert.Equal(t, 1.0, result.RecentPollAgreement)
	assert.Equal(t, "Volume 3", result.Volume)
}

func TestListAus(t *testing.T) {
	f := newFixture(t)
	f.daemon.AuSummaries = []*models.AuSummary{
		{Id: "au1", Name: "First"},
		{Id: "au2", Name: "Second"},
	}
	summaries, err := f.service.ListAus(context.Background(), f.box)
	require.Nil(t, err)
	require.Equal(t, 2, len(summaries))
	assert.Equal(t, "au2", summaries[1].Id)
	assert.Equal(t, "Second", summaries[1].Name)
}

func TestListAuUrls(t *testing.T) {
	f := newFixture(t)
	f.daemon.AuUrls = []string{f.deposit.Url, "http://example.com/manifest?a=1&b=2"}
	urls, err := f.service.ListAuUrls(context.Background(), f.box, f.au)
	require.Nil(t, err)
	assert.Equal(t, f.daemon.AuUrls, urls)
}

func TestIsUrlCached(t *testing.T) {
	f := newFixture(t)
	cached, err := f.service.IsUrlCached(context.Background(), f.box, f.au, f.deposit)
	require.Nil(t, err)
	assert.False(t, cached)

	f.daemon.CachedUrls[f.deposit.Url] = true
	cached, err = f.service.IsUrlCached(context.Background(), f.box, f.au, f.deposit)
	require.Nil(t, err)
	assert.True(t, cached)
}

func TestBoxStatus(t *testing.T) {
	f := newFixture(t)
	f.daemon.RepositorySpaces = []*models.RepositorySpace{
		{RepositorySpaceId: "/cache0", Active: 1, Size: 1000, Used: 900, Free: 100, PercentageFull: 0.9},
		{RepositorySpaceId: "/cache1", Active: 1, Size: 1000, Used: 100, Free: 900, PercentageFull: 0.1},
	}
	spaces, err := f.service.BoxStatus(context.Background(), f.box)
	require.Nil(t, err)
	require.Equal(t, 2, len(spaces))
	assert.Equal(t, "/cache0", spaces[0].RepositorySpaceId)
	assert.EqualValues(t, 900, spaces[0].Used)
	assert.Equal(t, 0.1, spaces[1].PercentageFull)
}

func TestPlatformStatus(t *testing.T) {
	f := newFixture(t)
	f.daemon.Platform = &models.PlatformStatus{
		HostName:      "box1",
		V3Identity:    "TCP:[10.0.0.1]:9729",
		DaemonVersion: models.DaemonVersion{FullVersion: "1.75.3", MajorVersion: 1, MinorVersion: 75},
		Groups:        []string{"pln", "test"},
	}
	platform, err := f.service.PlatformStatus(context.Background(), f.box)
	require.Nil(t, err)
	assert.Equal(t, "TCP:[10.0.0.1]:9729", platform.V3Identity)
	assert.Equal(t, "1.75.3", platform.DaemonVersion.FullVersion)
	assert.Equal(t, []string{"pln", "test"}, platform.Groups)
}

func TestQueryPollsAndVotes(t *testing.T) {
	f := newFixture(t)
	f.daemon.Polls = []*models.PollStatus{{AuId: "au1", PollKey: "p1", PercentAgreement: 0.98}}
	f.daemon.Votes = []*models.VoteStatus{{AuId: "au2", VoteKey: "v1", Status: "Complete"}}
	polls, err := f.service.QueryPolls(context.Background(), f.box)
	require.Nil(t, err)
	require.Equal(t, 1, len(polls))
	assert.Equal(t, "p1", polls[0].PollKey)
	assert.Equal(t, 0.98, polls[0].PercentAgreement)

	votes, err := f.service.QueryVotes(context.Background(), f.box)
	require.Nil(t, err)
	require.Equal(t, 1, len(votes))
	assert.Equal(t, "Complete", votes[0].Status)
}

func TestIsDaemonReady(t *testing.T) {
	f := newFixture(t)
	ready, err := f.service.IsDaemonReady(context.Background(), f.box)
	require.Nil(t, err)
	assert.True(t, ready)
}
