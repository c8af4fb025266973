package network_test

import (
	"testing"
	"time"

	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/network"
	"github.com/sfu-dhil/lockssomatic/util/logger"
	"github.com/sfu-dhil/lockssomatic/util/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewUnreachableNotification(t *testing.T) {
	box := testutil.MakeBox(testutil.MakePln(), "box1.example.com:8081")
	box.Id = 7
	status := models.NewBoxStatus(box)
	status.Created = time.Now().Add(-3 * time.Hour)
	status.Errors = "connection refused"

	notification := network.NewUnreachableNotification(box, status)
	assert.Equal(t, constants.EventUnreachable, notification.Event)
	assert.EqualValues(t, 7, notification.BoxId)
	assert.Equal(t, box.ContactEmail, notification.ContactEmail)
	assert.Equal(t, status.Id, notification.StatusId)
	assert.Contains(t, notification.Message, box.HostPort())
	assert.Contains(t, notification.Message, "3 hours ago")
	assert.Contains(t, notification.Message, "connection refused")
	assert.Empty(t, notification.Spaces)
}

func TestNewFreeSpaceNotification(t *testing.T) {
	box := testutil.MakeBox(testutil.MakePln(), "box1.example.com:8081")
	status := models.NewBoxStatus(box)
	space := &models.RepositorySpace{
		RepositorySpaceId: "/cache0",
		Size:              1000000000,
		Free:              50000000,
		Used:              950000000,
		PercentageFull:    0.95,
	}
	notification := network.NewFreeSpaceNotification(box, status, []*models.RepositorySpace{space})
	assert.Equal(t, constants.EventFreeSpaceWarning, notification.Event)
	assert.Equal(t, 1, len(notification.Spaces))
	assert.Contains(t, notification.Message, "/cache0 is 95.0% full")
	assert.Contains(t, notification.Message, "50 MB free of 1.0 GB")
}

func TestLogNotifier(t *testing.T) {
	box := testutil.MakeBox(testutil.MakePln(), "")
	status := models.NewBoxStatus(box)
	var notifier network.BoxNotifier = network.NewLogNotifier(logger.DiscardLogger("notifier_test"))
	assert.Nil(t, notifier.Unreachable(box, status))
	assert.Nil(t, notifier.FreeSpaceWarning(box, status, status.Data))
	notifier.Stop()
}
