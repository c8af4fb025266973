package network

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nsqio/go-nsq"
	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/models"
)

// BoxNotifier tells the people responsible for a box that something
// is wrong with it.
type BoxNotifier interface {
	// Unreachable reports a box that could not be contacted, or whose
	// daemon was not ready.
	Unreachable(box *models.Box, status *models.BoxStatus) error

	// FreeSpaceWarning reports a box whose repository spaces are at
	// or above the configured fill threshold.
	FreeSpaceWarning(box *models.Box, status *models.BoxStatus, spaces []*models.RepositorySpace) error

	Stop()
}

// BoxNotification is the message a BoxNotifier sends.
type BoxNotification struct {
	Event        string                    `json:"event"`
	BoxId        int64                     `json:"box_id"`
	PlnId        int64                     `json:"pln_id"`
	Hostname     string                    `json:"hostname"`
	ContactName  string                    `json:"contact_name"`
	ContactEmail string                    `json:"contact_email"`
	StatusId     string                    `json:"status_id"`
	Created      time.Time                 `json:"created"`
	Message      string                    `json:"message"`
	Spaces       []*models.RepositorySpace `json:"spaces,omitempty"`
}

// NewUnreachableNotification describes a failed box status check.
func NewUnreachableNotification(box *models.Box, status *models.BoxStatus) *BoxNotification {
	notification := newNotification(constants.EventUnreachable, box, status)
	notification.Message = fmt.Sprintf("LOCKSS box %s could not be checked %s: %s",
		box.HostPort(), humanize.Time(status.Created), status.Errors)
	return notification
}

// NewFreeSpaceNotification describes a box that is running out of
// repository space.
func NewFreeSpaceNotification(box *models.Box, status *models.BoxStatus, spaces []*models.RepositorySpace) *BoxNotification {
	notification := newNotification(constants.EventFreeSpaceWarning, box, status)
	notification.Spaces = spaces
	lines := make([]string, len(spaces))
	for i, space := range spaces {
		lines[i] = fmt.Sprintf("%s is %.1f%% full (%s free of %s)",
			space.RepositorySpaceId, space.FullPercent(),
			humanize.Bytes(uint64(space.Free)), humanize.Bytes(uint64(space.Size)))
	}
	notification.Message = fmt.Sprintf("LOCKSS box %s is running out of space: %s",
		box.HostPort(), strings.Join(lines, "; "))
	return notification
}

func newNotification(event string, box *models.Box, status *models.BoxStatus) *BoxNotification {
	return &BoxNotification{
		Event:        event,
		BoxId:        box.Id,
		PlnId:        box.PlnId,
		Hostname:     box.Hostname,
		ContactName:  box.ContactName,
		ContactEmail: box.ContactEmail,
		StatusId:     status.Id,
		Created:      status.Created,
	}
}

// NSQNotifier publishes box notifications to an NSQ topic. A separate
// consumer turns them into email for the box contacts.
type NSQNotifier struct {
	producer *nsq.Producer
	topic    string
	logger   *logging.Logger
}

// NewNSQNotifier connects to the nsqd at nsqdAddress (host:port of
// its TCP interface). Notifications are published to topic.
func NewNSQNotifier(nsqdAddress, topic string, logger *logging.Logger) (*NSQNotifier, error) {
	producer, err := nsq.NewProducer(nsqdAddress, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("Cannot create NSQ producer for %s: %v", nsqdAddress, err)
	}
	producer.SetLogger(&nsqLogger{logger: logger}, nsq.LogLevelWarning)
	return &NSQNotifier{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}, nil
}

func (notifier *NSQNotifier) Unreachable(box *models.Box, status *models.BoxStatus) error {
	return notifier.publish(NewUnreachableNotification(box, status))
}

func (notifier *NSQNotifier) FreeSpaceWarning(box *models.Box, status *models.BoxStatus, spaces []*models.RepositorySpace) error {
	return notifier.publish(NewFreeSpaceNotification(box, status, spaces))
}

func (notifier *NSQNotifier) publish(notification *BoxNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("Cannot encode %s notification: %v", notification.Event, err)
	}
	err = notifier.producer.Publish(notifier.topic, body)
	if err != nil {
		return fmt.Errorf("Cannot publish %s notification to %s: %v",
			notification.Event, notifier.topic, err)
	}
	notifier.logger.Infof("Published %s notification for box %s", notification.Event, notification.Hostname)
	return nil
}

// Stop disconnects from nsqd.
func (notifier *NSQNotifier) Stop() {
	notifier.producer.Stop()
}

// nsqLogger sends go-nsq's log output to our logger.
type nsqLogger struct {
	logger *logging.Logger
}

func (l *nsqLogger) Output(calldepth int, s string) error {
	l.logger.Warning(s)
	return nil
}

// LogNotifier writes notifications to the log. We use it when no
// nsqd is configured, and in dry runs.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (notifier *LogNotifier) Unreachable(box *models.Box, status *models.BoxStatus) error {
	notifier.logger.Warning(NewUnreachableNotification(box, status).Message)
	return nil
}

func (notifier *LogNotifier) FreeSpaceWarning(box *models.Box, status *models.BoxStatus, spaces []*models.RepositorySpace) error {
	notifier.logger.Warning(NewFreeSpaceNotification(box, status, spaces).Message)
	return nil
}

func (notifier *LogNotifier) Stop() {}
