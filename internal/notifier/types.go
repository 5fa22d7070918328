package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// Notification is an actionable "open the application" prompt shown to the
// user when a direct launch could not be performed.
type Notification struct {
	Title      string
	Body       string
	PackageID  string // tap target: the application to open
	ScheduleID int64
}

// Sender delivers a notification over one surface (desktop, Telegram, ...).
type Sender interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

type HistoryItem struct {
	At    time.Time
	Title string
}

// Event is emitted on the event bus for notification lifecycle events.
const (
	TypeQueued  = "notification.queued"
	TypeSent    = "notification.sent"
	TypeFailed  = "notification.failed"
	TypeDropped = "notification.dropped"
)

type Event struct {
	ScheduleID int64     `json:"schedule_id"`
	PackageID  string    `json:"package_id"`
	At         time.Time `json:"at"`
	Error      string    `json:"error,omitempty"`
}
