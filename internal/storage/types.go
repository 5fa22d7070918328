package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups and updates that reference an unknown id.
var ErrNotFound = errors.New("storage: not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (the default durable backend)
//   - "memory": in-process backend (tests, ephemeral runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Status is the lifecycle state of a schedule.
//
// PENDING is the only active state; the rest are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuted  Status = "EXECUTED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool { return s != StatusPending }

// Outcome classifies one execution attempt in the audit log.
type Outcome string

const (
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeNotificationSent Outcome = "NOTIFICATION_SENT"
	OutcomeAppNotInstalled  Outcome = "APP_NOT_INSTALLED"
	OutcomeScheduleNotFound Outcome = "SCHEDULE_NOT_FOUND"
	OutcomeDisabled         Outcome = "DISABLED"
)

// Schedule is one durable scheduling intent: launch PackageID at ScheduledAt.
//
// ID is assigned by the store on insert and is the join key between the
// schedule, its wake timer, and its execution log entries.
type Schedule struct {
	ID          int64
	PackageID   string
	DisplayName string
	ScheduledAt time.Time
	Status      Status
	CreatedAt   time.Time
	ExecutedAt  *time.Time
}

// ExecutionLog records the outcome of one attempt to act on a schedule.
// Entries are append-only and survive deletion of the schedule they reference.
type ExecutionLog struct {
	ID          int64
	ScheduleID  int64
	AttemptedAt time.Time
	Outcome     Outcome
	Details     string
}
