package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "appsched/pkg/logx"
)

// Store is the persistence API shared by the engine and the execution handler.
// Implementations must be safe for concurrent use from the presentation path
// and the background timer-fire path.
type Store interface {
	InsertSchedule(ctx context.Context, s Schedule) (int64, error)
	GetSchedule(ctx context.Context, id int64) (Schedule, error)
	UpdateSchedule(ctx context.Context, s Schedule) error
	DeleteSchedule(ctx context.Context, id int64) error

	ListSchedules(ctx context.Context) ([]Schedule, error)
	ListSchedulesByStatus(ctx context.Context, status Status) ([]Schedule, error)
	// ListConflicting returns PENDING schedules whose scheduled time lies in
	// the inclusive [start, end] window, ordered by scheduled time.
	ListConflicting(ctx context.Context, start, end time.Time) ([]Schedule, error)

	AppendExecutionLog(ctx context.Context, e ExecutionLog) (int64, error)
	ListExecutionLogs(ctx context.Context, scheduleID int64) ([]ExecutionLog, error)
	// PruneExecutionLogs deletes log rows attempted before the cutoff and
	// returns the number removed.
	PruneExecutionLogs(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
