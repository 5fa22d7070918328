// Package engine owns the mapping from schedule records to wake timers:
// conflict checking before a schedule is committed, timer registration and
// cancellation, and re-arming timers from the store after a restart.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"appsched/internal/eventbus"
	"appsched/internal/keyed"
	"appsched/internal/storage"
	logx "appsched/pkg/logx"
)

// TimerService is the wake timer surface the engine drives. Register with a
// given id replaces any previous timer for that id; Cancel is idempotent.
type TimerService interface {
	Register(id int64, at time.Time)
	Cancel(id int64)
}

// FireFunc runs the execution handler for a schedule id. The engine only
// uses it for missed schedules during RestoreAll when configured to do so.
type FireFunc func(ctx context.Context, id int64)

// Config controls engine behavior.
type Config struct {
	// FireMissedOnRestore hands schedules whose time elapsed while the
	// process was down straight to the execution handler during RestoreAll.
	// Off by default: missed schedules stay PENDING without a timer.
	FireMissedOnRestore bool
}

type Engine struct {
	cfg    Config
	log    logx.Logger
	store  storage.Store
	timers TimerService
	locks  *keyed.Mutex
	bus    eventbus.Bus
	fire   FireFunc

	// admitMu serializes every conflict-scan-then-commit section. Two
	// concurrent admissions inside the same window must not both pass the
	// scan before either commits.
	admitMu sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// ScheduleEvent is the bus payload for schedule lifecycle events.
type ScheduleEvent struct {
	ID          int64          `json:"id"`
	PackageID   string         `json:"package_id"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	Status      storage.Status `json:"status"`
}

// Snapshot is a point-in-time view of the engine for status surfaces.
type Snapshot struct {
	Pending   int `json:"pending"`
	Executed  int `json:"executed"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

func New(cfg Config, store storage.Store, timers TimerService, locks *keyed.Mutex, bus eventbus.Bus, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	if locks == nil {
		locks = keyed.New()
	}
	return &Engine{
		cfg:    cfg,
		log:    log,
		store:  store,
		timers: timers,
		locks:  locks,
		bus:    bus,
		now:    time.Now,
	}
}

// SetFireFunc installs the execution handler used for missed schedules.
// Wired after construction because the handler and engine are built
// independently at bootstrap.
func (e *Engine) SetFireFunc(fn FireFunc) { e.fire = fn }

// Create validates and persists a new PENDING schedule and arms its wake
// timer. It returns the assigned schedule id.
//
// The insert and the timer registration are not atomic across a crash; a
// schedule persisted without a timer is repaired by RestoreAll on the next
// start.
func (e *Engine) Create(ctx context.Context, packageID, displayName string, at time.Time) (int64, error) {
	now := e.now()
	if !at.After(now) {
		return 0, ErrInvalidTime
	}
	e.admitMu.Lock()
	defer e.admitMu.Unlock()

	conflict, err := e.hasConflict(ctx, at, 0)
	if err != nil {
		return 0, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		return 0, ErrTimeConflict
	}

	id, err := e.store.InsertSchedule(ctx, storage.Schedule{
		PackageID:   packageID,
		DisplayName: displayName,
		ScheduledAt: at,
		Status:      storage.StatusPending,
		CreatedAt:   now,
	})
	if err != nil {
		return 0, fmt.Errorf("insert schedule: %w", err)
	}

	e.timers.Register(id, at)
	e.publish(eventbus.TypeScheduleCreated, ScheduleEvent{ID: id, PackageID: packageID, ScheduledAt: at, Status: storage.StatusPending})
	e.log.Info("schedule created",
		logx.Int64("schedule_id", id),
		logx.String("package", packageID),
		logx.Time("at", at))
	return id, nil
}

// Reschedule moves an existing schedule to a new time, replacing its wake
// timer. Status is left unchanged.
func (e *Engine) Reschedule(ctx context.Context, id int64, newAt time.Time) error {
	if !newAt.After(e.now()) {
		return ErrInvalidTime
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	e.admitMu.Lock()
	defer e.admitMu.Unlock()

	sc, err := e.store.GetSchedule(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}

	conflict, err := e.hasConflict(ctx, newAt, id)
	if err != nil {
		return fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		return ErrTimeConflict
	}

	e.timers.Cancel(id)
	sc.ScheduledAt = newAt
	if err := e.store.UpdateSchedule(ctx, sc); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if sc.Status == storage.StatusPending {
		e.timers.Register(id, newAt)
	}
	e.publish(eventbus.TypeScheduleUpdated, ScheduleEvent{ID: id, PackageID: sc.PackageID, ScheduledAt: newAt, Status: sc.Status})
	e.log.Info("schedule moved", logx.Int64("schedule_id", id), logx.Time("at", newAt))
	return nil
}

// Cancel disarms the schedule's timer and marks it CANCELLED. Cancelling a
// schedule that is already terminal is a no-op; the record is retained for
// history.
func (e *Engine) Cancel(ctx context.Context, id int64) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	sc, err := e.store.GetSchedule(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}

	// Timer cancel is idempotent; safe even when no timer is armed.
	e.timers.Cancel(id)
	if sc.Status.Terminal() {
		return nil
	}
	sc.Status = storage.StatusCancelled
	if err := e.store.UpdateSchedule(ctx, sc); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	e.publish(eventbus.TypeScheduleCancelled, ScheduleEvent{ID: id, PackageID: sc.PackageID, ScheduledAt: sc.ScheduledAt, Status: storage.StatusCancelled})
	e.log.Info("schedule cancelled", logx.Int64("schedule_id", id))
	return nil
}

// Delete removes the schedule row, disarming its timer first when it is
// still pending. Execution log history is deliberately left in place.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	sc, err := e.store.GetSchedule(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get schedule: %w", err)
	}

	if sc.Status == storage.StatusPending {
		e.timers.Cancel(id)
	}
	if err := e.store.DeleteSchedule(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete schedule: %w", err)
	}
	e.publish(eventbus.TypeScheduleDeleted, ScheduleEvent{ID: id, PackageID: sc.PackageID, ScheduledAt: sc.ScheduledAt, Status: sc.Status})
	e.log.Info("schedule deleted", logx.Int64("schedule_id", id))
	return nil
}

// RestoreAll re-arms wake timers for all still-future PENDING schedules.
// It runs once per process start; timers never survive a restart.
//
// Per-record failures are isolated: one bad row must not abort recovery of
// the rest. It returns the number of timers armed.
func (e *Engine) RestoreAll(ctx context.Context) (int, error) {
	pending, err := e.store.ListSchedulesByStatus(ctx, storage.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	now := e.now()
	armed := 0
	missed := 0
	for _, sc := range pending {
		if ctx.Err() != nil {
			return armed, ctx.Err()
		}
		if sc.ScheduledAt.After(now) {
			e.timers.Register(sc.ID, sc.ScheduledAt)
			armed++
			continue
		}
		missed++
		if e.cfg.FireMissedOnRestore && e.fire != nil {
			e.log.Info("firing missed schedule", logx.Int64("schedule_id", sc.ID), logx.Time("was_due", sc.ScheduledAt))
			e.fire(ctx, sc.ID)
		} else {
			e.log.Warn("schedule missed while down; left pending",
				logx.Int64("schedule_id", sc.ID),
				logx.Time("was_due", sc.ScheduledAt))
		}
	}
	e.log.Info("timers restored", logx.Int("armed", armed), logx.Int("missed", missed))
	return armed, nil
}

// Snapshot returns current schedule counts by status.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	all, err := e.store.ListSchedules(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	for _, sc := range all {
		switch sc.Status {
		case storage.StatusPending:
			snap.Pending++
		case storage.StatusExecuted:
			snap.Executed++
		case storage.StatusCancelled:
			snap.Cancelled++
		case storage.StatusFailed:
			snap.Failed++
		}
	}
	return snap, nil
}

func (e *Engine) publish(typ string, data ScheduleEvent) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
