// Package launcher is the execution handler: it runs when a wake timer
// fires, resolves the target application, attempts a direct launch, and
// falls back to a notification when the host blocks background starts.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appsched/internal/apps"
	"appsched/internal/eventbus"
	"appsched/internal/keyed"
	"appsched/internal/notifier"
	"appsched/internal/storage"
	logx "appsched/pkg/logx"
	"appsched/pkg/timeutil"
)

// handleTimeout bounds one complete fire handling, storage writes included.
const handleTimeout = 30 * time.Second

// Notifier is the slice of the notification pipeline the handler needs.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

type Handler struct {
	log   logx.Logger
	store storage.Store
	dir   apps.Directory
	notif Notifier
	locks *keyed.Mutex
	bus   eventbus.Bus

	now func() time.Time
}

func New(store storage.Store, dir apps.Directory, notif Notifier, locks *keyed.Mutex, bus eventbus.Bus, log logx.Logger) *Handler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if locks == nil {
		locks = keyed.New()
	}
	return &Handler{
		log:   log,
		store: store,
		dir:   dir,
		notif: notif,
		locks: locks,
		bus:   bus,
		now:   time.Now,
	}
}

// HandleFire processes one timer fire for the given schedule id. Every
// branch is terminal and produces exactly one execution log row; no error
// escapes to the timer callback.
//
// Branch order: missing schedule, not pending, app not installed, direct
// launch, notification fallback.
func (h *Handler) HandleFire(ctx context.Context, id int64) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	// Exclusive with engine operations on the same id: a reschedule or
	// cancel racing this fire sees either the pre-fire or post-fire state,
	// never a half-processed one.
	unlock := h.locks.Lock(id)
	defer unlock()

	log := h.log.With(logx.Int64("schedule_id", id))

	sc, err := h.store.GetSchedule(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("timer fired for unknown schedule")
		h.appendLog(ctx, id, storage.OutcomeScheduleNotFound, "")
		return
	}
	if err != nil {
		// Storage failure: nothing sane to do but log; no retry by design.
		log.Error("schedule lookup failed", logx.Err(err))
		return
	}

	if sc.Status != storage.StatusPending {
		// Cancelled between fire scheduling and execution, or a stale
		// timer for an already-terminal schedule.
		log.Debug("schedule no longer pending", logx.String("status", string(sc.Status)))
		h.appendLog(ctx, id, storage.OutcomeDisabled, string(sc.Status))
		return
	}

	handle, err := h.dir.Resolve(ctx, sc.PackageID)
	if errors.Is(err, apps.ErrNotInstalled) {
		log.Warn("target application not installed", logx.String("package", sc.PackageID))
		h.appendLog(ctx, id, storage.OutcomeAppNotInstalled, sc.PackageID)
		h.finish(ctx, sc, storage.StatusFailed)
		return
	}
	if err != nil {
		log.Error("application lookup failed", logx.String("package", sc.PackageID), logx.Err(err))
		h.appendLog(ctx, id, storage.OutcomeAppNotInstalled, err.Error())
		h.finish(ctx, sc, storage.StatusFailed)
		return
	}

	if err := handle.Launch(ctx); err != nil {
		// Direct launch refused; hand the intent to the user as an
		// actionable notification. The scheduling intent is considered
		// fulfilled either way, so the schedule ends EXECUTED.
		log.Info("direct launch blocked; notifying",
			logx.String("package", sc.PackageID),
			logx.Err(err))
		h.sendFallback(ctx, sc)
		h.appendLog(ctx, id, storage.OutcomeNotificationSent, err.Error())
		h.finish(ctx, sc, storage.StatusExecuted)
		return
	}

	log.Info("application launched", logx.String("package", sc.PackageID))
	h.appendLog(ctx, id, storage.OutcomeSuccess, "launched directly")
	h.finish(ctx, sc, storage.StatusExecuted)
}

func (h *Handler) sendFallback(ctx context.Context, sc storage.Schedule) {
	if h.notif == nil {
		return
	}
	err := h.notif.Notify(ctx, notifier.Notification{
		Title:      fmt.Sprintf("Scheduled: %s", sc.DisplayName),
		Body:       fmt.Sprintf("Open %s, scheduled for %s.", sc.DisplayName, timeutil.FormatTime(sc.ScheduledAt)),
		PackageID:  sc.PackageID,
		ScheduleID: sc.ID,
	})
	if err != nil {
		h.log.Warn("fallback notification not queued",
			logx.Int64("schedule_id", sc.ID),
			logx.Err(err))
	}
}

// finish moves the schedule to its terminal status and stamps executed_at.
func (h *Handler) finish(ctx context.Context, sc storage.Schedule, status storage.Status) {
	now := h.now()
	sc.Status = status
	sc.ExecutedAt = &now
	if err := h.store.UpdateSchedule(ctx, sc); err != nil {
		h.log.Error("schedule status update failed",
			logx.Int64("schedule_id", sc.ID),
			logx.String("status", string(status)),
			logx.Err(err))
		return
	}
	typ := eventbus.TypeScheduleExecuted
	if status == storage.StatusFailed {
		typ = eventbus.TypeScheduleFailed
	}
	h.publish(typ, sc)
}

func (h *Handler) appendLog(ctx context.Context, scheduleID int64, outcome storage.Outcome, details string) {
	_, err := h.store.AppendExecutionLog(ctx, storage.ExecutionLog{
		ScheduleID:  scheduleID,
		AttemptedAt: h.now(),
		Outcome:     outcome,
		Details:     details,
	})
	if err != nil {
		h.log.Error("execution log append failed",
			logx.Int64("schedule_id", scheduleID),
			logx.String("outcome", string(outcome)),
			logx.Err(err))
		return
	}
	if h.bus != nil {
		h.bus.Publish(eventbus.Event{
			Type: eventbus.TypeExecutionLogged,
			Data: storage.ExecutionLog{ScheduleID: scheduleID, Outcome: outcome, Details: details},
		})
	}
}

func (h *Handler) publish(typ string, sc storage.Schedule) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(eventbus.Event{Type: typ, Data: engineEvent(sc)})
}

// engineEvent mirrors engine.ScheduleEvent without importing the engine
// package (the handler must stay import-free of the engine to avoid a cycle
// through the restore path).
type scheduleEvent struct {
	ID          int64          `json:"id"`
	PackageID   string         `json:"package_id"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	Status      storage.Status `json:"status"`
}

func engineEvent(sc storage.Schedule) scheduleEvent {
	return scheduleEvent{ID: sc.ID, PackageID: sc.PackageID, ScheduledAt: sc.ScheduledAt, Status: sc.Status}
}
