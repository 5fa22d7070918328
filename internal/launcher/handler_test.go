package launcher

import (
	"context"
	"testing"
	"time"

	"appsched/internal/apps"
	"appsched/internal/notifier"
	"appsched/internal/storage"
	logx "appsched/pkg/logx"
)

type fakeHandle struct {
	err error
}

func (f fakeHandle) Launch(context.Context) error { return f.err }

type fakeDirectory struct {
	handles map[string]apps.Handle
}

func (f fakeDirectory) List(context.Context) ([]apps.App, error) { return nil, nil }

func (f fakeDirectory) Resolve(_ context.Context, id string) (apps.Handle, error) {
	h, ok := f.handles[id]
	if !ok {
		return nil, apps.ErrNotInstalled
	}
	return h, nil
}

type fakeNotifier struct {
	sent []notifier.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n notifier.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

var handlerNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func seedSchedule(t *testing.T, st storage.Store, status storage.Status) int64 {
	t.Helper()
	id, err := st.InsertSchedule(context.Background(), storage.Schedule{
		PackageID:   "org.gnome.Calculator",
		DisplayName: "Calculator",
		ScheduledAt: handlerNow,
		Status:      status,
		CreatedAt:   handlerNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func lastLog(t *testing.T, st storage.Store, id int64) storage.ExecutionLog {
	t.Helper()
	logs, err := st.ListExecutionLogs(context.Background(), id)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) == 0 {
		t.Fatal("no execution log written")
	}
	return logs[0]
}

func newTestHandler(st storage.Store, dir apps.Directory, n Notifier) *Handler {
	h := New(st, dir, n, nil, nil, logx.Nop())
	h.now = func() time.Time { return handlerNow }
	return h
}

func TestHandleFireDirectLaunch(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	id := seedSchedule(t, st, storage.StatusPending)

	dir := fakeDirectory{handles: map[string]apps.Handle{"org.gnome.Calculator": fakeHandle{}}}
	fn := &fakeNotifier{}
	h := newTestHandler(st, dir, fn)

	h.HandleFire(ctx, id)

	sc, _ := st.GetSchedule(ctx, id)
	if sc.Status != storage.StatusExecuted {
		t.Fatalf("status = %s, want EXECUTED", sc.Status)
	}
	if sc.ExecutedAt == nil || !sc.ExecutedAt.Equal(handlerNow) {
		t.Fatalf("executed_at = %v, want %v", sc.ExecutedAt, handlerNow)
	}
	if got := lastLog(t, st, id); got.Outcome != storage.OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS", got.Outcome)
	}
	if len(fn.sent) != 0 {
		t.Fatal("no notification expected on direct launch")
	}
}

func TestHandleFireLaunchBlocked(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	id := seedSchedule(t, st, storage.StatusPending)

	dir := fakeDirectory{handles: map[string]apps.Handle{
		"org.gnome.Calculator": fakeHandle{err: apps.ErrLaunchBlocked},
	}}
	fn := &fakeNotifier{}
	h := newTestHandler(st, dir, fn)

	h.HandleFire(ctx, id)

	sc, _ := st.GetSchedule(ctx, id)
	if sc.Status != storage.StatusExecuted {
		t.Fatalf("status = %s, want EXECUTED (fallback fulfils the intent)", sc.Status)
	}
	if got := lastLog(t, st, id); got.Outcome != storage.OutcomeNotificationSent {
		t.Fatalf("outcome = %s, want NOTIFICATION_SENT", got.Outcome)
	}
	if len(fn.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(fn.sent))
	}
	if fn.sent[0].PackageID != "org.gnome.Calculator" || fn.sent[0].ScheduleID != id {
		t.Fatalf("wrong notification: %+v", fn.sent[0])
	}
}

func TestHandleFireAppNotInstalled(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	id := seedSchedule(t, st, storage.StatusPending)

	h := newTestHandler(st, fakeDirectory{}, &fakeNotifier{})
	h.HandleFire(ctx, id)

	sc, _ := st.GetSchedule(ctx, id)
	if sc.Status != storage.StatusFailed {
		t.Fatalf("status = %s, want FAILED", sc.Status)
	}
	if got := lastLog(t, st, id); got.Outcome != storage.OutcomeAppNotInstalled {
		t.Fatalf("outcome = %s, want APP_NOT_INSTALLED", got.Outcome)
	}
}

func TestHandleFireScheduleMissing(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()

	h := newTestHandler(st, fakeDirectory{}, &fakeNotifier{})
	h.HandleFire(ctx, 404)

	if got := lastLog(t, st, 404); got.Outcome != storage.OutcomeScheduleNotFound {
		t.Fatalf("outcome = %s, want SCHEDULE_NOT_FOUND", got.Outcome)
	}
}

func TestHandleFireNotPending(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	id := seedSchedule(t, st, storage.StatusCancelled)

	dir := fakeDirectory{handles: map[string]apps.Handle{"org.gnome.Calculator": fakeHandle{}}}
	h := newTestHandler(st, dir, &fakeNotifier{})
	h.HandleFire(ctx, id)

	sc, _ := st.GetSchedule(ctx, id)
	if sc.Status != storage.StatusCancelled {
		t.Fatalf("status changed: %s", sc.Status)
	}
	if got := lastLog(t, st, id); got.Outcome != storage.OutcomeDisabled {
		t.Fatalf("outcome = %s, want DISABLED", got.Outcome)
	}
}

func TestHandleFireNotificationFailureStillExecutes(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemory()
	id := seedSchedule(t, st, storage.StatusPending)

	dir := fakeDirectory{handles: map[string]apps.Handle{
		"org.gnome.Calculator": fakeHandle{err: apps.ErrLaunchBlocked},
	}}
	fn := &fakeNotifier{err: notifier.ErrQueueFull}
	h := newTestHandler(st, dir, fn)

	h.HandleFire(ctx, id)

	// Enqueue failure is logged, not fatal; the schedule still resolves.
	sc, _ := st.GetSchedule(ctx, id)
	if sc.Status != storage.StatusExecuted {
		t.Fatalf("status = %s, want EXECUTED", sc.Status)
	}
}
