package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryScheduleCRUD(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	at := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	id, err := st.InsertSchedule(ctx, Schedule{
		PackageID:   "org.gnome.Calculator",
		DisplayName: "Calculator",
		ScheduledAt: at,
		Status:      StatusPending,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == 0 {
		t.Fatal("expected assigned id")
	}

	sc, err := st.GetSchedule(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sc.PackageID != "org.gnome.Calculator" || !sc.ScheduledAt.Equal(at) {
		t.Fatalf("unexpected record: %+v", sc)
	}

	sc.Status = StatusCancelled
	if err := st.UpdateSchedule(ctx, sc); err != nil {
		t.Fatalf("update: %v", err)
	}
	sc, _ = st.GetSchedule(ctx, id)
	if sc.Status != StatusCancelled {
		t.Fatalf("status = %s, want %s", sc.Status, StatusCancelled)
	}

	if err := st.DeleteSchedule(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetSchedule(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete: %v, want ErrNotFound", err)
	}
	if err := st.DeleteSchedule(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v, want ErrNotFound", err)
	}
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	if _, err := st.GetSchedule(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: %v, want ErrNotFound", err)
	}
	if err := st.UpdateSchedule(ctx, Schedule{ID: 42}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update: %v, want ErrNotFound", err)
	}
}

func TestMemoryListOrdering(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	base := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	// insert out of order
	for _, off := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		if _, err := st.InsertSchedule(ctx, Schedule{
			PackageID:   "app",
			ScheduledAt: base.Add(off),
			Status:      StatusPending,
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	all, err := st.ListSchedules(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ScheduledAt.Before(all[i-1].ScheduledAt) {
			t.Fatalf("not ascending at %d: %v then %v", i, all[i-1].ScheduledAt, all[i].ScheduledAt)
		}
	}
}

func TestMemoryListConflictingWindow(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	center := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	mk := func(off time.Duration, status Status) int64 {
		id, err := st.InsertSchedule(ctx, Schedule{
			PackageID:   "app",
			ScheduledAt: center.Add(off),
			Status:      status,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		return id
	}

	inLow := mk(-60*time.Second, StatusPending)  // inclusive edge
	inHigh := mk(60*time.Second, StatusPending)  // inclusive edge
	mk(-60*time.Second-time.Millisecond, StatusPending) // just outside
	mk(60*time.Second+time.Millisecond, StatusPending)  // just outside
	mk(0, StatusCancelled)                              // non-pending ignored

	rows, err := st.ListConflicting(ctx, center.Add(-60*time.Second), center.Add(60*time.Second))
	if err != nil {
		t.Fatalf("list conflicting: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len = %d, want 2 (%+v)", len(rows), rows)
	}
	got := map[int64]bool{rows[0].ID: true, rows[1].ID: true}
	if !got[inLow] || !got[inHigh] {
		t.Fatalf("wrong rows: %v", got)
	}
}

func TestMemoryExecutionLogs(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	for i, outcome := range []Outcome{OutcomeSuccess, OutcomeNotificationSent} {
		_, err := st.AppendExecutionLog(ctx, ExecutionLog{
			ScheduleID:  7,
			AttemptedAt: now.Add(time.Duration(i) * time.Minute),
			Outcome:     outcome,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := st.AppendExecutionLog(ctx, ExecutionLog{ScheduleID: 8, AttemptedAt: now, Outcome: OutcomeDisabled}); err != nil {
		t.Fatalf("append: %v", err)
	}

	logs, err := st.ListExecutionLogs(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len = %d, want 2", len(logs))
	}
	// newest first
	if logs[0].AttemptedAt.Before(logs[1].AttemptedAt) {
		t.Fatal("expected newest-first ordering")
	}

	removed, err := st.PruneExecutionLogs(ctx, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	logs, _ = st.ListExecutionLogs(ctx, 7)
	if len(logs) != 1 {
		t.Fatalf("after prune len = %d, want 1", len(logs))
	}
}

func TestTerminalStatuses(t *testing.T) {
	cases := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusExecuted, true},
		{StatusCancelled, true},
		{StatusFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s: Terminal = %v, want %v", tc.status, got, tc.terminal)
		}
	}
}
