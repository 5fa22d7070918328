package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is the dependency-free in-process backend. It mirrors the sqlite
// driver's semantics (id assignment, not-found errors, window inclusivity)
// so the engine and handler can be exercised against it in tests.
type memStore struct {
	mu sync.Mutex

	nextScheduleID int64
	nextLogID      int64
	schedules      map[int64]Schedule
	logs           []ExecutionLog
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{schedules: map[int64]Schedule{}}
}

func (m *memStore) Close() error { return nil }

func (m *memStore) InsertSchedule(_ context.Context, s Schedule) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	m.nextScheduleID++
	s.ID = m.nextScheduleID
	m.schedules[s.ID] = s
	return s.ID, nil
}

func (m *memStore) GetSchedule(_ context.Context, id int64) (Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) UpdateSchedule(_ context.Context, s Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[s.ID]; !ok {
		return ErrNotFound
	}
	m.schedules[s.ID] = s
	return nil
}

func (m *memStore) DeleteSchedule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *memStore) ListSchedules(_ context.Context) ([]Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(func(Schedule) bool { return true }), nil
}

func (m *memStore) ListSchedulesByStatus(_ context.Context, status Status) ([]Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(func(s Schedule) bool { return s.Status == status }), nil
}

func (m *memStore) ListConflicting(_ context.Context, start, end time.Time) ([]Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked(func(s Schedule) bool {
		if s.Status != StatusPending {
			return false
		}
		// inclusive at both edges, millisecond granularity like the sqlite driver
		ms := s.ScheduledAt.UnixMilli()
		return ms >= start.UnixMilli() && ms <= end.UnixMilli()
	}), nil
}

func (m *memStore) sortedLocked(keep func(Schedule) bool) []Schedule {
	out := make([]Schedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) AppendExecutionLog(_ context.Context, e ExecutionLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.AttemptedAt.IsZero() {
		e.AttemptedAt = time.Now()
	}
	m.nextLogID++
	e.ID = m.nextLogID
	m.logs = append(m.logs, e)
	return e.ID, nil
}

func (m *memStore) ListExecutionLogs(_ context.Context, scheduleID int64) ([]ExecutionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ExecutionLog
	for _, e := range m.logs {
		if e.ScheduleID == scheduleID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptedAt.After(out[j].AttemptedAt) })
	return out, nil
}

func (m *memStore) PruneExecutionLogs(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.logs[:0]
	var removed int64
	for _, e := range m.logs {
		if e.AttemptedAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.logs = kept
	return removed, nil
}
