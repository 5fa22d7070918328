package engine

import (
	"context"
	"time"

	"appsched/pkg/timeutil"
)

// hasConflict reports whether another PENDING schedule lies within the
// ±60s window around candidate. excludeID lets a reschedule ignore its own
// prior record; pass 0 (never a valid id) to exclude nothing.
//
// A linear scan over the window is deliberate: cardinality is tens of
// schedules, and the inclusive ±60s semantics are load-bearing for callers.
func (e *Engine) hasConflict(ctx context.Context, candidate time.Time, excludeID int64) (bool, error) {
	start, end := timeutil.Window(candidate)
	rows, err := e.store.ListConflicting(ctx, start, end)
	if err != nil {
		return false, err
	}
	for _, sc := range rows {
		if sc.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}
