package engine

import "errors"

// Sentinel errors surfaced synchronously to engine callers. None of them
// leave any state behind: a failed operation mutates neither the store nor
// the timer service.
var (
	// ErrInvalidTime rejects schedule times that are not strictly in the future.
	ErrInvalidTime = errors.New("engine: scheduled time must be in the future")

	// ErrTimeConflict rejects times within the conflict window of another
	// pending schedule.
	ErrTimeConflict = errors.New("engine: another schedule is too close to that time")

	// ErrNotFound is returned for operations on an unknown schedule id.
	ErrNotFound = errors.New("engine: schedule not found")
)
