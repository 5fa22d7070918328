// Package storage persists schedules and their execution audit trail.
//
// Two tables: schedules (one row per scheduling intent, mutable status) and
// execution_logs (append-only, one row per execution attempt). Log rows are
// deliberately not cascade-deleted with their schedule; history outlives the
// intent that produced it.
package storage
