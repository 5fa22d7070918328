// Package timeutil holds the pure time helpers shared by the engine and
// presentation surfaces: epoch-millis conversions, human formatting, and
// the symmetric conflict window used to reject near-coincident schedules.
package timeutil

import (
	"fmt"
	"time"
)

// ConflictWindow is the half-width of the window inside which two pending
// schedules are considered to collide. A candidate time t conflicts with an
// existing time u when |t-u| <= ConflictWindow (inclusive at both edges).
const ConflictWindow = 60 * time.Second

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts epoch milliseconds to a local time.Time.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

// Window returns the inclusive [start, end] conflict window around t.
func Window(t time.Time) (start, end time.Time) {
	return t.Add(-ConflictWindow), t.Add(ConflictWindow)
}

// IsPast reports whether t is at or before now.
func IsPast(t, now time.Time) bool { return !t.After(now) }

// FormatTime renders a 12-hour clock time, e.g. "02:30 PM".
func FormatTime(t time.Time) string { return t.Format("03:04 PM") }

// FormatDate renders a date, e.g. "Dec 25, 2024".
func FormatDate(t time.Time) string { return t.Format("Jan 02, 2006") }

// FormatDateTime renders a full timestamp, e.g. "Dec 25, 2024 at 02:30 PM".
func FormatDateTime(t time.Time) string { return t.Format("Jan 02, 2006 at 03:04 PM") }

// FormatShort renders a compact timestamp, e.g. "12/25 02:30 PM".
func FormatShort(t time.Time) string { return t.Format("01/02 03:04 PM") }

// Remaining renders the time left until t as a short human string.
// Past times render as "overdue".
func Remaining(t, now time.Time) string {
	d := t.Sub(now)
	if d <= 0 {
		return "overdue"
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	mins := int(d/time.Minute) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
