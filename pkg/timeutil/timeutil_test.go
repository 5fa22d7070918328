package timeutil

import (
	"testing"
	"time"
)

func TestWindowBounds(t *testing.T) {
	at := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	start, end := Window(at)
	if got := at.Sub(start); got != ConflictWindow {
		t.Fatalf("start offset = %v, want %v", got, ConflictWindow)
	}
	if got := end.Sub(at); got != ConflictWindow {
		t.Fatalf("end offset = %v, want %v", got, ConflictWindow)
	}
}

func TestMillisRoundTrip(t *testing.T) {
	at := time.Date(2026, 8, 31, 12, 0, 0, 500_000_000, time.UTC)
	ms := Millis(at)
	back := FromMillis(ms)
	if !back.Equal(at) {
		t.Fatalf("round trip: got %v, want %v", back, at)
	}
}

func TestIsPast(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before now", now.Add(-time.Second), true},
		{"exactly now", now, true},
		{"after now", now.Add(time.Second), false},
	}
	for _, tc := range cases {
		if got := IsPast(tc.at, now); got != tc.want {
			t.Errorf("%s: IsPast = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRemaining(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"days", now.Add(50 * time.Hour), "2d 2h"},
		{"hours", now.Add(3*time.Hour + 20*time.Minute), "3h 20m"},
		{"minutes", now.Add(45 * time.Minute), "45m"},
		{"under a minute", now.Add(30 * time.Second), "0m"},
		{"past", now.Add(-time.Minute), "overdue"},
		{"exactly now", now, "overdue"},
	}
	for _, tc := range cases {
		if got := Remaining(tc.at, now); got != tc.want {
			t.Errorf("%s: Remaining = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatting(t *testing.T) {
	at := time.Date(2024, 12, 25, 14, 30, 0, 0, time.UTC)
	if got := FormatTime(at); got != "02:30 PM" {
		t.Errorf("FormatTime = %q", got)
	}
	if got := FormatDate(at); got != "Dec 25, 2024" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatDateTime(at); got != "Dec 25, 2024 at 02:30 PM" {
		t.Errorf("FormatDateTime = %q", got)
	}
	if got := FormatShort(at); got != "12/25 02:30 PM" {
		t.Errorf("FormatShort = %q", got)
	}
}
