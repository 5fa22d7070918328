package alarm

import (
	"context"
	"sync"
	"testing"
	"time"

	logx "appsched/pkg/logx"
)

type fireRecorder struct {
	mu  sync.Mutex
	ids []int64
	ch  chan int64
}

func newFireRecorder() *fireRecorder {
	return &fireRecorder{ch: make(chan int64, 16)}
}

func (r *fireRecorder) fire(_ context.Context, id int64) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	r.ch <- id
}

func (r *fireRecorder) wait(t *testing.T, timeout time.Duration) int64 {
	t.Helper()
	select {
	case id := <-r.ch:
		return id
	case <-time.After(timeout):
		t.Fatal("timer did not fire in time")
		return 0
	}
}

func (r *fireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func TestRegisterFires(t *testing.T) {
	rec := newFireRecorder()
	s := New(logx.Nop(), rec.fire)
	s.Start(context.Background())
	defer s.Stop()

	s.Register(7, time.Now().Add(20*time.Millisecond))
	if id := rec.wait(t, time.Second); id != 7 {
		t.Fatalf("fired id = %d, want 7", id)
	}
}

func TestRegisterPastFiresImmediately(t *testing.T) {
	rec := newFireRecorder()
	s := New(logx.Nop(), rec.fire)
	s.Start(context.Background())
	defer s.Stop()

	s.Register(1, time.Now().Add(-time.Minute))
	rec.wait(t, time.Second)
}

func TestCancelPreventsFire(t *testing.T) {
	rec := newFireRecorder()
	s := New(logx.Nop(), rec.fire)
	s.Start(context.Background())
	defer s.Stop()

	s.Register(3, time.Now().Add(30*time.Millisecond))
	s.Cancel(3)

	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("fired %d times after cancel", rec.count())
	}
	// cancelling again (or an unknown id) is not an error
	s.Cancel(3)
	s.Cancel(999)
}

func TestRegisterReplacesPrevious(t *testing.T) {
	rec := newFireRecorder()
	s := New(logx.Nop(), rec.fire)
	s.Start(context.Background())
	defer s.Stop()

	// The first registration would fire quickly; replacing it must discard it.
	s.Register(5, time.Now().Add(20*time.Millisecond))
	s.Register(5, time.Now().Add(80*time.Millisecond))

	rec.wait(t, time.Second)
	time.Sleep(50 * time.Millisecond)
	if rec.count() != 1 {
		t.Fatalf("fired %d times, want exactly 1", rec.count())
	}
}

func TestArmedListing(t *testing.T) {
	s := New(logx.Nop(), func(context.Context, int64) {})
	s.Start(context.Background())
	defer s.Stop()

	far := time.Now().Add(time.Hour)
	s.Register(9, far)
	s.Register(2, far)
	s.Register(5, far)

	got := s.Armed()
	want := []int64{2, 5, 9}
	if len(got) != len(want) {
		t.Fatalf("armed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("armed = %v, want %v", got, want)
		}
	}

	s.Cancel(5)
	if got := s.Armed(); len(got) != 2 {
		t.Fatalf("armed after cancel = %v", got)
	}
}

func TestStopSuppressesFires(t *testing.T) {
	rec := newFireRecorder()
	s := New(logx.Nop(), rec.fire)
	s.Start(context.Background())

	s.Register(1, time.Now().Add(30*time.Millisecond))
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	if rec.count() != 0 {
		t.Fatalf("fired %d times after stop", rec.count())
	}
}
