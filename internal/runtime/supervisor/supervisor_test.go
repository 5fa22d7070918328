package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGoRecoversPanic(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go("boom", func(context.Context) error {
		panic("kaput")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err == nil {
		t.Fatal("expected panic to surface as an error")
	}
}

func TestCancelOnError(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	s.Go("fails", func(context.Context) error {
		return errors.New("worker broke")
	})

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after error")
	}
	if s.Err() == nil {
		t.Fatal("expected first error to be recorded")
	}
}

func TestCleanStopIsNotAnError(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestGoRestartStopsOnNil(t *testing.T) {
	s := NewSupervisor(context.Background())
	runs := make(chan struct{}, 8)
	s.GoRestart("once", func(context.Context) error {
		runs <- struct{}{}
		return nil
	})

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("loop restarted after clean return: %d extra runs", len(runs))
	}
}

func TestGoRestartRetriesOnError(t *testing.T) {
	s := NewSupervisor(context.Background())
	runs := make(chan struct{}, 8)
	s.GoRestart("flaky", func(context.Context) error {
		runs <- struct{}{}
		return errors.New("transient")
	})

	// At least two runs proves a restart happened.
	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(3 * time.Second):
			t.Fatalf("run %d never happened", i+1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.Stop(ctx)
}
