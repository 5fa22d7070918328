package keyed

import (
	"sync"
	"testing"
	"time"
)

func TestMutualExclusionSameKey(t *testing.T) {
	m := New()
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(1)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	m := New()

	unlock1 := m.Lock(1)
	defer unlock1()

	done := make(chan struct{})
	go func() {
		unlock2 := m.Lock(2)
		unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	m := New()
	unlock := m.Lock(1)
	unlock()
	unlock() // second call must not panic or double-unlock

	// key must be lockable again
	unlock2 := m.Lock(1)
	unlock2()
}

func TestEntriesAreReclaimed(t *testing.T) {
	m := New()
	for i := int64(0); i < 100; i++ {
		unlock := m.Lock(i)
		unlock()
	}
	m.mu.Lock()
	n := len(m.locks)
	m.mu.Unlock()
	if n != 0 {
		t.Fatalf("map holds %d entries, want 0", n)
	}
}
