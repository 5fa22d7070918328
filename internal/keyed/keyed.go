// Package keyed provides per-key mutual exclusion. The engine and the
// execution handler share one Mutex so that operations on the same schedule
// id (reschedule vs. timer fire, cancel vs. fire) never interleave.
package keyed

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Mutex is a set of mutexes addressed by int64 key. Entries are created on
// first Lock and removed once no goroutine holds or waits on them, so the
// map stays bounded by the number of concurrently contended keys.
type Mutex struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

func New() *Mutex {
	return &Mutex{locks: map[int64]*entry{}}
}

// Lock acquires the mutex for key and returns its unlock function.
//
//	unlock := m.Lock(id)
//	defer unlock()
func (m *Mutex) Lock(key int64) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
		})
	}
}
