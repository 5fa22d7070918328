// Package alarm is the process-local stand-in for the platform's exact wake
// timer service: one one-shot timer per schedule id, replace-on-register,
// idempotent cancel. Timers do not survive a restart; the engine re-arms them
// from the store on startup.
package alarm

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	logx "appsched/pkg/logx"
)

// FireFunc is invoked on a background goroutine when a timer fires.
// It must not block indefinitely; the handler owns its own timeouts.
type FireFunc func(ctx context.Context, id int64)

type Service struct {
	mu sync.Mutex

	log  logx.Logger
	fire FireFunc

	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	timers map[int64]*time.Timer
	// ver discards stale callbacks from timers that were replaced or
	// cancelled between AfterFunc scheduling and callback execution.
	ver map[int64]uint64
}

func New(log logx.Logger, fire FireFunc) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		fire:   fire,
		timers: map[int64]*time.Timer{},
		ver:    map[int64]uint64{},
	}
}

// Start binds the service to ctx. Fires after ctx is cancelled are suppressed.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
}

// Stop cancels all armed timers. Registered ids are forgotten; re-arming
// after a restart is the engine's job.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		_ = t.Stop()
	}
	s.timers = map[int64]*time.Timer{}
	s.ver = map[int64]uint64{}
	if s.cancel != nil {
		s.cancel()
	}
	s.started = false
}

// Register arms (or re-arms) the timer for id to fire at the given time.
// A past time fires immediately.
func (s *Service) Register(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
		delete(s.timers, id)
	}
	ver := s.ver[id] + 1
	s.ver[id] = ver

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	localID := id
	localVer := ver
	s.timers[id] = time.AfterFunc(delay, func() { s.fired(localID, localVer) })
	s.log.Debug("wake timer armed",
		logx.Int64("schedule_id", id),
		logx.Time("at", at),
		logx.Duration("in", delay))
}

// Cancel disarms the timer for id. Cancelling an unknown or already-fired
// timer is not an error.
func (s *Service) Cancel(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		_ = t.Stop()
		delete(s.timers, id)
	}
	// Bump even without an armed timer so an in-flight callback is dropped.
	s.ver[id]++
}

// Armed returns the ids with a currently armed timer, ascending.
func (s *Service) Armed() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.timers))
	for id := range s.timers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *Service) fired(id int64, ver uint64) {
	s.mu.Lock()
	if s.ver[id] != ver {
		// replaced or cancelled since this callback was scheduled
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	ctx := s.ctx
	fire := s.fire
	started := s.started
	s.mu.Unlock()

	if !started || fire == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in timer fire",
					logx.Int64("schedule_id", id),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
			}
		}()
		fire(ctx, id)
	}()
}
