package session

import (
	"sync"
	"time"
)

// renewScheduler arranges a single one-shot callback at a token's expiry so
// renewal happens proactively instead of on a failing request. A stale timer
// must never fire against a newer session, so Schedule always replaces any
// pending callback.
type renewScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	now   func() time.Time
}

func newRenewScheduler(now func() time.Time) *renewScheduler {
	return &renewScheduler{now: now}
}

// Schedule cancels any previously scheduled callback and arranges fn to run
// at the given time. If the time is already past, fn fires immediately on
// its own goroutine without blocking the caller.
func (s *renewScheduler) Schedule(at time.Time, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(max(0, at.Sub(s.now())), fn)
}

// Cancel stops any pending callback. Safe to call with nothing scheduled.
func (s *renewScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
