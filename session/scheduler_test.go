package session

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRenewScheduler_FiresAtPastTimeImmediately(t *testing.T) {
	s := newRenewScheduler(time.Now)

	fired := make(chan struct{})
	s.Schedule(time.Now().Add(-time.Minute), func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback for a past deadline never fired")
	}
}

func TestRenewScheduler_ScheduleReplacesPending(t *testing.T) {
	s := newRenewScheduler(time.Now)

	var firstFired atomic.Bool
	second := make(chan struct{})

	s.Schedule(time.Now().Add(50*time.Millisecond), func() { firstFired.Store(true) })
	s.Schedule(time.Now().Add(10*time.Millisecond), func() { close(second) })

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("replacement callback never fired")
	}

	// Give the original deadline time to pass, then check it stayed dead.
	time.Sleep(100 * time.Millisecond)
	if firstFired.Load() {
		t.Error("replaced callback fired anyway")
	}
}

func TestRenewScheduler_CancelStopsPending(t *testing.T) {
	s := newRenewScheduler(time.Now)

	var fired atomic.Bool
	s.Schedule(time.Now().Add(30*time.Millisecond), func() { fired.Store(true) })
	s.Cancel()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("cancelled callback fired")
	}
}

func TestRenewScheduler_CancelIsIdempotent(t *testing.T) {
	s := newRenewScheduler(time.Now)

	// Nothing scheduled yet; repeated cancels must not panic.
	s.Cancel()
	s.Cancel()

	s.Schedule(time.Now().Add(time.Hour), func() {})
	s.Cancel()
	s.Cancel()
}
