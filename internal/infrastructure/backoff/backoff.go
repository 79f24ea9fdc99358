// Package backoff provides the shared reconnect policy used by every
// component that re-dials a dropped connection (the upstream event link and
// the register transport).
//
// Both callers need the same behaviour: after a failure, wait a fixed delay,
// then try again, with at most one retry armed at a time and a guaranteed
// stop on shutdown. Centralising it here means there is exactly one tested
// implementation.
package backoff

import (
	"sync"
	"time"
)

// Policy describes how reconnect attempts are scheduled.
// The zero value is invalid; use NewPolicy or set Delay explicitly.
type Policy struct {
	// Delay is the fixed wait between a failure and the next attempt.
	Delay time.Duration
}

// NewPolicy returns a fixed-delay policy.
func NewPolicy(delay time.Duration) Policy {
	return Policy{Delay: delay}
}

// Next returns the wait before the given attempt (1-based). The policy is
// fixed-delay today; attempt is accepted so callers don't change if the
// policy grows exponential behaviour later.
func (p Policy) Next(int) time.Duration {
	return p.Delay
}

// Timer schedules a single retry callback according to a Policy.
//
// At most one callback is armed at a time: arming while a retry is pending
// is a no-op. Stop cancels any pending callback and prevents future arming.
//
// Thread Safety: all methods are safe for concurrent use.
type Timer struct {
	policy Policy

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewTimer creates a retry timer with the given policy.
func NewTimer(policy Policy) *Timer {
	return &Timer{policy: policy}
}

// Arm schedules fn to run after the policy delay unless a retry is already
// pending or the timer has been stopped. Returns true if fn was scheduled.
func (t *Timer) Arm(fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.timer != nil {
		return false
	}

	t.timer = time.AfterFunc(t.policy.Next(1), func() {
		t.mu.Lock()
		t.timer = nil
		stopped := t.stopped
		t.mu.Unlock()

		if !stopped {
			fn()
		}
	})
	return true
}

// Pending reports whether a retry is currently scheduled.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Stop cancels any pending retry and prevents future arming.
// Safe to call multiple times.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
