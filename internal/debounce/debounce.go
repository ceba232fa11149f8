// Package debounce coalesces bursts of reschedule requests into a single call.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet window used by the app.
const DefaultDelay = 300 * time.Millisecond

// Trigger is a last-write-wins delayed call: each request cancels the pending
// one and re-arms the quiet window. It is not a queue.
type Trigger struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	seq     uint64
	stopped bool
}

// New returns a Trigger that runs fn once delay has passed without a new request.
// fn runs on its own goroutine.
func New(delay time.Duration, fn func()) *Trigger {
	return &Trigger{delay: delay, fn: fn}
}

// RequestReschedule (re)arms the quiet window.
func (t *Trigger) RequestReschedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.seq++
	seq := t.seq
	t.timer = time.AfterFunc(t.delay, func() { t.fire(seq) })
}

// fire runs fn unless a newer request or Stop invalidated seq. Stop on a
// timer whose func already started cannot prevent it, hence the check.
func (t *Trigger) fire(seq uint64) {
	t.mu.Lock()
	if t.stopped || seq != t.seq {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()
	t.fn()
}

// Pending reports whether a call is armed.
func (t *Trigger) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// Flush runs an armed call immediately on the caller's goroutine.
// It reports whether anything was pending.
func (t *Trigger) Flush() bool {
	t.mu.Lock()
	if t.stopped || t.timer == nil {
		t.mu.Unlock()
		return false
	}
	t.timer.Stop()
	t.timer = nil
	t.seq++
	t.mu.Unlock()
	t.fn()
	return true
}

// Stop drops any armed call and ignores later requests.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
