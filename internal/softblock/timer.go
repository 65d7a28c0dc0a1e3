// Package softblock implements the countdown that gates rejected domains
// for a grace period before enforcement escalates to a hard block.
//
// The timer is a pure state machine: Idle (not running), Running, Paused.
// Something else owns the clock: the engine calls TickDown at 1 Hz and
// reacts to the expiry it reports. Exactly one timer exists per daemon, no
// matter how many tabs sit on rejected domains.
package softblock

import "sync"

const DefaultTimeoutMinutes = 5

type Status struct {
	RemainingSecs int  `json:"remaining_secs"`
	Running       bool `json:"running"`
	Paused        bool `json:"paused"`
}

type Timer struct {
	mu        sync.Mutex
	remaining int
	running   bool
	paused    bool
}

func NewTimer() *Timer {
	return &Timer{}
}

// Start begins (or restarts) the countdown seeded from the timeout in
// minutes. With preserve set and time still on the clock, the remaining
// value is kept instead of reseeding, used when a countdown survives a
// transient stop. Returns the remaining seconds after seeding.
func (t *Timer) Start(timeoutMinutes int, preserve bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !(preserve && t.remaining > 0) {
		if timeoutMinutes <= 0 {
			timeoutMinutes = DefaultTimeoutMinutes
		}
		t.remaining = timeoutMinutes * 60
	}
	t.running = true
	t.paused = false
	return t.remaining
}

// Pause suspends a running countdown, preserving the remaining time.
// Reports whether a transition happened.
func (t *Timer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return false
	}
	t.paused = true
	return true
}

// Resume continues a paused countdown if time remains. Reports whether a
// transition happened.
func (t *Timer) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused || t.remaining <= 0 {
		return false
	}
	t.paused = false
	return true
}

// TickDown advances the countdown by one second. It is a no-op unless the
// timer is Running and not Paused. Expiry transitions the timer back to
// Idle and reports expired=true exactly once.
func (t *Timer) TickDown() (remaining int, expired bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return t.remaining, false
	}
	if t.remaining > 0 {
		t.remaining--
	}
	if t.remaining <= 0 {
		t.running = false
		return 0, true
	}
	return t.remaining, false
}

// Status returns a copy of the current state.
func (t *Timer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{RemainingSecs: t.remaining, Running: t.running, Paused: t.paused}
}

// Live reports whether a countdown with time remaining exists, the guard
// the enforcer uses to keep Start idempotent while Running.
func (t *Timer) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.remaining > 0
}
