// Package antispam throttles how often a single connection may repeat an
// expensive action, such as rewriting the record store.
package antispam

import (
	"sync"
	"time"
)

// Config holds throttle settings.
type Config struct {
	// MaxEvents allowed inside Window. 0 disables the throttle.
	MaxEvents int
	Window    time.Duration
}

// CheckResult is the outcome of a Check.
type CheckResult struct {
	Allowed bool
	// Wait is how long until the oldest event leaves the window.
	Wait time.Duration
}

// WaitSeconds rounds Wait up to whole seconds for display.
func (r CheckResult) WaitSeconds() int {
	if r.Wait <= 0 {
		return 0
	}
	return int((r.Wait + time.Second - 1) / time.Second)
}

// Tracker keeps the recent event times of one connection.
type Tracker struct {
	mu     sync.Mutex
	config Config
	events []time.Time
	now    func() time.Time
}

// NewTracker creates a tracker with the given config.
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config: config,
		now:    time.Now,
	}
}

// Enabled reports whether the tracker limits anything.
func (t *Tracker) Enabled() bool {
	return t.config.MaxEvents > 0 && t.config.Window > 0
}

// Check records an event if it fits in the window.
// A rejected event is not recorded.
func (t *Tracker) Check() CheckResult {
	if !t.Enabled() {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.config.Window)

	kept := t.events[:0]
	for _, at := range t.events {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	t.events = kept

	if len(t.events) >= t.config.MaxEvents {
		return CheckResult{
			Allowed: false,
			Wait:    t.events[0].Add(t.config.Window).Sub(now),
		}
	}

	t.events = append(t.events, now)
	return CheckResult{Allowed: true}
}

// Reset forgets every recorded event.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}
