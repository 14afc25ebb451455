// Package activity tracks when the host therapy device last used the shared
// card. Smart scheduling only starts a session once the host has been quiet
// for a configured threshold.
package activity

import (
	"sync"
	"time"
)

// Tracker remembers the most recent host activity observation. A single
// activity sample resets the inactivity clock; there is no debounce window.
// Safe for concurrent use: the probe goroutine feeds it while the control
// loop reads it.
type Tracker struct {
	mu   sync.Mutex
	last time.Time
}

// NewTracker returns a Tracker with no observed activity.
func NewTracker() *Tracker { return &Tracker{} }

// Observe records host activity at now.
func (t *Tracker) Observe(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.After(t.last) {
		t.last = now
	}
}

// LastActivity returns the most recent observation, zero if none.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// InactiveFor returns how long the host has been quiet as of now. Before any
// observation it returns the time since the zero time, i.e. effectively
// "inactive forever", so a freshly booted agent is not blocked.
func (t *Tracker) InactiveFor(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := now.Sub(t.last)
	if d < 0 {
		return 0
	}
	return d
}
