package budget

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/cardsync/internal/timex"
)

// waitTime is the fixed cooldown between sessions. It is independent of the
// session duration and retry multiplier: the host device must get the card
// back for a predictable interval no matter how the last session went.
const waitTime = 5 * time.Minute

// Tracker converts a nominal session duration into an active-time budget and
// answers whether a prospective transfer still fits. Active time excludes
// intervals during which the tracker is paused (the card yielded back to the
// host mid-session).
//
// Tracker is safe for concurrent use: the control loop mutates it while the
// status endpoint reads the remaining budget and rate.
type Tracker struct {
	clock timex.Clock

	mu      sync.Mutex
	history RateHistory
	budget  time.Duration
	active  time.Duration
	paused  bool
	mark    time.Time
}

// NewTracker returns a Tracker reading time from clock.
func NewTracker(clock timex.Clock) *Tracker {
	return &Tracker{clock: clock}
}

// StartSession begins a new session of duration × retryMultiplier. The
// active-time accumulator and pause state are reset. A multiplier below 1 is
// treated as 1.
func (t *Tracker) StartSession(duration time.Duration, retryMultiplier int) {
	if retryMultiplier < 1 {
		retryMultiplier = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.budget = duration * time.Duration(retryMultiplier)
	t.active = 0
	t.paused = false
	t.mark = t.clock.Now()
}

// settleLocked folds wall time since the last mark into the active-time
// accumulator. Backward clock jumps contribute zero rather than a negative
// delta, keeping active time monotonic. Callers hold t.mu.
func (t *Tracker) settleLocked() {
	now := t.clock.Now()
	if !t.paused {
		if d := now.Sub(t.mark); d > 0 {
			t.active += d
		}
	}
	t.mark = now
}

// ActiveTime returns cumulative wall time spent unpaused since StartSession.
func (t *Tracker) ActiveTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settleLocked()
	return t.active
}

func (t *Tracker) remainingLocked() time.Duration {
	t.settleLocked()
	if t.active >= t.budget {
		return 0
	}
	return t.budget - t.active
}

// RemainingBudget returns the unconsumed portion of the session budget,
// never negative.
func (t *Tracker) RemainingBudget() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

// HasBudget reports whether any budget remains.
func (t *Tracker) HasBudget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked() > 0
}

// Pause freezes active-time accrual. Calling Pause while already paused is a
// no-op. Used when the card is yielded back to the host mid-session.
func (t *Tracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.paused {
		return
	}
	t.settleLocked()
	t.paused = true
}

// Resume restarts active-time accrual from the current clock reading.
// Calling Resume while already running is a no-op.
func (t *Tracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return
	}
	t.paused = false
	t.mark = t.clock.Now()
}

func (t *Tracker) estimateLocked(size int64) time.Duration {
	rate := t.history.Average()
	return time.Duration(float64(size) / rate * float64(time.Second))
}

// EstimateUploadTime predicts how long a transfer of size bytes will take at
// the averaged historical rate.
func (t *Tracker) EstimateUploadTime(size int64) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.estimateLocked(size)
}

// CanUploadFile reports whether a file of size bytes is expected to finish
// within the remaining budget.
func (t *Tracker) CanUploadFile(size int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.estimateLocked(size) <= t.remainingLocked()
}

// RecordUpload feeds an observed transfer back into the rate history.
// Zero-elapsed observations are ignored.
func (t *Tracker) RecordUpload(bytes int64, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history.Record(bytes, elapsed)
}

// Rate returns the current averaged throughput in bytes per second.
func (t *Tracker) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.Average()
}

// WaitTime returns the fixed cooldown to observe before the next session.
func (t *Tracker) WaitTime() time.Duration {
	return waitTime
}
