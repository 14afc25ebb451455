package timex

import "time"

// Clock supplies the current time. The production implementation reads the
// system clock (which carries a monotonic reading on all supported platforms);
// tests substitute a FakeClock. Consumers must clamp apparent backward jumps
// to zero rather than accumulating negative deltas.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FakeClock is a manually advanced Clock for tests.
type FakeClock struct {
	current time.Time
}

// NewFakeClock returns a FakeClock positioned at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{current: start}
}

func (c *FakeClock) Now() time.Time { return c.current }

// Advance moves the clock forward by d. Negative values are allowed so tests
// can simulate a misbehaving clock.
func (c *FakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

// Set positions the clock at t.
func (c *FakeClock) Set(t time.Time) { c.current = t }
