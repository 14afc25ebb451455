package scheduler

import "time"

// inWindow reports whether t's local hour falls inside [start, end). A window
// with end < start wraps past midnight (22 -> 6 covers the night). start ==
// end means the window is always open.
func inWindow(t time.Time, start, end int) bool {
	if start == end {
		return true
	}
	h := t.Hour()
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}
