package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_InactiveForGrowsUntilNextObservation(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

	tr.Observe(base)
	assert.Equal(t, 10*time.Minute, tr.InactiveFor(base.Add(10*time.Minute)))

	tr.Observe(base.Add(10 * time.Minute))
	assert.Equal(t, time.Duration(0), tr.InactiveFor(base.Add(10*time.Minute)))
}

func TestTracker_NoObservationMeansLongInactivity(t *testing.T) {
	tr := NewTracker()
	now := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

	assert.True(t, tr.InactiveFor(now) > 24*time.Hour)
	assert.True(t, tr.LastActivity().IsZero())
}

func TestTracker_IgnoresBackdatedObservations(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

	tr.Observe(base)
	tr.Observe(base.Add(-time.Hour))

	assert.Equal(t, base, tr.LastActivity())
}

func TestTracker_InactiveForNeverNegative(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

	tr.Observe(base.Add(time.Minute))
	assert.Equal(t, time.Duration(0), tr.InactiveFor(base))
}
