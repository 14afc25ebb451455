package agent

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardsync/internal/activity"
	"github.com/dmitrijs2005/cardsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewJSONLogger(io.Discard, slog.LevelError)
}

func TestActivityProbe_ObservesNewestMtime(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "20250601")
	require.NoError(t, os.Mkdir(sub, 0o755))

	recent := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(dir, recent.Add(-time.Hour), recent.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(sub, recent, recent))

	tracker := activity.NewTracker()
	NewActivityProbe(dir, tracker, testLogger()).Poll(context.Background())

	assert.WithinDuration(t, recent, tracker.LastActivity(), time.Second)
}

func TestActivityProbe_MissingDirLeavesTrackerUntouched(t *testing.T) {
	tracker := activity.NewTracker()
	p := NewActivityProbe(filepath.Join(t.TempDir(), "gone"), tracker, testLogger())

	p.Poll(context.Background())

	assert.True(t, tracker.LastActivity().IsZero())
}

func TestActivityProbe_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewActivityProbe(t.TempDir(), activity.NewTracker(), testLogger())
	err := p.Run(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
