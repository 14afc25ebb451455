package agent

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cardsync/internal/common"
)

func TestCardGuard_AcquireRelease(t *testing.T) {
	dir := t.TempDir()
	g := NewCardGuard(dir)
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx))
	assert.FileExists(t, filepath.Join(dir, lockFileName))

	require.NoError(t, g.Release(ctx))
	assert.NoFileExists(t, filepath.Join(dir, lockFileName))
}

func TestCardGuard_SecondAcquireIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, NewCardGuard(dir).Acquire(ctx))

	err := NewCardGuard(dir).Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrResourceUnavailable)
}

func TestCardGuard_ReleaseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	g := NewCardGuard(dir)
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx))
	require.NoError(t, g.Release(ctx))
	assert.NoError(t, g.Release(ctx))
}

func stubProcessAlive(t *testing.T, alive bool) {
	t.Helper()
	orig := processAlive
	processAlive = func(pid int) bool { return alive }
	t.Cleanup(func() { processAlive = orig })
}

func TestCardGuard_ReclaimsLockOfDeadProcess(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	// Lock left behind by a holder that crashed mid-session.
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte("999999"), 0o644))
	stubProcessAlive(t, false)

	g := NewCardGuard(dir)
	require.NoError(t, g.Acquire(ctx))

	// The reclaimed lock now records this process as the holder.
	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestCardGuard_LiveHolderStaysLocked(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte("12345"), 0o644))
	stubProcessAlive(t, true)

	err := NewCardGuard(dir).Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrResourceUnavailable)
}

func TestCardGuard_UnparsableLockNotReclaimed(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte("not-a-pid"), 0o644))
	stubProcessAlive(t, false)

	err := NewCardGuard(dir).Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrResourceUnavailable)
}

func TestCardGuard_LockRecordsPid(t *testing.T) {
	dir := t.TempDir()
	g := NewCardGuard(dir)
	require.NoError(t, g.Acquire(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
