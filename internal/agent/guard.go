package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/cardsync/internal/common"
	"github.com/dmitrijs2005/cardsync/internal/scheduler"
)

const lockFileName = ".cardsync.lock"

// processAlive is a test seam for the signal-0 liveness probe.
var processAlive = func(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// CardGuard claims exclusive use of the card mount through an O_EXCL lock
// file, so the agent and the host-facing reader never touch the card at the
// same time. The lock records the holder's PID; a lock whose holder is gone
// (crash or power loss mid-session) is reclaimed on the next Acquire instead
// of wedging the agent forever. Release is idempotent: removing an
// already-removed lock is not an error.
type CardGuard struct {
	dir string
}

// NewCardGuard returns a guard for the card mounted at dir.
func NewCardGuard(dir string) *CardGuard {
	return &CardGuard{dir: dir}
}

func (g *CardGuard) lockPath() string { return filepath.Join(g.dir, lockFileName) }

// Acquire takes the lock. A lock held by a live process reports
// common.ErrResourceUnavailable; a stale lock left by a dead process is
// removed and acquisition retried once.
func (g *CardGuard) Acquire(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(g.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			return f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("lock %s: %w", g.lockPath(), err)
		}
		if attempt == 0 && g.reclaimStale() {
			continue
		}
		return fmt.Errorf("card busy: %w", common.ErrResourceUnavailable)
	}
}

// reclaimStale removes the lock file if the PID it records no longer names a
// running process. An unreadable or unparsable lock is left alone: without a
// PID there is no safe way to tell a crashed holder from a live one.
func (g *CardGuard) reclaimStale() bool {
	data, err := os.ReadFile(g.lockPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	if processAlive(pid) {
		return false
	}
	return os.Remove(g.lockPath()) == nil
}

// Release drops the lock.
func (g *CardGuard) Release(ctx context.Context) error {
	if err := os.Remove(g.lockPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unlock %s: %w", g.lockPath(), err)
	}
	return nil
}

var _ scheduler.Resource = (*CardGuard)(nil)
