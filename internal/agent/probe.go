package agent

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/cardsync/internal/activity"
	"github.com/dmitrijs2005/cardsync/internal/logging"
)

// ActivityProbe feeds the activity tracker for smart scheduling by watching
// modification times on the card mount. The host device writes session data
// as it runs, so a fresh mtime on the root or any top-level folder means the
// host is active. Only directory metadata is read, which is safe without
// holding the card.
type ActivityProbe struct {
	dir     string
	tracker *activity.Tracker
	log     logging.Logger
}

// NewActivityProbe returns a probe watching dir.
func NewActivityProbe(dir string, tracker *activity.Tracker, log logging.Logger) *ActivityProbe {
	return &ActivityProbe{dir: dir, tracker: tracker, log: log}
}

// Poll samples mtimes once and records the newest as host activity.
func (p *ActivityProbe) Poll(ctx context.Context) {
	latest := time.Time{}

	info, err := os.Stat(p.dir)
	if err != nil {
		p.log.Debug(ctx, "activity probe stat failed", "path", p.dir, "error", err.Error())
		return
	}
	latest = info.ModTime()

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.log.Debug(ctx, "activity probe readdir failed", "path", p.dir, "error", err.Error())
		return
	}
	for _, e := range entries {
		fi, err := os.Stat(filepath.Join(p.dir, e.Name()))
		if err != nil {
			continue
		}
		if fi.ModTime().After(latest) {
			latest = fi.ModTime()
		}
	}

	p.tracker.Observe(latest)
}

// Run polls on a fixed interval until ctx is cancelled.
func (p *ActivityProbe) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}
