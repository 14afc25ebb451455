// Package scheduler drives the upload state machine: it decides when a
// session may start, acquires and releases the shared card, runs the budgeted
// upload loop against the journal, and spaces sessions with a fixed cooldown
// so the host device is never starved.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/cardsync/internal/activity"
	"github.com/dmitrijs2005/cardsync/internal/budget"
	"github.com/dmitrijs2005/cardsync/internal/common"
	"github.com/dmitrijs2005/cardsync/internal/journal"
	"github.com/dmitrijs2005/cardsync/internal/logging"
	"github.com/dmitrijs2005/cardsync/internal/timex"
	"github.com/dmitrijs2005/cardsync/internal/transport"
)

// ModeScheduled uploads whenever the window is open; ModeSmart additionally
// waits for the host device to have been quiet for the inactivity threshold.
const (
	ModeScheduled = "scheduled"
	ModeSmart     = "smart"
)

// maxRetryMultiplier caps how far the session budget stretches after repeated
// non-complete sessions.
const maxRetryMultiplier = 4

// FileInfo describes one candidate file on the card.
type FileInfo struct {
	// Path is the upload-relative path, also the journal key.
	Path string
	// LocalPath is where the transport reads the content from.
	LocalPath string
	// Folder groups files for folder-completion tracking.
	Folder string
	Size   int64
	// Checksum identifies the content; a changed checksum makes the file
	// pending again.
	Checksum string
}

// Source lists the card's data files. Scanning happens while the card is
// held, so implementations may read freely.
type Source interface {
	// Scan returns all data files currently on the card, plus the ids of
	// folders that exist but contain no files yet.
	Scan(ctx context.Context) (files []FileInfo, emptyFolders []string, err error)
}

// Resource is the exclusively held shared card. Acquire failures and
// mid-session losses are reported as common.ErrResourceUnavailable. Release
// must be idempotent: the scheduler releases on every exit path, which can
// mean releasing a card it no longer holds.
type Resource interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// ActivityMonitor answers how long the host device has been quiet.
// *activity.Tracker implements it.
type ActivityMonitor interface {
	InactiveFor(now time.Time) time.Duration
}

var _ ActivityMonitor = (*activity.Tracker)(nil)

// Config carries the schedule policy, read once per construction.
type Config struct {
	Mode        string
	WindowStart int // local hour, inclusive
	WindowEnd   int // local hour, exclusive; < start wraps past midnight

	// InactivityThreshold gates smart mode: the host must have been quiet
	// this long before a session starts.
	InactivityThreshold time.Duration

	// MaxHold is the nominal session duration, i.e. the longest the card is
	// held at multiplier 1.
	MaxHold time.Duration

	// ReleaseInterval yields the card back to the host after this much active
	// time, for ReleaseWait, without ending the session. Zero disables
	// mid-session yielding.
	ReleaseInterval time.Duration
	ReleaseWait     time.Duration

	// Cooldown overrides the budget tracker's fixed wait when positive.
	Cooldown time.Duration
}

// Scheduler is the state machine. All mutation happens on the control-loop
// goroutine; the mutex only guards the snapshot read by the status server.
type Scheduler struct {
	cfg      Config
	clock    timex.Clock
	log      logging.Logger
	journal  *journal.Journal
	budget   *budget.Tracker
	trans    transport.Transport
	source   Source
	resource Resource
	monitor  ActivityMonitor

	// sleep is a test seam for the mid-session yield wait.
	sleep func(ctx context.Context, d time.Duration)

	mu            sync.Mutex
	state         State
	multiplier    int
	cooldownUntil time.Time
	sessionID     string
	last          Report
}

// New wires a Scheduler. The journal must already be loaded.
func New(cfg Config, clock timex.Clock, log logging.Logger, j *journal.Journal,
	b *budget.Tracker, t transport.Transport, src Source, res Resource, mon ActivityMonitor) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		clock:      clock,
		log:        log,
		journal:    j,
		budget:     b,
		trans:      t,
		source:     src,
		resource:   res,
		monitor:    mon,
		sleep:      sleepCtx,
		state:      StateIdle,
		multiplier: 1,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// State returns the current state-machine state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastReport returns the summary of the most recently finished session.
func (s *Scheduler) LastReport() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// SessionID returns the id of the running or most recent session.
func (s *Scheduler) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Multiplier returns the retry multiplier the next session will start with.
func (s *Scheduler) Multiplier() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiplier
}

// RemainingBudget exposes the budget tracker for the status surface.
func (s *Scheduler) RemainingBudget() time.Duration {
	return s.budget.RemainingBudget()
}

// Rate exposes the averaged throughput for the status surface.
func (s *Scheduler) Rate() float64 {
	return s.budget.Rate()
}

func (s *Scheduler) setState(ctx context.Context, next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.log.Debug(ctx, "state transition", "from", prev.String(), "to", next.String())
	}
}

// Run drives Tick on a fixed interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick advances the state machine by one cooperative step. The clock is
// sampled once and used for every decision within the step.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()

	switch s.State() {
	case StateIdle:
		s.setState(ctx, StateWaitingForWindow)

	case StateWaitingForWindow:
		if !s.windowOpen(ctx, now) {
			return
		}
		s.setState(ctx, StateAcquiring)

	case StateAcquiring:
		s.acquireAndUpload(ctx)

	case StateCooldown:
		s.mu.Lock()
		until := s.cooldownUntil
		s.mu.Unlock()
		if !now.Before(until) {
			s.setState(ctx, StateIdle)
		}
	}
}

func (s *Scheduler) windowOpen(ctx context.Context, now time.Time) bool {
	if !inWindow(now, s.cfg.WindowStart, s.cfg.WindowEnd) {
		return false
	}
	if s.cfg.Mode == ModeSmart {
		quiet := s.monitor.InactiveFor(now)
		if quiet < s.cfg.InactivityThreshold {
			s.log.Debug(ctx, "window open but host recently active",
				"inactive_for", quiet.String(), "threshold", s.cfg.InactivityThreshold.String())
			return false
		}
	}
	return true
}

// acquireAndUpload runs one full session: acquire, upload loop, release,
// outcome bookkeeping. The card is released on every exit path.
func (s *Scheduler) acquireAndUpload(ctx context.Context) {
	id := uuid.New().String()
	s.mu.Lock()
	s.sessionID = id
	mult := s.multiplier
	s.mu.Unlock()

	log := s.log.With("session_id", id)

	if err := s.resource.Acquire(ctx); err != nil {
		log.Warn(ctx, "card acquisition failed", "error", err.Error())
		s.finishSession(ctx, log, Report{SessionID: id, Outcome: OutcomeFailed})
		return
	}

	s.budget.StartSession(s.cfg.MaxHold, mult)
	s.setState(ctx, StateUploading)
	log.Info(ctx, "session started",
		"budget_ms", s.budget.RemainingBudget().Milliseconds(), "retry_multiplier", mult)

	report := s.uploadLoop(ctx, log, id)

	if err := s.resource.Release(ctx); err != nil {
		log.Warn(ctx, "card release failed", "error", err.Error())
	}

	if err := s.journal.Save(ctx); err != nil {
		log.Error(ctx, "journal snapshot failed", "error", err.Error())
	}

	s.finishSession(ctx, log, report)
}

// finishSession records the outcome, adjusts the retry multiplier and moves
// to cooldown.
func (s *Scheduler) finishSession(ctx context.Context, log logging.Logger, report Report) {
	if report.Outcome == OutcomeComplete {
		s.journal.SetLastUpload(s.clock.Now())
	}

	cooldown := s.cfg.Cooldown
	if cooldown <= 0 {
		cooldown = s.budget.WaitTime()
	}

	s.mu.Lock()
	s.last = report
	if report.Outcome == OutcomeComplete {
		s.multiplier = 1
	} else if s.multiplier < maxRetryMultiplier {
		s.multiplier++
	}
	s.cooldownUntil = s.clock.Now().Add(cooldown)
	s.state = StateCooldown
	s.mu.Unlock()

	log.Info(ctx, "session finished",
		"outcome", report.Outcome.String(),
		"uploaded", report.Uploaded,
		"pending", report.Pending,
		"errors", report.Errors,
		"next_multiplier", s.Multiplier(),
		"cooldown", cooldown.String())
}

// uploadLoop transfers pending files until the budget runs out, the listing
// is exhausted, or the session faults. One file's failure never aborts the
// session; the file simply stays pending.
func (s *Scheduler) uploadLoop(ctx context.Context, log logging.Logger, id string) Report {
	report := Report{SessionID: id}

	files, emptyFolders, err := s.source.Scan(ctx)
	if err != nil {
		log.Error(ctx, "card scan failed", "error", err.Error())
		report.Outcome = OutcomeFailed
		return report
	}

	now := s.clock.Now()
	for _, folder := range emptyFolders {
		s.journal.MarkFolderPending(folder, now)
	}
	if promoted := s.journal.PromotePendingFolders(ctx, now); len(promoted) > 0 {
		log.Info(ctx, "stale pending folders promoted", "folders", promoted)
	}

	pending := make([]FileInfo, 0, len(files))
	folderRemaining := make(map[string]int)
	for _, f := range files {
		if f.Folder != "" && !s.journal.IsFolderCompleted(f.Folder) {
			folderRemaining[f.Folder]++
		}
		if !s.journal.IsFileUploaded(f.Path, f.Checksum) {
			pending = append(pending, f)
		} else if f.Folder != "" {
			folderRemaining[f.Folder]--
		}
	}
	report.Pending = len(pending)

	// Folders whose every file was already uploaded in earlier sessions can
	// be closed out right away.
	for folder, remaining := range folderRemaining {
		if remaining == 0 {
			if err := s.journal.MarkFolderCompleted(ctx, folder); err != nil {
				log.Error(ctx, "journal write failed", "folder", folder, "error", err.Error())
			}
		}
	}

	lastYield := time.Duration(0)

	for _, f := range pending {
		if ctx.Err() != nil {
			report.Outcome = OutcomePartial
			return report
		}

		if s.cfg.ReleaseInterval > 0 && s.budget.ActiveTime()-lastYield >= s.cfg.ReleaseInterval {
			if err := s.yieldCard(ctx, log); err != nil {
				report.Outcome = OutcomeFailed
				return report
			}
			lastYield = s.budget.ActiveTime()
		}

		if !s.budget.CanUploadFile(f.Size) {
			log.Info(ctx, "budget exhausted",
				"next_file", f.Path, "size", f.Size,
				"remaining_ms", s.budget.RemainingBudget().Milliseconds())
			report.Outcome = OutcomePartial
			return report
		}

		sent, elapsed, err := s.trans.Upload(ctx, f.LocalPath, f.Path)
		if err != nil {
			if errors.Is(err, common.ErrResourceUnavailable) {
				log.Error(ctx, "card lost mid-session", "file", f.Path, "error", err.Error())
				report.Outcome = OutcomeFailed
				return report
			}
			log.Warn(ctx, "file upload failed, leaving pending", "file", f.Path, "error", err.Error())
			report.Errors++
			continue
		}

		s.budget.RecordUpload(sent, elapsed)
		if err := s.journal.MarkFileUploaded(ctx, f.Path, f.Checksum); err != nil {
			log.Error(ctx, "journal write failed", "file", f.Path, "error", err.Error())
		}
		report.Uploaded++
		report.Pending--

		if f.Folder != "" {
			folderRemaining[f.Folder]--
			if folderRemaining[f.Folder] == 0 {
				if err := s.journal.MarkFolderCompleted(ctx, f.Folder); err != nil {
					log.Error(ctx, "journal write failed", "folder", f.Folder, "error", err.Error())
				} else {
					log.Info(ctx, "folder completed", "folder", f.Folder)
				}
			}
		}

		log.Debug(ctx, "file uploaded", "file", f.Path, "bytes", sent,
			"elapsed_ms", elapsed.Milliseconds(),
			"remaining_ms", s.budget.RemainingBudget().Milliseconds())
	}

	if report.Errors > 0 {
		report.Outcome = OutcomePartial
	} else {
		report.Outcome = OutcomeComplete
	}
	return report
}

// yieldCard hands the card back to the host mid-session and reacquires it
// after ReleaseWait. The yielded interval is excluded from the budget.
func (s *Scheduler) yieldCard(ctx context.Context, log logging.Logger) error {
	log.Info(ctx, "yielding card to host", "wait", s.cfg.ReleaseWait.String())

	s.budget.Pause()
	if err := s.resource.Release(ctx); err != nil {
		log.Warn(ctx, "card release failed during yield", "error", err.Error())
	}

	s.sleep(ctx, s.cfg.ReleaseWait)

	if err := s.resource.Acquire(ctx); err != nil {
		return fmt.Errorf("reacquire after yield: %w", err)
	}
	s.budget.Resume()
	log.Info(ctx, "card reacquired, session resumed")
	return nil
}
