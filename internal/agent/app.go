// Package agent wires the upload agent together: config, journal, budget
// tracker, transport, scheduler and the status endpoint.
package agent

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/dmitrijs2005/cardsync/internal/activity"
	"github.com/dmitrijs2005/cardsync/internal/agent/config"
	"github.com/dmitrijs2005/cardsync/internal/budget"
	"github.com/dmitrijs2005/cardsync/internal/journal"
	"github.com/dmitrijs2005/cardsync/internal/logging"
	"github.com/dmitrijs2005/cardsync/internal/scheduler"
	"github.com/dmitrijs2005/cardsync/internal/status"
	"github.com/dmitrijs2005/cardsync/internal/timex"
	"github.com/dmitrijs2005/cardsync/internal/transport"
)

// activityPollInterval is how often the smart-mode probe samples the card
// mount for host activity.
const activityPollInterval = 30 * time.Second

// App owns the long-lived components of the agent process.
type App struct {
	cfg       *config.Config
	logger    logging.Logger
	journal   *journal.Journal
	scheduler *scheduler.Scheduler
	status    *status.Server
	probe     *ActivityProbe
}

// NewApp assembles an App from cfg. Nothing is started yet; Run does that.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	trans, err := transport.New(transport.Config{
		Type:     cfg.EndpointType,
		Endpoint: cfg.Endpoint,
		User:     cfg.EndpointUser,
		Password: cfg.EndpointPassword,
		S3Region: cfg.S3Region,
		S3Bucket: cfg.S3Bucket,
	})
	if err != nil {
		return nil, err
	}

	clock := timex.SystemClock{}
	j := journal.New(cfg.JournalPath, logger.With("module", "journal"))
	tracker := activity.NewTracker()

	sched := scheduler.New(
		scheduler.Config{
			Mode:                cfg.ScheduleMode,
			WindowStart:         cfg.WindowStartHour,
			WindowEnd:           cfg.WindowEndHour,
			InactivityThreshold: cfg.InactivityThreshold,
			MaxHold:             cfg.MaxHold,
			ReleaseInterval:     cfg.ReleaseInterval,
			ReleaseWait:         cfg.ReleaseWait,
			Cooldown:            cfg.Cooldown,
		},
		clock,
		logger.With("module", "scheduler"),
		j,
		budget.NewTracker(clock),
		trans,
		NewDirSource(cfg.SourceDir),
		NewCardGuard(cfg.SourceDir),
		tracker,
	)

	a := &App{
		cfg:       cfg,
		logger:    logger,
		journal:   j,
		scheduler: sched,
		status:    status.New(cfg.StatusAddr, sched, logger.With("module", "status")),
	}
	if cfg.ScheduleMode == scheduler.ModeSmart {
		a.probe = NewActivityProbe(cfg.SourceDir, tracker, logger.With("module", "activity"))
	}
	return a, nil
}

// Run loads the journal and drives the scheduler and the status endpoint
// until ctx is cancelled. The first component error also stops the other.
func (a *App) Run(ctx context.Context) error {
	a.journal.Load(ctx)
	a.logger.Info(ctx, "agent starting",
		"mode", a.cfg.ScheduleMode,
		"source_dir", a.cfg.SourceDir,
		"endpoint_type", a.cfg.EndpointType,
		"files_on_record", a.journal.FileCount())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := 2
	if a.probe != nil {
		n++
	}
	errCh := make(chan error, n)

	go func() {
		errCh <- a.scheduler.Run(ctx, a.cfg.TickInterval)
	}()
	go func() {
		errCh <- a.status.Run(ctx)
	}()
	if a.probe != nil {
		go func() {
			errCh <- a.probe.Run(ctx, activityPollInterval)
		}()
	}

	err := <-errCh
	cancel()
	for i := 1; i < n; i++ {
		<-errCh
	}

	a.logger.Info(context.Background(), "agent stopped")
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
