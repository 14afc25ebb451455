// Package status serves the diagnostic JSON endpoint operators poll to see
// what the agent is doing. It only reads an inspection snapshot; it never
// drives the state machine.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cardsync/internal/logging"
	"github.com/dmitrijs2005/cardsync/internal/scheduler"
)

// Inspector is the read-only view of the scheduler the endpoint exposes.
// *scheduler.Scheduler implements it.
type Inspector interface {
	State() scheduler.State
	LastReport() scheduler.Report
	SessionID() string
	Multiplier() int
	RemainingBudget() time.Duration
	Rate() float64
}

var _ Inspector = (*scheduler.Scheduler)(nil)

// Server is the HTTP status server.
type Server struct {
	srv  *http.Server
	insp Inspector
	log  logging.Logger
}

// New returns a Server listening on addr once Run is called.
func New(addr string, insp Inspector, log logging.Logger) *Server {
	s := &Server{insp: insp, log: log}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route mux; exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// Method matching inline because Go 1.21's ServeMux predates "GET /path"
	// patterns; mirrors the Go 1.22 mux behavior (GET also serves HEAD,
	// other methods get 405 with an Allow header).
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		s.handleStatus(w, r)
	})
	return mux
}

type statusPayload struct {
	State             string  `json:"state"`
	SessionID         string  `json:"session_id,omitempty"`
	LastOutcome       string  `json:"last_outcome"`
	Uploaded          int     `json:"uploaded"`
	Pending           int     `json:"pending"`
	Errors            int     `json:"errors"`
	RemainingBudgetMs int64   `json:"remaining_budget_ms"`
	RateBytesPerSec   float64 `json:"rate_bytes_per_sec"`
	RetryMultiplier   int     `json:"retry_multiplier"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.insp.LastReport()
	payload := statusPayload{
		State:             s.insp.State().String(),
		SessionID:         s.insp.SessionID(),
		LastOutcome:       report.Outcome.String(),
		Uploaded:          report.Uploaded,
		Pending:           report.Pending,
		Errors:            report.Errors,
		RemainingBudgetMs: s.insp.RemainingBudget().Milliseconds(),
		RateBytesPerSec:   s.insp.Rate(),
		RetryMultiplier:   s.insp.Multiplier(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn(r.Context(), "status response write failed", "error", err.Error())
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
