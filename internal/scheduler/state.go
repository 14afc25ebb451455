package scheduler

// State is the position of the upload state machine.
type State int

const (
	StateIdle State = iota
	StateWaitingForWindow
	StateAcquiring
	StateUploading
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateWaitingForWindow:
		return "WAITING_FOR_WINDOW"
	case StateAcquiring:
		return "ACQUIRING"
	case StateUploading:
		return "UPLOADING"
	case StateCooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// Outcome classifies how the last session ended.
type Outcome int

const (
	// OutcomeNone means no session has run yet.
	OutcomeNone Outcome = iota
	// OutcomeComplete: every known file uploaded, no errors.
	OutcomeComplete
	// OutcomePartial: budget ran out, or some files failed and stay pending.
	OutcomePartial
	// OutcomeFailed: session-level fault, e.g. the card was lost mid-session.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "COMPLETE"
	case OutcomePartial:
		return "PARTIAL"
	case OutcomeFailed:
		return "FAILED"
	default:
		return "NONE"
	}
}

// Report summarizes a finished session for the diagnostic surface.
type Report struct {
	SessionID string
	Outcome   Outcome
	Uploaded  int
	Pending   int
	Errors    int
}
