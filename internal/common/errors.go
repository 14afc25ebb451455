// Package common defines shared sentinel errors used across the agent's
// components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrTransportTransient marks a per-file transfer failure that leaves the
	// file pending; the session continues with the next file.
	ErrTransportTransient = errors.New("transient transport error")

	// ErrTransportPermanent marks a transfer failure that retrying the same
	// request cannot fix (authentication, malformed remote path).
	ErrTransportPermanent = errors.New("permanent transport error")

	// ErrResourceUnavailable is session-fatal: the shared card could not be
	// acquired, or was lost mid-session.
	ErrResourceUnavailable = errors.New("shared resource unavailable")

	// ErrJournalCorrupt reports unreadable persisted journal state. It is
	// recovered by resetting to an empty journal and is never fatal.
	ErrJournalCorrupt = errors.New("journal state corrupt")
)
