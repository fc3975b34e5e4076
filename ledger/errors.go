package ledger

import "errors"

var (
	// ErrInvalidInput marks malformed requests (empty identity, non-positive
	// amount). Rejected before any store access.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by Store.Get for an unseen identity.
	ErrNotFound = errors.New("account not found")
	// ErrConflict is returned by Store.Create when the identity already
	// exists and by Store.Update when the version is stale. Callers re-read
	// and retry.
	ErrConflict = errors.New("store conflict")
	// ErrRetryExhausted surfaces when the bounded conflict-retry budget runs
	// out. The claim was neither applied nor dropped silently; the caller
	// should treat it as transient.
	ErrRetryExhausted = errors.New("store retry budget exhausted")
)

// Denial reason codes returned to clients. Stable, machine readable.
const (
	ReasonCooldown     = "cooldown"
	ReasonDailyLimit   = "daily_limit"
	ReasonLifetimeCap  = "lifetime_limit"
	ReasonBelowMinimum = "below_minimum"
)
