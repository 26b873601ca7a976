package agent

import (
	"errors"
)

// Pipeline error taxonomy. Handlers map these onto HTTP statuses;
// everything else surfaces as an internal error.
var (
	// ErrSessionNotFound: no session with the given id
	ErrSessionNotFound = errors.New("session not found")

	// ErrPlanNotFound: the session has no plan, or the plan id does not match
	ErrPlanNotFound = errors.New("plan not found")

	// ErrForbidden: the caller is neither the session owner nor an admin
	ErrForbidden = errors.New("forbidden")

	// ErrNotApproved: execution requested before the plan was approved
	ErrNotApproved = errors.New("plan not approved")

	// ErrConflict: re-deciding a decided plan, replanning a started plan,
	// or a lost optimistic-concurrency race at the store
	ErrConflict = errors.New("conflict")

	// ErrSessionTerminal: the session permits no further transitions
	ErrSessionTerminal = errors.New("session is in a terminal state")
)
