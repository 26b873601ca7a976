package web

import (
	"errors"

	"github.com/rohanthewiz/rweb"
	"steward/agent"
	"steward/tool"
)

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	var verr *tool.ValidationError
	var scopeErr *tool.InsufficientScopeError
	switch {
	case errors.Is(err, agent.ErrSessionNotFound), errors.Is(err, agent.ErrPlanNotFound):
		return 404
	case errors.Is(err, agent.ErrForbidden):
		return 403
	case errors.Is(err, agent.ErrConflict),
		errors.Is(err, agent.ErrSessionTerminal),
		errors.Is(err, agent.ErrNotApproved):
		return 409
	case errors.As(err, &verr):
		return 400
	case errors.As(err, &scopeErr):
		return 403
	default:
		return 500
	}
}

// writeErr writes an error response with its mapped status code
func writeErr(c rweb.Context, err error) error {
	return c.WriteError(err, statusFor(err))
}
