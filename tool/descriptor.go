package tool

import (
	"context"
	"strings"
)

// Capability scopes granted to principals and required by tools.
// The portal gateway passes a principal's granted scopes with each request.
const (
	ScopeTasksRead   = "tasks:read"
	ScopeTasksWrite  = "tasks:write"
	ScopeTasksDelete = "tasks:delete"
	ScopeNotifySend  = "notify:send"
)

// ExecutionContext carries the identity and tracing info for one tool invocation
type ExecutionContext struct {
	ActorID   string   `json:"actor_id"`
	ProjectID string   `json:"project_id,omitempty"`
	TraceID   string   `json:"trace_id"`
	Scopes    []string `json:"scopes"`
}

// Handler executes a tool. Implementations must be safe for concurrent use;
// a single invocation receives its own ExecutionContext.
type Handler interface {
	Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error)

func (f HandlerFunc) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	return f(ctx, ec, params)
}

// Descriptor is the static registry entry for a tool
type Descriptor struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	RequiredScopes []string `json:"required_scopes"`
	Mutates        bool     `json:"mutates"`
	ParamSchema    Schema   `json:"param_schema"`
}

// Destructive reports whether any of the tool's required scopes grants
// a destructive capability. Dry-run previews of such tools carry an
// explicit data-loss warning.
func (d Descriptor) Destructive() bool {
	for _, scope := range d.RequiredScopes {
		if strings.Contains(scope, "delete") {
			return true
		}
	}
	return false
}
