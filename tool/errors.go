package tool

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for registry lookups and registration
var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("tool already registered")
)

// InsufficientScopeError is returned when a principal's granted scopes
// do not cover a tool's required scopes
type InsufficientScopeError struct {
	Tool    string
	Missing []string
}

func (e *InsufficientScopeError) Error() string {
	return fmt.Sprintf("insufficient scope for tool %s: missing %s",
		e.Tool, strings.Join(e.Missing, ", "))
}

// ExecutionError wraps a handler failure, tagged with the tool name
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ValidationError reports a parameter payload that does not satisfy
// a tool's declared schema
type ValidationError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("invalid parameters for tool %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid parameter %q for tool %s: %s", e.Param, e.Tool, e.Reason)
}
