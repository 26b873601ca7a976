package agent

import (
	"time"
)

// SessionState tracks a session through the pipeline state machine:
// planning -> awaiting_approval -> executing -> completed | failed.
// Rejection, cancellation, and expiry land in failed directly.
type SessionState string

const (
	StatePlanning         SessionState = "planning"
	StateAwaitingApproval SessionState = "awaiting_approval"
	StateExecuting        SessionState = "executing"
	StateCompleted        SessionState = "completed"
	StateFailed           SessionState = "failed"
)

// Terminal reports whether the state permits no further transitions
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Session is the durable record of one agent interaction
type Session struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	ProjectID string       `json:"project_id,omitempty"`
	State     SessionState `json:"state"`
	Plan      *Plan        `json:"plan,omitempty"`
	Result    *RunResult   `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	Version   int64        `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Plan is an ordered, approvable set of steps belonging to one session.
// Step composition is immutable once dry-run or execution has started;
// only per-step results and the approval fields change after that.
type Plan struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Intent          string     `json:"intent"`
	Steps           []Step     `json:"steps"`
	Approved        bool       `json:"approved"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	Rejected        bool       `json:"rejected"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// Decided reports whether the plan has been approved or rejected
func (p *Plan) Decided() bool {
	return p.Approved || p.Rejected
}

// Started reports whether dry-run or execution has touched any step,
// after which step composition is frozen
func (p *Plan) Started() bool {
	for _, s := range p.Steps {
		if s.Status != StepStatusPending || s.DryRunResult != nil {
			return true
		}
	}
	return false
}

// Executable reports whether the plan has at least one bound tool.
// Clarify-only plans are display artifacts and can never run.
func (p *Plan) Executable() bool {
	for _, s := range p.Steps {
		if s.ToolName != "" {
			return true
		}
	}
	return false
}

// StepStatus is the lifecycle of a single step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusDryRunDone StepStatus = "dry_run_done"
	StepStatusExecuted   StepStatus = "executed"
	StepStatusFailed     StepStatus = "failed"
)

// Step is one bound tool invocation within a plan.
// An empty ToolName marks an unbound clarify step.
type Step struct {
	ID               string                 `json:"id"`
	Description      string                 `json:"description"`
	ToolName         string                 `json:"tool_name,omitempty"`
	TargetEntityType string                 `json:"target_entity_type,omitempty"`
	Parameters       map[string]interface{} `json:"parameters,omitempty"`
	Status           StepStatus             `json:"status"`
	DryRunResult     *DryRunResult          `json:"dry_run_result,omitempty"`
	ExecutionResult  *StepResult            `json:"execution_result,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

// DryRunResult is the preview outcome for one step
type DryRunResult struct {
	Executed bool     `json:"executed"`
	Preview  string   `json:"preview,omitempty"`
	Changes  []string `json:"changes,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// StepResult is the real execution outcome for one step
type StepResult struct {
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	TraceID    string `json:"trace_id"`
	DurationMs int64  `json:"duration_ms"`
}

// RunResult summarizes one execution pass over a plan.
// Partial failure is first-class: callers see counts, not a single flag.
type RunResult struct {
	SuccessCount int       `json:"success_count"`
	TotalSteps   int       `json:"total_steps"`
	Message      string    `json:"message"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Principal is the authenticated caller, as asserted by the portal gateway
type Principal struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes"`
	Admin  bool     `json:"admin"`
}

// CanAccess reports whether the principal may read or mutate the session
func (p Principal) CanAccess(s *Session) bool {
	return p.Admin || p.ID == s.OwnerID
}

// AuditRecord is one immutable entry in the audit trail
type AuditRecord struct {
	ID         int64                  `json:"id,omitempty"`
	SessionID  string                 `json:"session_id"`
	ActorID    string                 `json:"actor_id"`
	Action     string                 `json:"action"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Status     string                 `json:"status"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Audit actions
const (
	ActionPlanCreated      = "plan_created"
	ActionPlanApproved     = "plan_approved"
	ActionPlanRejected     = "plan_rejected"
	ActionStepDryRun       = "step_dry_run"
	ActionStepExecuted     = "step_executed"
	ActionSessionCancelled = "session_cancelled"
	ActionSessionExpired   = "session_expired"
)

// Audit statuses
const (
	AuditStatusPlanned  = "planned"
	AuditStatusExecuted = "executed"
	AuditStatusFailed   = "failed"
)
