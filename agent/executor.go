package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"steward/tool"
)

// Execute runs the session's approved plan to completion. Steps run strictly
// in order; a failing step is recorded and execution moves on to the next
// one. Calling Execute again on a completed session is a no-op that returns
// the cached result.
func (s *Service) Execute(ctx context.Context, actor Principal, sessionID string) (*Session, error) {
	session, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(session) {
		return nil, ErrForbidden
	}
	if session.State == StateCompleted {
		return session, nil
	}
	// A rejected plan is an approval failure, not a terminal-state one,
	// even though rejection also fails the session
	if session.Plan != nil && session.Plan.Rejected {
		return nil, serr.Wrap(ErrNotApproved, "session", sessionID, "plan", session.Plan.ID)
	}
	if session.State == StateFailed {
		return nil, serr.Wrap(ErrSessionTerminal, "session", sessionID)
	}
	if session.State == StateExecuting {
		return nil, serr.Wrap(ErrConflict, "execution already in progress", "session", sessionID)
	}
	if session.Plan == nil {
		return nil, serr.Wrap(ErrPlanNotFound, "session", sessionID)
	}
	if !session.Plan.Approved || session.Plan.Rejected {
		return nil, serr.Wrap(ErrNotApproved, "session", sessionID, "plan", session.Plan.ID)
	}

	// Claiming the executing state through the versioned update is what
	// keeps two callers from running the same plan
	session.State = StateExecuting
	if err := s.store.Update(session); err != nil {
		return nil, err
	}

	runID := "run-" + uuid.NewString()
	outputs := map[string]string{}
	successCount := 0
	cancelled := false

	for i := range session.Plan.Steps {
		// Cancellation lands as a terminal state written by another
		// caller; check for it at every step boundary
		fresh, err := s.store.Get(session.ID)
		if err == nil {
			if fresh.State.Terminal() {
				cancelled = true
				session = fresh
				break
			}
			session.Version = fresh.Version
		}

		step := &session.Plan.Steps[i]
		if s.executeStep(ctx, actor, session, step, runID, outputs) {
			successCount++
		}
		if err := s.persistProgress(session); err != nil {
			if errors.Is(err, ErrSessionTerminal) {
				cancelled = true
				break
			}
			return nil, err
		}
	}

	if cancelled {
		logger.Info("Execution stopped by cancellation", "session", sessionID, "run", runID)
		return session, nil
	}

	total := len(session.Plan.Steps)
	now := s.now()
	session.Result = &RunResult{
		SuccessCount: successCount,
		TotalSteps:   total,
		Message:      fmt.Sprintf("Executed %d of %d steps successfully", successCount, total),
		CompletedAt:  now,
	}
	if successCount == total {
		session.State = StateCompleted
	} else {
		session.State = StateFailed
		session.Error = fmt.Sprintf("%d of %d steps failed", total-successCount, total)
	}
	if err := s.store.Update(session); err != nil {
		return nil, err
	}

	logger.Info("Execution finished", "session", sessionID, "run", runID,
		"succeeded", successCount, "total", total, "state", string(session.State))
	s.publish("execution_completed", session.ID, map[string]interface{}{
		"run_id":        runID,
		"success_count": successCount,
		"total_steps":   total,
		"state":         string(session.State),
	})
	return session, nil
}

// executeStep runs one step and records its outcome on the step itself.
// Returns true on success.
func (s *Service) executeStep(ctx context.Context, actor Principal, session *Session, step *Step, runID string, outputs map[string]string) bool {
	trace := traceID(runID, step.ID)
	fail := func(msg string, durationMs int64) {
		step.Status = StepStatusFailed
		step.Error = msg
		step.ExecutionResult = &StepResult{
			Success:    false,
			TraceID:    trace,
			DurationMs: durationMs,
		}
		s.auditStep(actor, session, step, AuditStatusFailed, msg)
	}

	if step.ToolName == "" {
		fail("no tool bound to step", 0)
		return false
	}
	desc, err := s.registry.Get(step.ToolName)
	if err != nil {
		fail(err.Error(), 0)
		return false
	}
	if err := tool.Authorize(actor.Scopes, desc); err != nil {
		fail(err.Error(), 0)
		return false
	}

	params := resolvePlaceholders(step.Parameters, outputs)
	ec := tool.ExecutionContext{
		ActorID:   actor.ID,
		ProjectID: session.ProjectID,
		TraceID:   trace,
		Scopes:    actor.Scopes,
	}

	start := time.Now()
	output, err := s.registry.Execute(ctx, step.ToolName, ec, params)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.LogErr(err, "Step failed", "session", session.ID, "step", step.ID, "tool", step.ToolName)
		fail(err.Error(), elapsed)
		return false
	}

	outputs[step.ID] = output
	step.Status = StepStatusExecuted
	step.ExecutionResult = &StepResult{
		Success:    true,
		Output:     output,
		TraceID:    trace,
		DurationMs: elapsed,
	}
	s.auditStep(actor, session, step, AuditStatusExecuted, "")
	return true
}

func (s *Service) auditStep(actor Principal, session *Session, step *Step, status string, errMsg string) {
	s.auditAppend(AuditRecord{
		ActorID:    actor.ID,
		SessionID:  session.ID,
		Action:     ActionStepExecuted,
		TargetType: step.TargetEntityType,
		TargetID:   step.ID,
		Payload: map[string]interface{}{
			"tool":  step.ToolName,
			"trace": traceIDOf(step),
		},
		Status: status,
		Error:  errMsg,
	})
}

func traceIDOf(step *Step) string {
	if step.ExecutionResult != nil {
		return step.ExecutionResult.TraceID
	}
	return ""
}

// persistProgress writes the step outcomes, refreshing the version once if a
// concurrent writer got in first. A terminal state written by that writer
// means the session was cancelled under us.
func (s *Service) persistProgress(session *Session) error {
	err := s.store.Update(session)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrConflict) {
		return err
	}
	fresh, gerr := s.store.Get(session.ID)
	if gerr != nil {
		return err
	}
	if fresh.State.Terminal() {
		return ErrSessionTerminal
	}
	session.Version = fresh.Version
	return s.store.Update(session)
}
