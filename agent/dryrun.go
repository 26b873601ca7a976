package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"steward/tool"
)

// DryRun previews every step of the session's plan without committing any
// mutation. Read-only tools are genuinely executed so the preview shows real
// data; mutating tools get a synthesized description of what would happen.
// The batch is best-effort: a failing step is recorded and the rest continue.
func (s *Service) DryRun(ctx context.Context, actor Principal, sessionID, planID string) (*Session, error) {
	session, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(session) {
		return nil, ErrForbidden
	}
	if session.Plan == nil || session.Plan.ID != planID {
		return nil, serr.Wrap(ErrPlanNotFound, "session", sessionID, "plan", planID)
	}
	if session.State != StateAwaitingApproval {
		return nil, serr.Wrap(ErrConflict, "plan is no longer previewable",
			"session", sessionID, "state", string(session.State))
	}

	outputs := map[string]string{} // step id -> output of read steps run in this batch

	for i := range session.Plan.Steps {
		step := &session.Plan.Steps[i]
		result := s.dryRunStep(ctx, actor, session, step, outputs)
		step.DryRunResult = &result
		step.Status = StepStatusDryRunDone

		status := AuditStatusExecuted
		if result.Error != "" {
			status = AuditStatusFailed
		}
		s.auditAppend(AuditRecord{
			ActorID:    actor.ID,
			SessionID:  session.ID,
			Action:     ActionStepDryRun,
			TargetType: step.TargetEntityType,
			TargetID:   step.ID,
			Payload: map[string]interface{}{
				"tool":     step.ToolName,
				"executed": result.Executed,
			},
			Status: status,
			Error:  result.Error,
		})
	}

	if err := s.store.Update(session); err != nil {
		return nil, err
	}
	logger.Info("Dry run complete", "session", sessionID, "plan", planID,
		"steps", len(session.Plan.Steps))
	s.publish("dry_run_completed", session.ID, map[string]interface{}{
		"plan_id": planID,
	})
	return session, nil
}

func (s *Service) dryRunStep(ctx context.Context, actor Principal, session *Session, step *Step, outputs map[string]string) DryRunResult {
	if step.ToolName == "" {
		return DryRunResult{Error: "no tool bound to step"}
	}

	desc, err := s.registry.Get(step.ToolName)
	if err != nil {
		return DryRunResult{Error: err.Error()}
	}
	if err := tool.Authorize(actor.Scopes, desc); err != nil {
		return DryRunResult{Error: err.Error()}
	}

	params := resolvePlaceholders(step.Parameters, outputs)

	if !desc.Mutates {
		ec := tool.ExecutionContext{
			ActorID:   actor.ID,
			ProjectID: session.ProjectID,
			TraceID:   traceID("dry-"+session.Plan.ID, step.ID),
			Scopes:    actor.Scopes,
		}
		output, err := s.registry.Execute(ctx, step.ToolName, ec, params)
		if err != nil {
			return DryRunResult{Error: err.Error()}
		}
		outputs[step.ID] = output
		return DryRunResult{
			Executed: true,
			Preview:  truncate(output, s.previewLimit),
		}
	}

	return DryRunResult{
		Executed: false,
		Preview:  truncate(describeMutation(desc, step, params), s.previewLimit),
		Changes:  describeChanges(step, params),
		Warnings: mutationWarnings(desc),
	}
}

func describeMutation(desc tool.Descriptor, step *Step, params map[string]interface{}) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Would run %s against %s", desc.Name, step.TargetEntityType)
	if id, ok := tool.GetString(params, "task_id"); ok && id != "" {
		fmt.Fprintf(&sb, " %s", id)
	}
	keys := sortedKeys(params)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n  %s: %v", k, params[k])
	}
	return sb.String()
}

func describeChanges(step *Step, params map[string]interface{}) []string {
	changes := make([]string, 0, len(params))
	for _, k := range sortedKeys(params) {
		changes = append(changes, fmt.Sprintf("%s.%s = %v", step.TargetEntityType, k, params[k]))
	}
	return changes
}

func mutationWarnings(desc tool.Descriptor) []string {
	var warnings []string
	if desc.Destructive() {
		warnings = append(warnings, "This action permanently deletes data and cannot be undone")
	}
	return warnings
}

func sortedKeys(params map[string]interface{}) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// truncate caps s at limit bytes, backing up to a rune boundary so the
// preview stays valid UTF-8. The ellipsis counts against the limit.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	const ellipsis = "..."
	cut := limit - len(ellipsis)
	if cut <= 0 {
		return ellipsis[:limit]
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

// resolvePlaceholders substitutes {{step:<id>.output}} references with the
// recorded output of an earlier step. Unknown references are left literal.
func resolvePlaceholders(params map[string]interface{}, outputs map[string]string) map[string]interface{} {
	resolved := make(map[string]interface{}, len(params))
	for k, v := range params {
		if str, ok := v.(string); ok {
			resolved[k] = substituteOutputs(str, outputs)
		} else {
			resolved[k] = v
		}
	}
	return resolved
}

func substituteOutputs(s string, outputs map[string]string) string {
	for id, out := range outputs {
		s = strings.ReplaceAll(s, "{{step:"+id+".output}}", out)
	}
	return s
}
