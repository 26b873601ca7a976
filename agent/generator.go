package agent

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"steward/tool"
)

// Recognized planning intents. Anything else yields a clarify plan.
const (
	IntentCreateTask       = "create-task"
	IntentUpdateStatus     = "update-status"
	IntentAddNote          = "add-note"
	IntentDeleteTask       = "delete-task"
	IntentSummarizeProject = "summarize-project"
	IntentClarify          = "clarify"
)

// PlanRequest is the client input to plan generation. Intent may be given
// explicitly; otherwise it is inferred from the request text. Params carry
// entity references the templates need (task ids, statuses).
type PlanRequest struct {
	Request string                 `json:"request"`
	Intent  string                 `json:"intent,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Plan generates (or replaces) the session's plan from a request.
// Replacement is refused once the existing plan has been decided or any
// step has been dry-run or executed: composition is frozen at that point.
func (s *Service) Plan(actor Principal, sessionID string, req PlanRequest) (*Session, error) {
	session, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(session) {
		return nil, ErrForbidden
	}
	if session.State.Terminal() {
		return nil, ErrSessionTerminal
	}
	if session.Plan != nil && (session.Plan.Decided() || session.Plan.Started()) {
		return nil, serr.Wrap(ErrConflict, "plan composition is frozen", "session", sessionID)
	}

	intent := req.Intent
	if intent == "" {
		intent = InferIntent(req.Request)
	}

	plan := GeneratePlan(intent, req)

	// Validate step parameters against the declared schemas now, so that
	// execution never sees an undeclared payload
	for _, step := range plan.Steps {
		if step.ToolName == "" {
			continue
		}
		desc, err := s.registry.Get(step.ToolName)
		if err != nil {
			return nil, serr.Wrap(err, "plan template references unknown tool", "tool", step.ToolName)
		}
		if err := desc.ParamSchema.Validate(step.ToolName, step.Parameters); err != nil {
			return nil, err
		}
	}

	// All-read plans skip the human gate
	if autoApprovable(s.registry, plan) {
		now := s.now()
		plan.Approved = true
		plan.ApprovedAt = &now
		plan.ApprovedBy = "auto"
	}

	session.Plan = plan
	session.State = StateAwaitingApproval
	if err := s.store.Update(session); err != nil {
		return nil, err
	}

	s.auditAppend(AuditRecord{
		ActorID:    actor.ID,
		SessionID:  session.ID,
		Action:     ActionPlanCreated,
		TargetType: "plan",
		TargetID:   plan.ID,
		Payload: map[string]interface{}{
			"intent":        plan.Intent,
			"steps":         len(plan.Steps),
			"auto_approved": plan.Approved,
		},
		Status: AuditStatusPlanned,
	})

	logger.Info("Generated plan", "session", sessionID, "plan", plan.ID,
		"intent", plan.Intent, "steps", len(plan.Steps))
	s.publish("plan_created", session.ID, map[string]interface{}{
		"plan_id": plan.ID,
		"intent":  plan.Intent,
		"steps":   len(plan.Steps),
	})
	return session, nil
}

// InferIntent maps free-form request text onto the closed intent set.
// Matching is keyword-based and deterministic.
func InferIntent(request string) string {
	text := strings.ToLower(request)
	switch {
	case containsAny(text, "delete", "remove", "purge"):
		return IntentDeleteTask
	case containsAny(text, "status", "move to", "mark as", "done", "blocked", "in progress"):
		return IntentUpdateStatus
	case containsAny(text, "note", "comment", "annotate"):
		return IntentAddNote
	case containsAny(text, "summary", "summarize", "overview", "list"):
		return IntentSummarizeProject
	case containsAny(text, "create", "new task", "add task", "open a task"):
		return IntentCreateTask
	default:
		return IntentClarify
	}
}

func containsAny(text string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// GeneratePlan expands an intent into its fixed step template. The same
// intent always produces the same template, independent of session state.
func GeneratePlan(intent string, req PlanRequest) *Plan {
	plan := &Plan{
		ID:     "plan-" + uuid.NewString(),
		Intent: intent,
	}

	taskID, _ := tool.GetString(req.Params, "task_id")
	title, ok := tool.GetString(req.Params, "title")
	if !ok || title == "" {
		title = req.Request
	}

	switch intent {
	case IntentCreateTask:
		plan.Title = "Create task: " + title
		createParams := map[string]interface{}{"title": title}
		if assignee, ok := tool.GetString(req.Params, "assignee"); ok && assignee != "" {
			createParams["assignee"] = assignee
		}
		plan.Steps = []Step{
			{
				ID:               "step-1",
				Description:      "Create the task",
				ToolName:         "create_task",
				TargetEntityType: "task",
				Parameters:       createParams,
				Status:           StepStatusPending,
			},
			{
				ID:               "step-2",
				Description:      "Notify the team about the new task",
				ToolName:         "notify_team",
				TargetEntityType: "notification",
				Parameters: map[string]interface{}{
					"message": fmt.Sprintf("New task {{step:step-1.output}} created: %s", title),
				},
				Status: StepStatusPending,
			},
		}

	case IntentUpdateStatus:
		status, ok := tool.GetString(req.Params, "status")
		if !ok || status == "" {
			status = "done"
		}
		plan.Title = fmt.Sprintf("Move task %s to %s", taskID, status)
		plan.Steps = []Step{
			{
				ID:               "step-1",
				Description:      "Fetch the task to confirm it exists",
				ToolName:         "get_task",
				TargetEntityType: "task",
				Parameters:       map[string]interface{}{"task_id": taskID},
				Status:           StepStatusPending,
			},
			{
				ID:               "step-2",
				Description:      "Update the task status",
				ToolName:         "update_task_status",
				TargetEntityType: "task",
				Parameters:       map[string]interface{}{"task_id": taskID, "status": status},
				Status:           StepStatusPending,
			},
		}

	case IntentAddNote:
		plan.Title = "Add note to task " + taskID
		plan.Steps = []Step{
			{
				ID:               "step-1",
				Description:      "Attach the note",
				ToolName:         "add_note",
				TargetEntityType: "note",
				Parameters:       map[string]interface{}{"task_id": taskID, "body": req.Request},
				Status:           StepStatusPending,
			},
		}

	case IntentDeleteTask:
		plan.Title = "Delete task " + taskID
		plan.Steps = []Step{
			{
				ID:               "step-1",
				Description:      "Permanently delete the task",
				ToolName:         "delete_task",
				TargetEntityType: "task",
				Parameters:       map[string]interface{}{"task_id": taskID},
				Status:           StepStatusPending,
			},
		}

	case IntentSummarizeProject:
		plan.Title = "Summarize project tasks"
		plan.Steps = []Step{
			{
				ID:               "step-1",
				Description:      "List the project's tasks",
				ToolName:         "list_tasks",
				TargetEntityType: "task",
				Parameters:       map[string]interface{}{},
				Status:           StepStatusPending,
			},
		}

	default:
		plan.Intent = IntentClarify
		plan.Title = "Clarify request"
		plan.Steps = []Step{
			{
				ID:          "step-1",
				Description: fmt.Sprintf("The request %q did not match a known action; please restate it", req.Request),
				Status:      StepStatusPending,
			},
		}
	}

	return plan
}

// autoApprovable reports whether every step is bound to a non-mutating tool
func autoApprovable(registry *tool.Registry, plan *Plan) bool {
	if len(plan.Steps) == 0 {
		return false
	}
	for _, step := range plan.Steps {
		if step.ToolName == "" {
			return false
		}
		desc, err := registry.Get(step.ToolName)
		if err != nil || desc.Mutates {
			return false
		}
	}
	return true
}
