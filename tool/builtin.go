package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rohanthewiz/serr"
)

// Task is a project-management work item acted on by the built-in tools
type Task struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	Assignee  string    `json:"assignee,omitempty"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is a comment attached to a task
type Note struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is a recorded outbound team notification. Delivery to
// Slack or email is the portal's job; this layer only records intent.
type Notification struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskStore is the persistence surface the built-in tools run against
type TaskStore interface {
	CreateTask(ctx context.Context, t Task) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, projectID string) ([]Task, error)
	AddNote(ctx context.Context, n Note) (Note, error)
	RecordNotification(ctx context.Context, n Notification) (Notification, error)
}

// Task statuses accepted by update_task_status
var taskStatuses = []string{"open", "in_progress", "blocked", "done"}

// CreateTaskTool creates a task in the scoped project
type CreateTaskTool struct {
	store TaskStore
}

func (t *CreateTaskTool) GetDescriptor() Descriptor {
	return Descriptor{
		Name:           "create_task",
		Description:    "Create a new task in the current project",
		RequiredScopes: []string{ScopeTasksWrite},
		Mutates:        true,
		ParamSchema: Schema{
			Required: []string{"title"},
			Params: map[string]ParamSpec{
				"title":    {Type: "string", MinLength: 1, MaxLength: 200},
				"assignee": {Type: "string", MaxLength: 100},
			},
		},
	}
}

func (t *CreateTaskTool) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	title, _ := GetString(params, "title")
	assignee, _ := GetString(params, "assignee")

	task, err := t.store.CreateTask(ctx, Task{
		ProjectID: ec.ProjectID,
		Title:     title,
		Status:    "open",
		Assignee:  assignee,
		CreatedBy: ec.ActorID,
	})
	if err != nil {
		return "", serr.Wrap(err, "failed to create task")
	}

	// The bare id is the output so later steps can reference it
	return task.ID, nil
}

// GetTaskTool reads a single task
type GetTaskTool struct {
	store TaskStore
}

func (t *GetTaskTool) GetDescriptor() Descriptor {
	return Descriptor{
		Name:           "get_task",
		Description:    "Fetch a task by id",
		RequiredScopes: []string{ScopeTasksRead},
		Mutates:        false,
		ParamSchema: Schema{
			Required: []string{"task_id"},
			Params: map[string]ParamSpec{
				"task_id": {Type: "string", MinLength: 1},
			},
		},
	}
}

func (t *GetTaskTool) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	id, _ := GetString(params, "task_id")
	task, err := t.store.GetTask(ctx, id)
	if err != nil {
		return "", serr.Wrap(err, "failed to get task", "task_id", id)
	}
	out, err := json.Marshal(task)
	if err != nil {
		return "", serr.Wrap(err, "failed to marshal task")
	}
	return string(out), nil
}

// ListTasksTool lists the tasks in the scoped project
type ListTasksTool struct {
	store TaskStore
}

func (t *ListTasksTool) GetDescriptor() Descriptor {
	return Descriptor{
		Name:           "list_tasks",
		Description:    "List tasks in the current project",
		RequiredScopes: []string{ScopeTasksRead},
		Mutates:        false,
		ParamSchema: Schema{
			Params: map[string]ParamSpec{
				"status": {Type: "string", AllowedValues: taskStatuses},
			},
		},
	}
}

func (t *ListTasksTool) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	tasks, err := t.store.ListTasks(ctx, ec.ProjectID)
	if err != nil {
		return "", serr.Wrap(err, "failed to list tasks")
	}

	if status, ok := GetString(params, "status"); ok && status != "" {
		filtered := tasks[:0]
		for _, task := range tasks {
			if task.Status == status {
				filtered = append(filtered, task)
			}
		}
		tasks = filtered
	}

	out, err := json.Marshal(tasks)
	if err != nil {
		return "", serr.Wrap(err, "failed to marshal tasks")
	}
	return string(out), nil
}

// UpdateTaskStatusTool moves a task to a new status
type UpdateTaskStatusTool struct {
	store TaskStore
}

func (t *UpdateTaskStatusTool) GetDescriptor() Descriptor {
	return Descriptor{
		Name:           "update_task_status",
		Description:    "Update the status of a task",
		RequiredScopes: []string{ScopeTasksWrite},
		Mutates:        true,
		ParamSchema: Schema{
			Required: []string{"task_id", "status"},
			Params: map[string]ParamSpec{
				"task_id": {Type: "string", MinLength: 1},
				"status":  {Type: "string", AllowedValues: taskStatuses},
			},
		},
	}
}

func (t *UpdateTaskStatusTool) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	id, _ := GetString(params, "task_id")
	status, _ := GetString(params, "status")

	task, err := t.store.UpdateTaskStatus(ctx, id, status)
	if err != nil {
		return "", serr.Wrap(err, "failed to update task status", "task_id", id)
	}
	return fmt.Sprintf("task %s moved to %s", task.ID, task.Status), nil
}

// AddNoteTool attaches a note to a task
type AddNoteTool struct {
	store TaskStore
}

func (t *AddNoteTool) GetDescriptor() Descriptor {
	return Descriptor{
		Name:           "add_note",
		Description:    "Add a note to a task",
		RequiredScopes: []string{ScopeTasksWrite},
		Mutates:        true,
		ParamSchema: Schema{
			Required: []string{"task_id", "body"},
			Params: map[string]ParamSpec{
				"task_id": {Type: "string", MinLength: 1},
				"body":    {Type: "string", MinLength: 1, MaxLength: 4000},
			},
		},
	}
}

func (t *AddNoteTool) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	taskID, _ := GetString(params, "task_id")
	body, _ := GetString(params, "body")

	note, err := t.store.AddNote(ctx, Note{
		TaskID: taskID,
		Author: ec.ActorID,
		Body:   body,
	})
	if err != nil {
		return "", serr.Wrap(err, "failed to add note", "task_id", taskID)
	}
	return note.ID, nil
}

// DeleteTaskTool permanently removes a task
type DeleteTaskTool struct {
	store TaskStore
}

func (t *DeleteTaskTool) GetDescriptor() Descriptor {
	return Descriptor{
		Name:           "delete_task",
		Description:    "Permanently delete a task",
		RequiredScopes: []string{ScopeTasksDelete},
		Mutates:        true,
		ParamSchema: Schema{
			Required: []string{"task_id"},
			Params: map[string]ParamSpec{
				"task_id": {Type: "string", MinLength: 1},
			},
		},
	}
}

func (t *DeleteTaskTool) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	id, _ := GetString(params, "task_id")
	if err := t.store.DeleteTask(ctx, id); err != nil {
		return "", serr.Wrap(err, "failed to delete task", "task_id", id)
	}
	return fmt.Sprintf("task %s deleted", id), nil
}

// NotifyTeamTool records an outbound team notification
type NotifyTeamTool struct {
	store TaskStore
}

func (t *NotifyTeamTool) GetDescriptor() Descriptor {
	return Descriptor{
		Name:           "notify_team",
		Description:    "Send a notification to the project team",
		RequiredScopes: []string{ScopeNotifySend},
		Mutates:        true,
		ParamSchema: Schema{
			Required: []string{"message"},
			Params: map[string]ParamSpec{
				"message": {Type: "string", MinLength: 1, MaxLength: 1000},
			},
		},
	}
}

func (t *NotifyTeamTool) Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error) {
	message, _ := GetString(params, "message")

	n, err := t.store.RecordNotification(ctx, Notification{
		ProjectID: ec.ProjectID,
		Actor:     ec.ActorID,
		Message:   message,
	})
	if err != nil {
		return "", serr.Wrap(err, "failed to record notification")
	}
	return fmt.Sprintf("notification %s queued", n.ID), nil
}

// RegisterDefaults registers all built-in project-management tools
func RegisterDefaults(r *Registry, store TaskStore) error {
	builtins := []interface {
		GetDescriptor() Descriptor
		Execute(ctx context.Context, ec ExecutionContext, params map[string]interface{}) (string, error)
	}{
		&CreateTaskTool{store: store},
		&GetTaskTool{store: store},
		&ListTasksTool{store: store},
		&UpdateTaskStatusTool{store: store},
		&AddNoteTool{store: store},
		&DeleteTaskTool{store: store},
		&NotifyTeamTool{store: store},
	}

	for _, b := range builtins {
		if err := r.Register(b.GetDescriptor(), b); err != nil {
			return serr.Wrap(err, "failed to register built-in tool")
		}
	}
	return nil
}
