package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
	"steward/tool"
)

// TaskStore backs the built-in tools with the tasks, task_notes and
// notifications tables.
type TaskStore struct {
	db *DB
}

func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

var _ tool.TaskStore = (*TaskStore)(nil)

// CreateTask inserts a task and returns it with its generated id
func (t *TaskStore) CreateTask(ctx context.Context, task tool.Task) (tool.Task, error) {
	task.ID = "task-" + uuid.NewString()
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := t.db.Conn().ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, status, assignee, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, nullable(task.ProjectID), task.Title, task.Status,
		nullable(task.Assignee), nullable(task.CreatedBy), task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return tool.Task{}, serr.Wrap(err, "failed to insert task", "title", task.Title)
	}
	return task, nil
}

// GetTask returns a task by id
func (t *TaskStore) GetTask(ctx context.Context, id string) (tool.Task, error) {
	row := t.db.Conn().QueryRowContext(ctx, `
		SELECT id, project_id, title, status, assignee, created_by, created_at, updated_at
		FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return tool.Task{}, serr.New("task not found", "task_id", id)
	}
	if err != nil {
		return tool.Task{}, serr.Wrap(err, "failed to get task", "task_id", id)
	}
	return task, nil
}

// UpdateTaskStatus moves a task to a new status and returns the updated row
func (t *TaskStore) UpdateTaskStatus(ctx context.Context, id, status string) (tool.Task, error) {
	res, err := t.db.Conn().ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id)
	if err != nil {
		return tool.Task{}, serr.Wrap(err, "failed to update task status", "task_id", id)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return tool.Task{}, serr.New("task not found", "task_id", id)
	}
	return t.GetTask(ctx, id)
}

// DeleteTask removes a task and its notes permanently
func (t *TaskStore) DeleteTask(ctx context.Context, id string) error {
	return t.db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM task_notes WHERE task_id = ?", id); err != nil {
			return serr.Wrap(err, "failed to delete task notes", "task_id", id)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
		if err != nil {
			return serr.Wrap(err, "failed to delete task", "task_id", id)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return serr.New("task not found", "task_id", id)
		}
		return nil
	})
}

// ListTasks returns the tasks in a project; an empty project id lists all
func (t *TaskStore) ListTasks(ctx context.Context, projectID string) ([]tool.Task, error) {
	query := `SELECT id, project_id, title, status, assignee, created_by, created_at, updated_at
		FROM tasks`
	args := []interface{}{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at"

	rows, err := t.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, serr.Wrap(err, "failed to list tasks", "project_id", projectID)
	}
	defer rows.Close()

	var tasks []tool.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan task row")
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "task row iteration failed")
	}
	return tasks, nil
}

// AddNote attaches a note to a task
func (t *TaskStore) AddNote(ctx context.Context, n tool.Note) (tool.Note, error) {
	if _, err := t.GetTask(ctx, n.TaskID); err != nil {
		return tool.Note{}, err
	}

	n.ID = "note-" + uuid.NewString()
	n.CreatedAt = time.Now()
	_, err := t.db.Conn().ExecContext(ctx, `
		INSERT INTO task_notes (id, task_id, author, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.TaskID, nullable(n.Author), n.Body, n.CreatedAt,
	)
	if err != nil {
		return tool.Note{}, serr.Wrap(err, "failed to insert note", "task_id", n.TaskID)
	}
	return n, nil
}

// RecordNotification records an outbound team notification
func (t *TaskStore) RecordNotification(ctx context.Context, n tool.Notification) (tool.Notification, error) {
	n.ID = "ntf-" + uuid.NewString()
	n.CreatedAt = time.Now()
	_, err := t.db.Conn().ExecContext(ctx, `
		INSERT INTO notifications (id, project_id, actor, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, nullable(n.ProjectID), nullable(n.Actor), n.Message, n.CreatedAt,
	)
	if err != nil {
		return tool.Notification{}, serr.Wrap(err, "failed to record notification")
	}
	return n, nil
}

func scanTask(row rowScanner) (tool.Task, error) {
	var task tool.Task
	var projectID, assignee, createdBy sql.NullString
	err := row.Scan(&task.ID, &projectID, &task.Title, &task.Status,
		&assignee, &createdBy, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return tool.Task{}, err
	}
	task.ProjectID = projectID.String
	task.Assignee = assignee.String
	task.CreatedBy = createdBy.String
	return task, nil
}
