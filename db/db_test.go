package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"steward/agent"
	"steward/tool"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open("")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func sampleSession(id string) *agent.Session {
	now := time.Now()
	return &agent.Session{
		ID:        id,
		OwnerID:   "ana",
		ProjectID: "proj-1",
		State:     agent.StatePlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore(openTestDB(t))

	session := sampleSession("ses-1")
	session.Plan = &agent.Plan{
		ID:     "plan-1",
		Title:  "Create task: Ship it",
		Intent: "create-task",
		Steps: []agent.Step{
			{
				ID:       "step-1",
				ToolName: "create_task",
				Parameters: map[string]interface{}{
					"title": "Ship it",
				},
				Status: agent.StepStatusPending,
			},
		},
	}
	if err := store.Create(session); err != nil {
		t.Fatal(err)
	}
	if session.Version != 1 {
		t.Errorf("new session version = %d, want 1", session.Version)
	}

	got, err := store.Get("ses-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.OwnerID != "ana" || got.ProjectID != "proj-1" || got.State != agent.StatePlanning {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Plan == nil || got.Plan.ID != "plan-1" || len(got.Plan.Steps) != 1 {
		t.Fatalf("plan did not round-trip: %+v", got.Plan)
	}
	if title, _ := tool.GetString(got.Plan.Steps[0].Parameters, "title"); title != "Ship it" {
		t.Errorf("step parameters did not round-trip: %+v", got.Plan.Steps[0].Parameters)
	}

	_, err = store.Get("ses-missing")
	if !errors.Is(err, agent.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreVersionCheck(t *testing.T) {
	store := NewSessionStore(openTestDB(t))
	if err := store.Create(sampleSession("ses-1")); err != nil {
		t.Fatal(err)
	}

	first, _ := store.Get("ses-1")
	second, _ := store.Get("ses-1")

	first.State = agent.StateAwaitingApproval
	if err := store.Update(first); err != nil {
		t.Fatal(err)
	}
	if first.Version != 2 {
		t.Errorf("version after update = %d, want 2", first.Version)
	}

	// The stale copy must not win
	second.State = agent.StateFailed
	err := store.Update(second)
	if !errors.Is(err, agent.ErrConflict) {
		t.Errorf("expected ErrConflict for stale update, got %v", err)
	}

	got, _ := store.Get("ses-1")
	if got.State != agent.StateAwaitingApproval {
		t.Errorf("state = %s, want %s", got.State, agent.StateAwaitingApproval)
	}

	missing := sampleSession("ses-gone")
	missing.Version = 1
	if err := store.Update(missing); !errors.Is(err, agent.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreListStale(t *testing.T) {
	database := openTestDB(t)
	store := NewSessionStore(database)

	stale := sampleSession("ses-stale")
	fresh := sampleSession("ses-fresh")
	done := sampleSession("ses-done")
	done.State = agent.StateCompleted
	for _, s := range []*agent.Session{stale, fresh, done} {
		if err := store.Create(s); err != nil {
			t.Fatal(err)
		}
	}

	past := time.Now().Add(-48 * time.Hour)
	for _, id := range []string{"ses-stale", "ses-done"} {
		if _, err := database.Exec("UPDATE agent_sessions SET updated_at = ? WHERE id = ?", past, id); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListStale(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "ses-stale" {
		t.Errorf("ListStale returned %+v, want only ses-stale", got)
	}
}

func TestAuditLogAppendOnly(t *testing.T) {
	log := NewAuditLog(openTestDB(t))

	recs := []agent.AuditRecord{
		{SessionID: "ses-1", ActorID: "ana", Action: agent.ActionPlanCreated, TargetType: "plan", TargetID: "plan-1",
			Payload: map[string]interface{}{"intent": "create-task"}, Status: agent.AuditStatusPlanned, CreatedAt: time.Now()},
		{SessionID: "ses-1", ActorID: "ana", Action: agent.ActionPlanApproved, TargetType: "plan", TargetID: "plan-1",
			Status: agent.AuditStatusExecuted, CreatedAt: time.Now()},
		{SessionID: "ses-2", ActorID: "bo", Action: agent.ActionPlanCreated, TargetType: "plan", TargetID: "plan-2",
			Status: agent.AuditStatusPlanned, CreatedAt: time.Now()},
	}
	for _, rec := range recs {
		if err := log.Append(rec); err != nil {
			t.Fatal(err)
		}
	}

	got, err := log.BySession("ses-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("BySession returned %d records, want 2", len(got))
	}
	if got[0].Action != agent.ActionPlanCreated || got[1].Action != agent.ActionPlanApproved {
		t.Errorf("records out of order: %s, %s", got[0].Action, got[1].Action)
	}
	if got[0].Payload["intent"] != "create-task" {
		t.Errorf("payload did not round-trip: %+v", got[0].Payload)
	}
	if got[0].ID == 0 || got[1].ID <= got[0].ID {
		t.Errorf("ids not monotonic: %d, %d", got[0].ID, got[1].ID)
	}
}

func TestTaskStore(t *testing.T) {
	store := NewTaskStore(openTestDB(t))
	ctx := context.Background()

	created, err := store.CreateTask(ctx, tool.Task{
		ProjectID: "proj-1",
		Title:     "Fix the login flow",
		Status:    "open",
		CreatedBy: "ana",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Fatal("created task has no id")
	}

	t.Run("get and update status", func(t *testing.T) {
		got, err := store.GetTask(ctx, created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Title != "Fix the login flow" || got.Status != "open" {
			t.Errorf("unexpected task: %+v", got)
		}

		updated, err := store.UpdateTaskStatus(ctx, created.ID, "done")
		if err != nil {
			t.Fatal(err)
		}
		if updated.Status != "done" {
			t.Errorf("status = %q, want done", updated.Status)
		}

		if _, err := store.UpdateTaskStatus(ctx, "task-nope", "done"); err == nil {
			t.Error("expected error for missing task")
		}
	})

	t.Run("notes", func(t *testing.T) {
		note, err := store.AddNote(ctx, tool.Note{TaskID: created.ID, Author: "ana", Body: "see incident doc"})
		if err != nil {
			t.Fatal(err)
		}
		if note.ID == "" {
			t.Error("note has no id")
		}
		if _, err := store.AddNote(ctx, tool.Note{TaskID: "task-nope", Body: "orphan"}); err == nil {
			t.Error("expected error adding note to missing task")
		}
	})

	t.Run("list by project", func(t *testing.T) {
		if _, err := store.CreateTask(ctx, tool.Task{ProjectID: "proj-2", Title: "Other project", Status: "open"}); err != nil {
			t.Fatal(err)
		}
		tasks, err := store.ListTasks(ctx, "proj-1")
		if err != nil {
			t.Fatal(err)
		}
		if len(tasks) != 1 || tasks[0].ID != created.ID {
			t.Errorf("ListTasks(proj-1) = %+v", tasks)
		}
	})

	t.Run("notifications", func(t *testing.T) {
		n, err := store.RecordNotification(ctx, tool.Notification{ProjectID: "proj-1", Actor: "ana", Message: "done: login flow"})
		if err != nil {
			t.Fatal(err)
		}
		if n.ID == "" {
			t.Error("notification has no id")
		}
	})

	t.Run("delete removes task and notes", func(t *testing.T) {
		if err := store.DeleteTask(ctx, created.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := store.GetTask(ctx, created.ID); err == nil {
			t.Error("task still present after delete")
		}
		if err := store.DeleteTask(ctx, created.ID); err == nil {
			t.Error("expected error deleting a missing task")
		}
	})
}
