package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rohanthewiz/serr"
	"steward/tool"
)

// memStore is an in-memory SessionStore with the same version-check
// semantics the database store has.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*Session{}}
}

func cloneSession(s *Session) *Session {
	raw, _ := json.Marshal(s)
	var out Session
	_ = json.Unmarshal(raw, &out)
	return &out
}

func (m *memStore) Create(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Version = 1
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *memStore) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, serr.Wrap(ErrSessionNotFound, "id", id)
	}
	return cloneSession(s), nil
}

func (m *memStore) Update(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return serr.Wrap(ErrSessionNotFound, "id", s.ID)
	}
	if cur.Version != s.Version {
		return serr.Wrap(ErrConflict, "id", s.ID)
	}
	s.Version++
	s.UpdatedAt = time.Now()
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *memStore) List() ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, cloneSession(s))
	}
	return out, nil
}

func (m *memStore) ListStale(cutoff time.Time) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if !s.State.Terminal() && s.UpdatedAt.Before(cutoff) {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

// touch backdates a stored session's activity timestamp
func (m *memStore) touch(id string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.UpdatedAt = at
	}
}

// memAudit is an in-memory append-only AuditLog
type memAudit struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (m *memAudit) Append(rec AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return nil
}

func (m *memAudit) BySession(sessionID string) ([]AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditRecord
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memAudit) byAction(sessionID, action string) []AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditRecord
	for _, rec := range m.records {
		if rec.SessionID == sessionID && rec.Action == action {
			out = append(out, rec)
		}
	}
	return out
}

// memTasks backs the built-in tools with an in-memory task table
type memTasks struct {
	mu            sync.Mutex
	seq           int
	tasks         map[string]tool.Task
	notes         []tool.Note
	notifications []tool.Notification
	failCreate    bool
}

func newMemTasks() *memTasks {
	return &memTasks{tasks: map[string]tool.Task{}}
}

func (m *memTasks) CreateTask(ctx context.Context, t tool.Task) (tool.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return tool.Task{}, serr.New("task store unavailable")
	}
	m.seq++
	t.ID = fmt.Sprintf("task-%d", m.seq)
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memTasks) GetTask(ctx context.Context, id string) (tool.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return tool.Task{}, serr.New("task not found", "task_id", id)
	}
	return t, nil
}

func (m *memTasks) UpdateTaskStatus(ctx context.Context, id, status string) (tool.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return tool.Task{}, serr.New("task not found", "task_id", id)
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	m.tasks[id] = t
	return t, nil
}

func (m *memTasks) DeleteTask(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return serr.New("task not found", "task_id", id)
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) ListTasks(ctx context.Context, projectID string) ([]tool.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tool.Task
	for _, t := range m.tasks {
		if projectID == "" || t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) AddNote(ctx context.Context, n tool.Note) (tool.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = fmt.Sprintf("note-%d", len(m.notes)+1)
	n.CreatedAt = time.Now()
	m.notes = append(m.notes, n)
	return n, nil
}

func (m *memTasks) RecordNotification(ctx context.Context, n tool.Notification) (tool.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = fmt.Sprintf("ntf-%d", len(m.notifications)+1)
	n.CreatedAt = time.Now()
	m.notifications = append(m.notifications, n)
	return n, nil
}

var allScopes = []string{
	tool.ScopeTasksRead, tool.ScopeTasksWrite, tool.ScopeTasksDelete, tool.ScopeNotifySend,
}

func owner() Principal {
	return Principal{ID: "ana", Scopes: allScopes}
}

func admin() Principal {
	return Principal{ID: "root", Scopes: allScopes, Admin: true}
}

// newTestService wires a Service over in-memory collaborators with the
// built-in tools registered.
func newTestService(t *testing.T) (*Service, *memStore, *memAudit, *memTasks) {
	t.Helper()
	store := newMemStore()
	audit := &memAudit{}
	tasks := newMemTasks()
	registry := tool.NewRegistry()
	if err := tool.RegisterDefaults(registry, tasks); err != nil {
		t.Fatalf("registering tools: %v", err)
	}
	svc := NewService(store, audit, registry, ServiceOptions{})
	return svc, store, audit, tasks
}

// seedTask inserts a task directly into the fake store
func seedTask(tasks *memTasks, projectID, title, status string) tool.Task {
	tasks.mu.Lock()
	defer tasks.mu.Unlock()
	tasks.seq++
	t := tool.Task{
		ID:        fmt.Sprintf("task-%d", tasks.seq),
		ProjectID: projectID,
		Title:     title,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	tasks.tasks[t.ID] = t
	return t
}
