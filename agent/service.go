package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
	"steward/tool"
)

// SessionStore persists sessions. Update performs an optimistic-concurrency
// check on Session.Version and fails with ErrConflict when the stored row
// has moved on, so racing decisions and the expiry sweep serialize cleanly.
type SessionStore interface {
	Create(s *Session) error
	Get(id string) (*Session, error)
	Update(s *Session) error
	List() ([]*Session, error)
	ListStale(cutoff time.Time) ([]*Session, error)
}

// AuditLog is the append-only trail of pipeline activity
type AuditLog interface {
	Append(rec AuditRecord) error
	BySession(sessionID string) ([]AuditRecord, error)
}

// Notifier receives pipeline lifecycle events for live observers (SSE)
type Notifier interface {
	Publish(event, sessionID string, data map[string]interface{})
}

// Service runs the agent action pipeline: plan, dry-run, approve, execute.
// All collaborators are injected; construct one per application (or per test).
type Service struct {
	store        SessionStore
	audit        AuditLog
	registry     *tool.Registry
	events       Notifier
	previewLimit int
	now          func() time.Time
}

// ServiceOptions tune a Service beyond its required collaborators
type ServiceOptions struct {
	PreviewLimit int // max chars of a dry-run read preview; 0 means the 500 default
	Events       Notifier
}

// NewService constructs the pipeline service
func NewService(store SessionStore, audit AuditLog, registry *tool.Registry, opts ServiceOptions) *Service {
	limit := opts.PreviewLimit
	if limit <= 0 {
		limit = 500
	}
	return &Service{
		store:        store,
		audit:        audit,
		registry:     registry,
		events:       opts.Events,
		previewLimit: limit,
		now:          time.Now,
	}
}

// CreateSession opens a new session owned by the actor, optionally scoped
// to a project
func (s *Service) CreateSession(actor Principal, projectID string) (*Session, error) {
	now := s.now()
	session := &Session{
		ID:        "ses-" + uuid.NewString(),
		OwnerID:   actor.ID,
		ProjectID: projectID,
		State:     StatePlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(session); err != nil {
		return nil, serr.Wrap(err, "failed to create session")
	}

	logger.Info("Created session", "id", session.ID, "owner", actor.ID)
	s.publish("session_created", session.ID, map[string]interface{}{"owner_id": actor.ID})
	return session, nil
}

// GetSession returns a session the actor is allowed to see
func (s *Service) GetSession(actor Principal, id string) (*Session, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(session) {
		return nil, ErrForbidden
	}
	return session, nil
}

// ListSessions returns the actor's sessions; admins see all
func (s *Service) ListSessions(actor Principal) ([]*Session, error) {
	sessions, err := s.store.List()
	if err != nil {
		return nil, err
	}
	if actor.Admin {
		return sessions, nil
	}
	owned := sessions[:0]
	for _, session := range sessions {
		if session.OwnerID == actor.ID {
			owned = append(owned, session)
		}
	}
	return owned, nil
}

// CancelSession terminalizes a non-terminal session. The session and its
// plan are retained for audit; only the state changes.
func (s *Service) CancelSession(actor Principal, id string) (*Session, error) {
	session, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(session) {
		return nil, ErrForbidden
	}
	if session.State.Terminal() {
		return nil, ErrSessionTerminal
	}

	previous := session.State
	session.State = StateFailed
	session.Error = "Session cancelled by " + actor.ID
	if err := s.store.Update(session); err != nil {
		return nil, err
	}

	s.auditAppend(AuditRecord{
		ActorID:    actor.ID,
		SessionID:  session.ID,
		Action:     ActionSessionCancelled,
		TargetType: "session",
		TargetID:   session.ID,
		Payload:    map[string]interface{}{"previous_state": string(previous)},
		Status:     AuditStatusExecuted,
	})

	logger.Info("Cancelled session", "id", id, "actor", actor.ID, "previous_state", string(previous))
	s.publish("session_cancelled", id, map[string]interface{}{"previous_state": string(previous)})
	return session, nil
}

// AuditTrail returns the audit records for a session the actor may see
func (s *Service) AuditTrail(actor Principal, sessionID string) ([]AuditRecord, error) {
	session, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(session) {
		return nil, ErrForbidden
	}
	return s.audit.BySession(sessionID)
}

// auditAppend writes an audit record best-effort: a failed write is
// surfaced in the application log, never rolled into the caller's error
func (s *Service) auditAppend(rec AuditRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	if err := s.audit.Append(rec); err != nil {
		logger.LogErr(err, "failed to append audit record",
			"action", rec.Action, "target", rec.TargetID)
	}
}

func (s *Service) publish(event, sessionID string, data map[string]interface{}) {
	if s.events != nil {
		s.events.Publish(event, sessionID, data)
	}
}

// traceID builds the identifier unique to one run+step
func traceID(runID, stepID string) string {
	return fmt.Sprintf("%s/%s", runID, stepID)
}
