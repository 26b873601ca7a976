package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rohanthewiz/serr"
	"steward/agent"
)

// SessionStore persists agent sessions in DuckDB. The plan and result are
// stored as JSON documents alongside the queryable session columns.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

var _ agent.SessionStore = (*SessionStore)(nil)

const sessionColumns = "id, owner_id, project_id, state, plan, result, error, version, created_at, updated_at"

// Create inserts a new session at version 1
func (s *SessionStore) Create(session *agent.Session) error {
	planJSON, resultJSON, err := marshalSessionDocs(session)
	if err != nil {
		return err
	}

	session.Version = 1
	_, err = s.db.Exec(`
		INSERT INTO agent_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.OwnerID, nullable(session.ProjectID), string(session.State),
		planJSON, resultJSON, nullable(session.Error), session.Version,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return serr.Wrap(err, "failed to insert session", "id", session.ID)
	}
	return nil
}

// Get returns the session by id
func (s *SessionStore) Get(id string) (*agent.Session, error) {
	row := s.db.QueryRow("SELECT "+sessionColumns+" FROM agent_sessions WHERE id = ?", id)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, serr.Wrap(agent.ErrSessionNotFound, "id", id)
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to get session", "id", id)
	}
	return session, nil
}

// Update writes the session back, guarded by its version: the row must
// still be at the version the caller read, otherwise ErrConflict. On
// success the caller's copy is bumped to the stored version.
func (s *SessionStore) Update(session *agent.Session) error {
	planJSON, resultJSON, err := marshalSessionDocs(session)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE agent_sessions
		SET state = ?, plan = ?, result = ?, error = ?,
		    version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`,
		string(session.State), planJSON, resultJSON, nullable(session.Error),
		session.ID, session.Version,
	)
	if err != nil {
		return serr.Wrap(err, "failed to update session", "id", session.ID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return serr.Wrap(err, "failed to read update result", "id", session.ID)
	}
	if affected == 0 {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM agent_sessions WHERE id = ?", session.ID).Scan(&n); err == nil && n == 0 {
			return serr.Wrap(agent.ErrSessionNotFound, "id", session.ID)
		}
		return serr.Wrap(agent.ErrConflict, "session was modified concurrently", "id", session.ID)
	}

	session.Version++
	return nil
}

// List returns all sessions, newest first
func (s *SessionStore) List() ([]*agent.Session, error) {
	rows, err := s.db.Query("SELECT " + sessionColumns + " FROM agent_sessions ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListStale returns non-terminal sessions whose last activity predates cutoff
func (s *SessionStore) ListStale(cutoff time.Time) ([]*agent.Session, error) {
	rows, err := s.db.Query(`
		SELECT `+sessionColumns+` FROM agent_sessions
		WHERE updated_at < ? AND state NOT IN ('completed', 'failed')
		ORDER BY updated_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]*agent.Session, error) {
	var sessions []*agent.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan session row")
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "session row iteration failed")
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*agent.Session, error) {
	var session agent.Session
	var state string
	var projectID, planJSON, resultJSON, errMsg sql.NullString

	err := row.Scan(&session.ID, &session.OwnerID, &projectID, &state,
		&planJSON, &resultJSON, &errMsg, &session.Version,
		&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	session.State = agent.SessionState(state)
	session.ProjectID = projectID.String
	session.Error = errMsg.String
	if planJSON.Valid && planJSON.String != "" {
		var plan agent.Plan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err != nil {
			return nil, serr.Wrap(err, "failed to unmarshal plan", "session", session.ID)
		}
		session.Plan = &plan
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result agent.RunResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, serr.Wrap(err, "failed to unmarshal result", "session", session.ID)
		}
		session.Result = &result
	}
	return &session, nil
}

func marshalSessionDocs(session *agent.Session) (planJSON, resultJSON interface{}, err error) {
	if session.Plan != nil {
		raw, err := json.Marshal(session.Plan)
		if err != nil {
			return nil, nil, serr.Wrap(err, "failed to marshal plan", "session", session.ID)
		}
		planJSON = string(raw)
	}
	if session.Result != nil {
		raw, err := json.Marshal(session.Result)
		if err != nil {
			return nil, nil, serr.Wrap(err, "failed to marshal result", "session", session.ID)
		}
		resultJSON = string(raw)
	}
	return planJSON, resultJSON, nil
}

// nullable maps the empty string onto SQL NULL
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
