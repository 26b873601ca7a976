package db

import (
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/rohanthewiz/serr"
	"steward/agent"
)

// AuditLog persists the append-only audit trail. Records are only ever
// inserted; there is no update or delete path.
type AuditLog struct {
	db *DB
}

func NewAuditLog(db *DB) *AuditLog {
	return &AuditLog{db: db}
}

var _ agent.AuditLog = (*AuditLog)(nil)

// Append inserts one audit record
func (a *AuditLog) Append(rec agent.AuditRecord) error {
	var payloadJSON interface{}
	if rec.Payload != nil {
		raw, err := json.Marshal(rec.Payload)
		if err != nil {
			return serr.Wrap(err, "failed to marshal audit payload", "action", rec.Action)
		}
		payloadJSON = string(raw)
	}

	_, err := a.db.Exec(`
		INSERT INTO audit_records (session_id, actor_id, action, target_type, target_id, payload, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.ActorID, rec.Action, nullable(rec.TargetType), nullable(rec.TargetID),
		payloadJSON, rec.Status, nullable(rec.Error), rec.CreatedAt,
	)
	if err != nil {
		return serr.Wrap(err, "failed to append audit record", "session", rec.SessionID, "action", rec.Action)
	}
	return nil
}

// BySession returns a session's audit records in insertion order
func (a *AuditLog) BySession(sessionID string) ([]agent.AuditRecord, error) {
	rows, err := a.db.Query(`
		SELECT id, session_id, actor_id, action, target_type, target_id, payload, status, error, created_at
		FROM audit_records WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []agent.AuditRecord
	for rows.Next() {
		var rec agent.AuditRecord
		var targetType, targetID, payloadJSON, errMsg sql.NullString
		err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ActorID, &rec.Action,
			&targetType, &targetID, &payloadJSON, &rec.Status, &errMsg, &rec.CreatedAt)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan audit row", "session", sessionID)
		}
		rec.TargetType = targetType.String
		rec.TargetID = targetID.String
		rec.Error = errMsg.String
		if payloadJSON.Valid && payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &rec.Payload); err != nil {
				return nil, serr.Wrap(err, "failed to unmarshal audit payload",
				"id", strconv.FormatInt(rec.ID, 10))
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "audit row iteration failed")
	}
	return records, nil
}
