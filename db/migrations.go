package db

import (
	"database/sql"
	"fmt"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations list all database migrations in order
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create session and audit tables",
		SQL: `
			-- Sessions carry the full plan and result as JSON documents;
			-- version backs the optimistic-concurrency check on updates
			CREATE TABLE IF NOT EXISTS agent_sessions (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				project_id TEXT,
				state TEXT NOT NULL CHECK (state IN ('planning', 'awaiting_approval', 'executing', 'completed', 'failed')),
				plan JSON,
				result JSON,
				error TEXT,
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_agent_sessions_owner ON agent_sessions(owner_id);
			CREATE INDEX IF NOT EXISTS idx_agent_sessions_state ON agent_sessions(state);

			-- Audit records are append-only: inserted, never updated or deleted
			CREATE SEQUENCE IF NOT EXISTS audit_records_id_seq;
			CREATE TABLE IF NOT EXISTS audit_records (
				id INTEGER PRIMARY KEY DEFAULT nextval('audit_records_id_seq'),
				session_id TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				action TEXT NOT NULL,
				target_type TEXT,
				target_id TEXT,
				payload JSON,
				status TEXT NOT NULL CHECK (status IN ('planned', 'executed', 'failed')),
				error TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_audit_records_session ON audit_records(session_id);

			-- Migrations bookkeeping
			CREATE TABLE IF NOT EXISTS migrations (
				version INTEGER PRIMARY KEY,
				description TEXT NOT NULL,
				applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version:     2,
		Description: "Create task, note and notification tables",
		SQL: `
			CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				project_id TEXT,
				title TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('open', 'in_progress', 'blocked', 'done')),
				assignee TEXT,
				created_by TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
			CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

			-- No FOREIGN KEY on task_id: DuckDB keeps the constraint visible
			-- to deletes within the same transaction, which would block
			-- removing a task right after its notes. AddNote checks the
			-- task exists instead.
			CREATE TABLE IF NOT EXISTS task_notes (
				id TEXT PRIMARY KEY,
				task_id TEXT NOT NULL,
				author TEXT,
				body TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_task_notes_task ON task_notes(task_id);

			-- Outbound notifications are recorded, not delivered, here
			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				project_id TEXT,
				actor TEXT,
				message TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_notifications_project ON notifications(project_id);
		`,
	},
}

// Migrate runs all pending database migrations
func (db *DB) Migrate() error {
	// First, ensure migrations table exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return serr.Wrap(err, "failed to create migrations table")
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return serr.Wrap(err, "failed to get current migration version")
	}

	// Apply pending migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logger.Info("Applying migration", "version", migration.Version, "description", migration.Description)

		err := db.Transaction(func(tx *sql.Tx) error {
			if _, err := tx.Exec(migration.SQL); err != nil {
				return serr.Wrap(err, fmt.Sprintf("failed to execute migration %d", migration.Version))
			}

			_, err := tx.Exec(
				"INSERT INTO migrations (version, description) VALUES (?, ?)",
				migration.Version, migration.Description,
			)
			if err != nil {
				return serr.Wrap(err, "failed to record migration")
			}

			return nil
		})

		if err != nil {
			return err
		}
	}

	return nil
}
