// Package migrations holds idempotent schema steps applied in order by
// Store.runMigrations. Each function checks sqlite_master before acting
// so re-running a migration against an up-to-date database is a no-op,
// matching the teacher's internal/storage/sqlite/migrations convention.
package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateInitialSchema creates the elements, dependencies, and
// child_counters tables. Task-specific fields (status, priority,
// complexity, assignee) are denormalized onto elements as nullable
// columns, extracted from metadata at write time, the way the teacher
// flattens issue fields onto dedicated columns rather than querying
// into a JSON blob on every ready-work scan.
func MigrateInitialSchema(db *sql.DB) error {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='elements'`).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check elements table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE elements (
			id           TEXT PRIMARY KEY,
			type         TEXT NOT NULL,
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL,
			created_by   TEXT NOT NULL,
			tags         TEXT NOT NULL DEFAULT '[]',
			metadata     TEXT NOT NULL DEFAULT '{}',
			content_hash TEXT NOT NULL DEFAULT '',
			deleted_at   DATETIME,

			task_status     TEXT,
			task_priority   INTEGER,
			task_complexity INTEGER,
			task_assignee   TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create elements table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX idx_elements_type ON elements(type);
		CREATE INDEX idx_elements_task_ready ON elements(task_status, deleted_at) WHERE type = 'task';
		CREATE INDEX idx_elements_deleted_at ON elements(deleted_at);
	`)
	if err != nil {
		return fmt.Errorf("create elements indexes: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE dependencies (
			blocked_id TEXT NOT NULL,
			blocker_id TEXT NOT NULL,
			type       TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (blocked_id, blocker_id, type),
			FOREIGN KEY (blocked_id) REFERENCES elements(id) ON DELETE CASCADE,
			FOREIGN KEY (blocker_id) REFERENCES elements(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("create dependencies table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX idx_dependencies_blocker ON dependencies(blocker_id);
		CREATE INDEX idx_dependencies_blocked_type ON dependencies(blocked_id, type);
	`)
	if err != nil {
		return fmt.Errorf("create dependencies indexes: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE child_counters (
			parent_id TEXT PRIMARY KEY,
			next_n    INTEGER NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		return fmt.Errorf("create child_counters table: %w", err)
	}

	return nil
}
