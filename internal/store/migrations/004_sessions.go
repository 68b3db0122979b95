package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateSessions creates the sessions table backing L5a Session
// resumability: a session's runtime state is in-memory, but its last
// known snapshot is persisted here so a headless session can resume
// against its providerSessionId after a process restart.
func MigrateSessions(db *sql.DB) error {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='sessions'`).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check sessions table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE sessions (
			id                  TEXT PRIMARY KEY,
			agent_id            TEXT NOT NULL,
			provider_session_id TEXT,
			mode                TEXT NOT NULL,
			status              TEXT NOT NULL,
			working_directory   TEXT NOT NULL,
			started_at          DATETIME NOT NULL,
			ended_at            DATETIME,
			FOREIGN KEY (agent_id) REFERENCES elements(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX idx_sessions_agent ON sessions(agent_id)`)
	if err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	return nil
}
