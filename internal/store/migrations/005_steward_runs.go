package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateStewardRuns creates the steward_runs table backing L5b's
// bounded execution history. Rows are never trimmed: the table is an
// ordinary append-only log, and the bound lives in ListStewardRuns,
// which returns only the newest rows up to its limit.
func MigrateStewardRuns(db *sql.DB) error {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='steward_runs'`).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check steward_runs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE steward_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			steward_id  TEXT NOT NULL,
			trigger     TEXT NOT NULL,
			started_at  DATETIME NOT NULL,
			finished_at DATETIME,
			status      TEXT NOT NULL,
			summary     TEXT,
			error       TEXT,
			FOREIGN KEY (steward_id) REFERENCES elements(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("create steward_runs table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX idx_steward_runs_steward ON steward_runs(steward_id, started_at DESC)`)
	if err != nil {
		return fmt.Errorf("create steward_runs index: %w", err)
	}
	return nil
}
