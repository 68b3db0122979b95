package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateConfig creates the config key/value table, grounded on the
// teacher's internal/storage/sqlite/config.go. It backs rate-limit
// settings and other runtime-tunable L4 Dispatch values.
func MigrateConfig(db *sql.DB) error {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='config'`).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check config table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create config table: %w", err)
	}
	return nil
}
