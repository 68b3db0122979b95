package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateDirtyTracking creates the dirty_elements table used to drive
// incremental JSONL export in L2 Sync, grounded on the teacher's
// dirty_issues table (internal/storage/sqlite/dirty.go).
func MigrateDirtyTracking(db *sql.DB) error {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='dirty_elements'`).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check dirty_elements table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE dirty_elements (
			element_id   TEXT PRIMARY KEY,
			marked_at    DATETIME NOT NULL,
			content_hash TEXT,
			FOREIGN KEY (element_id) REFERENCES elements(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("create dirty_elements table: %w", err)
	}
	return nil
}
