package store

import (
	"context"
	"database/sql"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
)

// SetConfig upserts a singleton configuration value, grounded on the
// teacher's internal/storage/sqlite/config.go SetConfig. L4 Dispatch
// uses this to persist the JSON-encoded rateLimits tracker state.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return errs.Storage("store.SetConfig", errs.CodeDatabaseError, err)
	}
	return nil
}

// GetConfig returns the value stored under key, or ("", false, nil) if
// unset.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Storage("store.GetConfig", errs.CodeDatabaseError, err)
	}
	return value, true, nil
}

// DeleteConfig removes key, if present.
func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key)
	if err != nil {
		return errs.Storage("store.DeleteConfig", errs.CodeDatabaseError, err)
	}
	return nil
}
