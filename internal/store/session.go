package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// CreateSession persists a newly-started session's initial snapshot.
func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, agent_id, provider_session_id, mode, status, working_directory, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.SessionID, sess.AgentID, nullString(sess.ProviderSessionID), string(sess.Mode), string(sess.Status),
		sess.WorkingDirectory, sess.StartedAt, nullTime(sess.EndedAt))
	if err != nil {
		return errs.Storage("store.CreateSession", errs.CodeDatabaseError, err)
	}
	return nil
}

// UpdateSessionStatus updates a session's status, provider session id
// (once captured), and end time — the fields that change over a
// session's lifetime as it moves through the L5a state machine.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status types.SessionStatus, providerSessionID string, endedAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, provider_session_id = COALESCE(?, provider_session_id), ended_at = ?
		WHERE id = ?
	`, string(status), nullString(providerSessionID), nullTime(endedAt), sessionID)
	if err != nil {
		return errs.Storage("store.UpdateSessionStatus", errs.CodeDatabaseError, err)
	}
	return nil
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// GetSession retrieves a session snapshot by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx, sessionSelectColumns+` WHERE id = ?`, sessionID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFound("store.GetSession", fmt.Errorf("session %s not found", sessionID))
	}
	if err != nil {
		return nil, errs.Storage("store.GetSession", errs.CodeDatabaseError, err)
	}
	return sess, nil
}

// ListSessionsByAgent returns an agent's sessions ordered newest-first.
func (s *Store) ListSessionsByAgent(ctx context.Context, agentID string) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionSelectColumns+` WHERE agent_id = ? ORDER BY started_at DESC`, agentID)
	if err != nil {
		return nil, errs.Storage("store.ListSessionsByAgent", errs.CodeDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errs.Storage("store.ListSessionsByAgent", errs.CodeDatabaseError, err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

const sessionSelectColumns = `SELECT id, agent_id, provider_session_id, mode, status, working_directory, started_at, ended_at FROM sessions`

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scannable) (*types.Session, error) {
	var sess types.Session
	var providerSessionID sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&sess.SessionID, &sess.AgentID, &providerSessionID, &sess.Mode, &sess.Status,
		&sess.WorkingDirectory, &sess.StartedAt, &endedAt); err != nil {
		return nil, err
	}
	sess.ProviderSessionID = providerSessionID.String
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return &sess, nil
}
