package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
)

// StewardRun is one row of a steward's execution history.
type StewardRun struct {
	ID         int64
	StewardID  string
	Trigger    string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Summary    string
	Error      string
}

// RecordStewardRunStart inserts a new in-flight run and returns its id.
func (s *Store) RecordStewardRunStart(ctx context.Context, stewardID, trigger string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO steward_runs (steward_id, trigger, started_at, status) VALUES (?, ?, ?, 'running')
	`, stewardID, trigger, startedAt)
	if err != nil {
		return 0, errs.Storage("store.RecordStewardRunStart", errs.CodeDatabaseError, err)
	}
	return res.LastInsertId()
}

// FinishStewardRun records the terminal outcome of a previously-started
// run.
func (s *Store) FinishStewardRun(ctx context.Context, runID int64, finishedAt time.Time, status, summary, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE steward_runs SET finished_at = ?, status = ?, summary = ?, error = ? WHERE id = ?
	`, finishedAt, status, nullString(summary), nullString(errMsg), runID)
	if err != nil {
		return errs.Storage("store.FinishStewardRun", errs.CodeDatabaseError, err)
	}
	return nil
}

// ListStewardRuns returns a steward's run history, newest first, capped
// at limit (the ring-buffer view over the append-only table).
func (s *Store) ListStewardRuns(ctx context.Context, stewardID string, limit int) ([]StewardRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, steward_id, trigger, started_at, finished_at, status, summary, error
		FROM steward_runs WHERE steward_id = ? ORDER BY started_at DESC LIMIT ?
	`, stewardID, limit)
	if err != nil {
		return nil, errs.Storage("store.ListStewardRuns", errs.CodeDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []StewardRun
	for rows.Next() {
		var run StewardRun
		var finishedAt sql.NullTime
		var summary, errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.StewardID, &run.Trigger, &run.StartedAt, &finishedAt, &run.Status, &summary, &errMsg); err != nil {
			return nil, errs.Storage("store.ListStewardRuns", errs.CodeDatabaseError, err)
		}
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		run.Summary = summary.String
		run.Error = errMsg.String
		out = append(out, run)
	}
	return out, rows.Err()
}
