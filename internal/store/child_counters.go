package store

import (
	"context"
	"database/sql"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/idgen"
)

// GetNextChildNumber atomically allocates and returns the next child
// number for parentID, strictly increasing per parent (spec.md §4.1
// hierarchical-monotonicity invariant). It uses the same
// INSERT ... ON CONFLICT DO UPDATE ... RETURNING increment pattern as
// the teacher's child_counters table, wrapped in a BEGIN IMMEDIATE
// transaction so two concurrent callers for the same parent never
// observe the same number.
func (s *Store) GetNextChildNumber(ctx context.Context, parentID string) (int, error) {
	var n int
	err := s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
			INSERT INTO child_counters (parent_id, next_n) VALUES (?, 2)
			ON CONFLICT (parent_id) DO UPDATE SET next_n = next_n + 1
			RETURNING next_n - 1
		`, parentID)
		return row.Scan(&n)
	})
	if err != nil {
		return 0, errs.Storage("store.GetNextChildNumber", errs.CodeDatabaseError, err)
	}
	return n, nil
}

// NextChildID allocates the next child number for parentID and returns
// the formatted hierarchical id el-<parent>.<n>.
func (s *Store) NextChildID(ctx context.Context, parentID string) (string, error) {
	n, err := s.GetNextChildNumber(ctx, parentID)
	if err != nil {
		return "", err
	}
	return idgen.ChildID(parentID, n), nil
}
