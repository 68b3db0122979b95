package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// AddDependencyOptions controls whether AddDependency runs cycle
// detection before inserting. Per spec.md §4.1: "the default path does
// not validate cycles — callers that care must run detectCycle."
type AddDependencyOptions struct {
	CheckCycle bool
}

// AddDependency inserts edge, marking both endpoints dirty in the same
// transaction. If opts.CheckCycle is set and inserting edge would close
// a cycle in the blocking subgraph, it returns errs.KindConflict/
// CodeCycleDetected and the edge is not inserted.
func (s *Store) AddDependency(ctx context.Context, edge types.Dependency, opts AddDependencyOptions) error {
	if err := edge.Validate(); err != nil {
		return errs.Validation("store.AddDependency", errs.CodeInvalidInput, err)
	}

	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		if edge.Type.IsBlocking() && opts.CheckCycle {
			cycle, err := detectCycleTx(ctx, conn, edge)
			if err != nil {
				return err
			}
			if cycle != nil {
				return errs.CycleDetected("store.AddDependency", fmt.Errorf("adding %s would create cycle: %v", edge.Key(), cycle))
			}
		}

		_, err := conn.ExecContext(ctx, `
			INSERT INTO dependencies (blocked_id, blocker_id, type, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (blocked_id, blocker_id, type) DO NOTHING
		`, edge.BlockedID, edge.BlockerID, string(edge.Type), time.Now().UTC())
		if err != nil {
			return errs.Storage("store.AddDependency", errs.CodeDatabaseError, err)
		}

		if err := markDirtyFromID(ctx, conn, edge.BlockedID); err != nil {
			return err
		}
		return markDirtyFromID(ctx, conn, edge.BlockerID)
	})
}

// RemoveDependency deletes edge and marks both endpoints dirty.
func (s *Store) RemoveDependency(ctx context.Context, edge types.Dependency) error {
	return s.withImmediateTx(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `
			DELETE FROM dependencies WHERE blocked_id = ? AND blocker_id = ? AND type = ?
		`, edge.BlockedID, edge.BlockerID, string(edge.Type))
		if err != nil {
			return errs.Storage("store.RemoveDependency", errs.CodeDatabaseError, err)
		}
		if err := markDirtyFromID(ctx, conn, edge.BlockedID); err != nil {
			return err
		}
		return markDirtyFromID(ctx, conn, edge.BlockerID)
	})
}

func markDirtyFromID(ctx context.Context, conn *sql.Conn, id string) error {
	var hash sql.NullString
	err := conn.QueryRowContext(ctx, `SELECT content_hash FROM elements WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errs.Storage("store.markDirty", errs.CodeDatabaseError, err)
	}
	return markDirtyTx(ctx, conn, id, hash.String)
}

// ListAllDependencies returns every dependency edge in the store, for
// L2 Sync's full JSONL export and dependency-merge baseline snapshots.
func (s *Store) ListAllDependencies(ctx context.Context) ([]types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blocked_id, blocker_id, type FROM dependencies`)
	if err != nil {
		return nil, errs.Storage("store.ListAllDependencies", errs.CodeDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Dependency
	for rows.Next() {
		var d types.Dependency
		var depType string
		if err := rows.Scan(&d.BlockedID, &d.BlockerID, &depType); err != nil {
			return nil, errs.Storage("store.ListAllDependencies", errs.CodeDatabaseError, err)
		}
		d.Type = types.DependencyType(depType)
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDependencies returns the edges where id is the blocked side,
// optionally restricted to typesAllowed.
func (s *Store) GetDependencies(ctx context.Context, id string, typesAllowed []types.DependencyType) ([]types.Dependency, error) {
	return s.queryEdges(ctx, "blocked_id", id, typesAllowed)
}

// GetDependents returns the edges where id is the blocker side, i.e.
// every element that depends on id.
func (s *Store) GetDependents(ctx context.Context, id string, typesAllowed []types.DependencyType) ([]types.Dependency, error) {
	return s.queryEdges(ctx, "blocker_id", id, typesAllowed)
}

func (s *Store) queryEdges(ctx context.Context, column, id string, typesAllowed []types.DependencyType) ([]types.Dependency, error) {
	query := fmt.Sprintf(`SELECT blocked_id, blocker_id, type FROM dependencies WHERE %s = ?`, column)
	args := []interface{}{id}
	if len(typesAllowed) > 0 {
		placeholders := ""
		for i, t := range typesAllowed {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, string(t))
		}
		query += fmt.Sprintf(` AND type IN (%s)`, placeholders)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Storage("store.queryEdges", errs.CodeDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Dependency
	for rows.Next() {
		var d types.Dependency
		var depType string
		if err := rows.Scan(&d.BlockedID, &d.BlockerID, &depType); err != nil {
			return nil, errs.Storage("store.queryEdges", errs.CodeDatabaseError, err)
		}
		d.Type = types.DependencyType(depType)
		out = append(out, d)
	}
	return out, rows.Err()
}

// detectCycleTx performs a DFS over the blocking subgraph starting from
// candidate.BlockerID, looking for a path back to candidate.BlockedID
// that the new edge would close into a cycle. It runs inside the same
// connection/transaction as the prospective insert so the check sees a
// consistent snapshot.
func detectCycleTx(ctx context.Context, conn *sql.Conn, candidate types.Dependency) ([]string, error) {
	visited := map[string]bool{}
	var path []string

	var dfs func(node string) ([]string, error)
	dfs = func(node string) ([]string, error) {
		if node == candidate.BlockedID {
			return append(append([]string{}, path...), node), nil
		}
		if visited[node] {
			return nil, nil
		}
		visited[node] = true
		path = append(path, node)
		defer func() { path = path[:len(path)-1] }()

		rows, err := conn.QueryContext(ctx, `
			SELECT blocker_id FROM dependencies
			WHERE blocked_id = ? AND type IN ('blocks', 'awaits', 'parent-child')
		`, node)
		if err != nil {
			return nil, err
		}
		var next []string
		for rows.Next() {
			var blocker string
			if err := rows.Scan(&blocker); err != nil {
				_ = rows.Close()
				return nil, err
			}
			next = append(next, blocker)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, n := range next {
			cycle, err := dfs(n)
			if err != nil {
				return nil, err
			}
			if cycle != nil {
				return cycle, nil
			}
		}
		return nil, nil
	}

	cycle, err := dfs(candidate.BlockerID)
	if err != nil {
		return nil, errs.Storage("store.detectCycle", errs.CodeDatabaseError, err)
	}
	return cycle, nil
}
