package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
)

// markDirtyTx marks elementID dirty within an existing transaction,
// storing the content hash alongside so GetDirtyElements callers can
// detect a hash that changed again before export ran.
func markDirtyTx(ctx context.Context, conn *sql.Conn, elementID, contentHash string) error {
	_, err := conn.ExecContext(ctx, `
		INSERT INTO dirty_elements (element_id, marked_at, content_hash)
		VALUES (?, ?, ?)
		ON CONFLICT (element_id) DO UPDATE SET marked_at = excluded.marked_at, content_hash = excluded.content_hash
	`, elementID, time.Now().UTC(), contentHash)
	if err != nil {
		return errs.Storage("store.markDirty", errs.CodeDatabaseError, err)
	}
	return nil
}

// MarkDirty marks an element dirty outside of any other write, for a
// caller that touches an element without going through Create/Update.
func (s *Store) MarkDirty(ctx context.Context, elementID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dirty_elements (element_id, marked_at)
			VALUES (?, ?)
			ON CONFLICT (element_id) DO UPDATE SET marked_at = excluded.marked_at
		`, elementID, time.Now().UTC())
		if err != nil {
			return errs.Storage("store.MarkDirty", errs.CodeDatabaseError, err)
		}
		return nil
	})
}

// DirtyElement is one row of the dirty queue: the touched element and
// the content hash recorded at mark time.
type DirtyElement struct {
	ElementID   string
	ContentHash string
	MarkedAt    time.Time
}

// GetDirtyElements returns every element awaiting JSONL export, oldest
// mark first, matching the teacher's GetDirtyIssues ordering.
func (s *Store) GetDirtyElements(ctx context.Context) ([]DirtyElement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT element_id, marked_at, COALESCE(content_hash, '')
		FROM dirty_elements
		ORDER BY marked_at ASC
	`)
	if err != nil {
		return nil, errs.Storage("store.GetDirtyElements", errs.CodeDatabaseError, err)
	}
	defer func() { _ = rows.Close() }()

	var out []DirtyElement
	for rows.Next() {
		var d DirtyElement
		if err := rows.Scan(&d.ElementID, &d.MarkedAt, &d.ContentHash); err != nil {
			return nil, errs.Storage("store.GetDirtyElements", errs.CodeDatabaseError, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("store.GetDirtyElements", errs.CodeDatabaseError, err)
	}
	return out, nil
}

// ClearDirtyElements removes the given ids from the dirty queue. Safe
// to call with ids that have since been re-marked dirty by a
// concurrent write: those rows are simply absent from the delete set
// computed up front by the caller, per the teacher's
// ClearDirtyIssuesByID race-avoidance comment.
func (s *Store) ClearDirtyElements(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM dirty_elements WHERE element_id = ?`)
		if err != nil {
			return errs.Storage("store.ClearDirtyElements", errs.CodeDatabaseError, err)
		}
		defer func() { _ = stmt.Close() }()

		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return errs.Storage("store.ClearDirtyElements", errs.CodeDatabaseError, err)
			}
		}
		return nil
	})
}
