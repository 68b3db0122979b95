package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
)

// Isolation selects the SQLite transaction mode for Transaction, per
// spec.md §4.1's transaction(fn, {isolation}) operation.
type Isolation string

const (
	IsolationDeferred  Isolation = "deferred"
	IsolationImmediate Isolation = "immediate"
	IsolationExclusive Isolation = "exclusive"
)

// Transaction runs fn against a single connection under the requested
// isolation mode, rolling back on error or panic and committing
// otherwise. Nothing in this module calls it: L3 computes its views on
// every query, and L4's Dispatch writes through Create/Update, each of
// which opens its own transaction.
func (s *Store) Transaction(ctx context.Context, isolation Isolation, fn func(ctx context.Context, tx Tx) error) error {
	switch isolation {
	case IsolationImmediate, IsolationExclusive:
		return s.withImmediateOrExclusive(ctx, isolation, fn)
	case IsolationDeferred, "":
		return s.withTx(ctx, func(tx *sql.Tx) error {
			return fn(ctx, sqlTx{tx})
		})
	default:
		return errs.Validation("store.Transaction", errs.CodeInvalidInput, fmt.Errorf("unknown isolation %q", isolation))
	}
}

func (s *Store) withImmediateOrExclusive(ctx context.Context, isolation Isolation, fn func(ctx context.Context, tx Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errs.Storage("store.Transaction", errs.CodeDatabaseError, err)
	}
	defer func() { _ = conn.Close() }()

	stmt := "BEGIN IMMEDIATE"
	if isolation == IsolationExclusive {
		stmt = "BEGIN EXCLUSIVE"
	}
	if isolation == IsolationImmediate {
		if err := beginImmediateWithRetry(ctx, conn); err != nil {
			return errs.Storage("store.Transaction", errs.CodeDatabaseError, err)
		}
	} else if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return errs.Storage("store.Transaction", errs.CodeDatabaseError, err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(ctx, connTx{conn}); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return errs.Storage("store.Transaction", errs.CodeDatabaseError, err)
	}
	committed = true
	return nil
}

// Tx is the minimal query surface exposed to Transaction callbacks,
// satisfied by either *sql.Tx (deferred mode) or *sql.Conn (immediate/
// exclusive mode, which need raw BEGIN/COMMIT statements database/sql's
// Tx type cannot issue).
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type sqlTx struct{ *sql.Tx }
type connTx struct{ *sql.Conn }
