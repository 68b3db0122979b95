// Package store implements the L1 content-addressed element/dependency
// store: SQLite-backed CRUD, dirty tracking for incremental export, and
// hierarchical child-id allocation. Grounded on the teacher's
// internal/storage/sqlite package, adapted from its Issue/dependency
// model to the spec's Element/Dependency model.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/stoneforge-ai/stoneforge/internal/store/migrations"
)

// Store wraps a *sql.DB with the busy-retry and migration machinery
// every SPEC_FULL.md L1 operation relies on.
type Store struct {
	db     *sql.DB
	log    *slog.Logger
	path   string
	busyMS int
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger injects a logger; callers never rely on a package-global
// logger (the teacher's cmd/bd commands thread *slog.Logger explicitly
// through every layer rather than reach for slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithBusyTimeout overrides the default busy_timeout pragma in
// milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(s *Store) { s.busyMS = ms }
}

// Open creates or opens a SQLite database at path and applies any
// pending migrations. path may be ":memory:" for tests.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, log: slog.Default(), busyMS: 5000}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, s.busyMS)
	if path == ":memory:" {
		dsn = fmt.Sprintf("file::memory:?cache=shared&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)", s.busyMS)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer at a time is the whole point of BEGIN IMMEDIATE
	// serialization below; an unbounded pool defeats it by letting
	// migrations and writers land on different connections.
	db.SetMaxOpenConns(8)
	s.db = db

	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for packages (L3 graph queries, L2
// export) that need read-only access without routing every query
// through Store's method set.
func (s *Store) DB() *sql.DB {
	return s.db
}

var migrationSteps = []func(*sql.DB) error{
	migrations.MigrateInitialSchema,
	migrations.MigrateDirtyTracking,
	migrations.MigrateConfig,
	migrations.MigrateSessions,
	migrations.MigrateStewardRuns,
}

func (s *Store) runMigrations(ctx context.Context) error {
	for _, step := range migrationSteps {
		if err := step(s.db); err != nil {
			return err
		}
	}
	return nil
}

// withTx runs fn inside a plain (deferred-mode) transaction.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// withImmediateTx acquires a dedicated connection, starts a BEGIN
// IMMEDIATE transaction with retry on SQLITE_BUSY, runs fn against the
// raw connection, and commits. Used for writes that must serialize
// against concurrent writers: id generation, dependency mutation, and
// anything that needs read-then-write consistency stronger than a
// DEFERRED transaction gives.
//
// database/sql's BeginTx has no transaction-mode knob and
// modernc.org/sqlite's driver always starts DEFERRED, so the IMMEDIATE
// statement is issued as raw SQL on a connection pinned for the
// lifetime of the transaction, mirroring the teacher's CreateIssue.
func (s *Store) withImmediateTx(ctx context.Context, fn func(*sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn); err != nil {
		return fmt.Errorf("begin immediate transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

const immediateMaxElapsed = 2 * time.Second

func newImmediateBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = immediateMaxElapsed
	return bo
}

// beginImmediateWithRetry issues BEGIN IMMEDIATE on conn, retrying with
// exponential backoff when SQLite reports the database is busy or
// locked. busy_timeout alone can still surface SQLITE_BUSY under
// sustained contention because it only bounds a single lock attempt,
// not the whole statement; the retry loop absorbs that.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if !isBusyOrLocked(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(newImmediateBackoff(), ctx))
	if err != nil {
		return fmt.Errorf("exceeded retries after %d attempts: %w", attempts, err)
	}
	return nil
}

func isBusyOrLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
