// Package persistence is the sole owner of durable state. Every other
// CORE subsystem reaches the database exclusively through the Store
// contract defined here: Get/All/Run/Exec/WithTransaction, adapted from
// the teacher's pkg/storage/postgres.BaseStore transaction plumbing into
// the single narrow surface spec.md §4.1 names.
package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type txKey struct{}

// TxFromContext extracts an in-flight transaction from ctx, if any.
func TxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func contextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunResult reports the effect of a mutating statement.
type RunResult struct {
	LastInsertID string
	Changes      int64
}

// Store is the single persistence entry point shared by every CORE
// subsystem. It is safe for concurrent use; the underlying *sql.DB pool
// provides connection-level concurrency and row-level locks provide
// cross-row serialization where §4.1 requires it.
type Store struct {
	db *sql.DB
}

// Open connects to the configured Postgres instance and verifies
// connectivity with a ping.
func Open(ctx context.Context, dsn string, maxOpenConns, maxIdleConns int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore wraps an already-opened *sql.DB, used by tests against
// sqlmock or a disposable test database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for repositories that need to build
// their own prepared statements.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) querier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// Get runs sql with params and scans the single resulting row via fn.
// Returns sql.ErrNoRows when no row matches, letting callers translate
// that to a domain not-found sentinel.
func (s *Store) Get(ctx context.Context, query string, params []any, fn func(*sql.Row) error) error {
	row := s.querier(ctx).QueryRowContext(ctx, query, params...)
	return fn(row)
}

// All runs sql with params and invokes fn once per row.
func (s *Store) All(ctx context.Context, query string, params []any, fn func(*sql.Rows) error) error {
	rows, err := s.querier(ctx).QueryContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Run executes a mutating statement and reports rows affected. Postgres
// does not support sql.Result.LastInsertId; callers that need the
// generated id should append `RETURNING id` to query and use Get instead.
func (s *Store) Run(ctx context.Context, query string, params []any) (RunResult, error) {
	result, err := s.querier(ctx).ExecContext(ctx, query, params...)
	if err != nil {
		return RunResult{}, fmt.Errorf("exec: %w", err)
	}
	changes, err := result.RowsAffected()
	if err != nil {
		return RunResult{}, fmt.Errorf("rows affected: %w", err)
	}
	return RunResult{Changes: changes}, nil
}

// Exec runs a multi-statement script (used for migrations and test
// fixtures), not parameterized.
func (s *Store) Exec(ctx context.Context, script string) error {
	_, err := s.db.ExecContext(ctx, script)
	return err
}

// WithTransaction runs fn atomically, committing on success and rolling
// back on any error or panic. All mutating operations in other
// components that touch more than one row, or that must serialize
// against concurrent writers on the same row, go through this.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if TxFromContext(ctx) != nil {
		// Already inside a transaction: nest by reusing it so callers can
		// compose WithTransaction calls without double-beginning.
		return fn(ctx)
	}

	tx, beginErr := s.db.BeginTx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("begin transaction: %w", beginErr)
	}

	txCtx := contextWithTx(ctx, tx)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(txCtx)
	return err
}
