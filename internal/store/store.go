// Package store is the Postgres persistence layer. It groups the multi-step
// writes that must execute atomically behind withTx and implements the
// wizard's SubjectLookup and Sink interfaces.
//
// Dependency rule: store imports only domain packages (assessment, wizard,
// intervention, scoring). It never imports api or worker.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// dbtx is the subset of *sql.DB and *sql.Tx the query helpers need, so the
// same helper runs inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store holds the connection pool. The operation files (subjects.go,
// assessments.go, interventions.go) attach methods to this type.
type Store struct {
	pool *sql.DB
}

// New creates a Store from a live connection pool. The pool must already be
// open and verified (e.g. via PingContext) before calling New.
func New(pool *sql.DB) *Store {
	return &Store{pool: pool}
}

// Migrate creates the tables and indexes if they do not exist yet. The schema
// is idempotent, so it is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// txFunc receives a transaction-scoped dbtx. Returning a non-nil error causes
// withTx to roll back automatically.
type txFunc func(ctx context.Context, tx dbtx) error

// withTx begins a transaction, passes it to fn, and commits on success or
// rolls back on any error (including panics).
//
// Transactions use the default isolation level; callers only issue blind
// writes.
func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left in a broken state.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
