// Package transaction wraps database/sql transactions so that each
// logical operation on a form — finalizing it, renaming a column and its
// metadata row, the full delete cascade — commits or rolls back as a
// unit.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrTransactionAborted is returned when a transaction is explicitly aborted
var ErrTransactionAborted = errors.New("transaction aborted")

// Transaction represents an open database transaction.
type Transaction struct {
	db         *sql.DB
	tx         *sql.Tx
	ctx        context.Context
	committed  atomic.Bool
	rolledBack atomic.Bool
}

// Manager manages database transactions
type Manager struct {
	db *sql.DB
}

// NewManager creates a new transaction manager
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// DB returns the underlying database handle.
func (m *Manager) DB() *sql.DB { return m.db }

// Begin starts a new transaction.
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{db: m.db, tx: tx, ctx: ctx}, nil
}

// WithTransaction executes a function within a transaction.
// Automatically commits on success or rolls back on error.
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	t, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			t.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(t.tx); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	return t.Commit()
}

// Tx returns the underlying sql.Tx.
func (t *Transaction) Tx() *sql.Tx { return t.tx }

// Commit commits the transaction.
func (t *Transaction) Commit() error {
	if t.committed.Load() {
		return errors.New("transaction already committed")
	}
	if t.rolledBack.Load() {
		return errors.New("transaction already rolled back")
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	t.committed.Store(true)
	return nil
}

// Rollback rolls back the transaction.
func (t *Transaction) Rollback() error {
	if t.committed.Load() {
		return errors.New("transaction already committed")
	}
	if t.rolledBack.Load() {
		return nil // Already rolled back, no-op
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	t.rolledBack.Store(true)
	return nil
}
