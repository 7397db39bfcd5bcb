package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION MANAGER
// ══════════════════════════════════════════════════════════════════════════════

type txContextKey struct{}

// txFromContext extracts the transaction bound to the context, if any.
func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx
}

// TxManager implements command.TxManager on top of pgx. The transaction is
// carried in the context, so every repository built on the same Connection
// joins it transparently.
type TxManager struct {
	conn *Connection
}

// NewTxManager creates a new TxManager.
func NewTxManager(conn *Connection) *TxManager {
	return &TxManager{conn: conn}
}

// WithTx runs fn inside a transaction. Commit on nil, rollback otherwise.
// Nested calls join the outer transaction instead of opening a new one.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	m.conn.mu.RLock()
	if m.conn.closed {
		m.conn.mu.RUnlock()
		return ErrConnectionClosed
	}
	pool := m.conn.pool
	m.conn.mu.RUnlock()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit error: %w", err)
	}

	return nil
}
