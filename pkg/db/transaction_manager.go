// pkg/db/transaction_manager.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// TxController defines methods for controlling a database transaction.
// *sqlx.Tx implicitly implements this interface.
type TxController interface {
	Commit() error
	Rollback() error
}

// DBTxBeginner defines the interface for beginning transactions.
// *sqlx.DB implements this.
type DBTxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Function types let services and repositories take the transaction helpers as
// injected dependencies, which keeps them testable without a database.
type (
	BeginTxFunc    func(ctx context.Context, dbConn DBTxBeginner) (TxController, error)
	CommitTxFunc   func(tx TxController) error
	RollbackTxFunc func(tx TxController)
)

// BeginTx starts a new database transaction.
// It returns a TxController interface, which *sqlx.Tx implements.
func BeginTx(ctx context.Context, dbConn DBTxBeginner) (TxController, error) {
	tx, err := dbConn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CommitTx commits the transaction.
func CommitTx(tx TxController) error {
	return tx.Commit()
}

// RollbackTx rolls back the transaction. It is meant to be deferred, so a
// transaction that was already committed is not an error.
func RollbackTx(tx TxController) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Error("Failed to roll back transaction", "error", err)
	}
}

// TxManager bundles the transaction helpers so callers can run a function
// inside one transaction.
type TxManager struct {
	Beginner DBTxBeginner
	Begin    BeginTxFunc
	Commit   CommitTxFunc
	Rollback RollbackTxFunc
}

// NewTxManager returns a TxManager using the package's default helpers.
func NewTxManager(beginner DBTxBeginner) *TxManager {
	return &TxManager{
		Beginner: beginner,
		Begin:    BeginTx,
		Commit:   CommitTx,
		Rollback: RollbackTx,
	}
}

type txKey struct{}

// WithTx returns a copy of ctx that carries tx.
func WithTx(ctx context.Context, tx TxController) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (TxController, bool) {
	tx, ok := ctx.Value(txKey{}).(TxController)
	return tx, ok
}

// WithinTx begins a transaction, runs fn with it and commits when fn succeeds.
// The transaction is rolled back on any error.
func (m *TxManager) WithinTx(ctx context.Context, fn func(tx TxController) error) error {
	tx, err := m.Begin(ctx, m.Beginner)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer m.Rollback(tx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := m.Commit(tx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
