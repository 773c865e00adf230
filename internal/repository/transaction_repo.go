// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"yieldlock/internal/domain"
)

// TransactionRepository records custody ledger movements.
type TransactionRepository interface {
	// CreateTransaction adds a new ledger entry using the provided DBExecutor.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionsByAccount retrieves a page of an account's ledger entries and the total count.
	GetTransactionsByAccount(ctx context.Context, q DBExecutor, account string, limit, offset int) ([]domain.Transaction, int64, error)
}
