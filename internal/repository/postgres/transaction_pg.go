// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"fmt"

	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
)

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

// CreateTransaction inserts a new ledger entry using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (account, amount, currency, type, status, description, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.Account,
		transaction.Amount,
		transaction.Currency,
		transaction.Type,
		transaction.Status,
		transaction.Description,
		transaction.CreatedAt,
	).Scan(&transaction.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionsByAccount retrieves a paginated list of ledger entries for an account.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactionsByAccount(ctx context.Context, q repository.DBExecutor, account string, limit, offset int) ([]domain.Transaction, int64, error) {
	transactions := []domain.Transaction{}

	query := `
		SELECT id, account, amount, currency, type, status, description, created_at
		FROM transactions
		WHERE account = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &transactions, query, account, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for account %s: %w", account, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE account = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, account); err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for account %s: %w", account, err)
	}

	return transactions, totalCount, nil
}
