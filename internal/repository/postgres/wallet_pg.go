// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
	"yieldlock/internal/util"

	"github.com/shopspring/decimal"
)

// WalletRepository implements repository.WalletRepository for PostgreSQL.
// Methods receive the DBExecutor so they can run inside a caller's transaction.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() *WalletRepository {
	return &WalletRepository{}
}

var _ repository.WalletRepository = (*WalletRepository)(nil)

// CreateWallet inserts a new wallet into the database using the provided DBExecutor.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (account, currency, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query, wallet.Account, wallet.Currency, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt).Scan(&wallet.ID)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWalletByAccountForUpdate retrieves and row-locks a wallet by account and currency.
func (r *WalletRepository) GetWalletByAccountForUpdate(ctx context.Context, q repository.DBExecutor, account, currency string) (*domain.Wallet, error) {
	return r.getWallet(ctx, q, account, currency, ` FOR UPDATE`)
}

// GetWalletByAccount retrieves a wallet by account and currency.
func (r *WalletRepository) GetWalletByAccount(ctx context.Context, q repository.DBExecutor, account, currency string) (*domain.Wallet, error) {
	return r.getWallet(ctx, q, account, currency, "")
}

func (r *WalletRepository) getWallet(ctx context.Context, q repository.DBExecutor, account, currency, suffix string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, account, currency, balance, created_at, updated_at FROM wallets WHERE account = $1 AND currency = $2` + suffix
	err := q.GetContext(ctx, &wallet, query, account, currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for account %s and currency %s: %w", account, currency, err)
	}
	return &wallet, nil
}

// UpdateWalletBalance adds delta to the balance of a specific wallet using the provided DBExecutor.
func (r *WalletRepository) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, delta decimal.Decimal) error {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, delta, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance for ID %d: %w", walletID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating wallet balance for ID %d: %w", walletID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows affected when updating wallet balance for ID %d, wallet might not exist", walletID)
	}
	return nil
}
