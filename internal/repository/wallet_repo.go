// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"yieldlock/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletRepository defines the custody ledger's balance operations.
type WalletRepository interface {
	// CreateWallet adds a new wallet using the provided DBExecutor.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWalletByAccountForUpdate retrieves and row-locks the account's wallet for currency.
	GetWalletByAccountForUpdate(ctx context.Context, q DBExecutor, account, currency string) (*domain.Wallet, error)
	// GetWalletByAccount retrieves the account's wallet for currency without locking.
	GetWalletByAccount(ctx context.Context, q DBExecutor, account, currency string) (*domain.Wallet, error)
	// UpdateWalletBalance adds delta (which may be negative) to the wallet's balance.
	UpdateWalletBalance(ctx context.Context, q DBExecutor, walletID int64, delta decimal.Decimal) error
}
