// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is an account's spendable stablecoin balance held by the custody ledger.
type Wallet struct {
	ID        int64           `db:"id" json:"id"`
	Account   string          `db:"account" json:"account"`   // Owner account identifier
	Currency  string          `db:"currency" json:"currency"` // e.g. "USDC"
	Balance   decimal.Decimal `db:"balance" json:"balance"`   // Smallest currency unit
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// NewWallet creates an empty Wallet for account.
func NewWallet(account, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		Account:   account,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
