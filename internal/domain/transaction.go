// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType defines the direction of a custody movement.
type TransactionType string

const (
	TransactionTypeLock    TransactionType = "LOCK"    // Account -> vault custody
	TransactionTypeRelease TransactionType = "RELEASE" // Vault custody -> account
	TransactionTypePenalty TransactionType = "PENALTY" // Retained early-withdrawal penalty -> treasury
	TransactionTypeYield   TransactionType = "YIELD"   // Yield reserve -> vault custody
)

// TransactionStatus defines the status of a custody movement.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is one entry of the custody ledger.
type Transaction struct {
	ID          int64             `db:"id" json:"id"`
	Account     string            `db:"account" json:"account"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	Currency    string            `db:"currency" json:"currency"`
	Type        TransactionType   `db:"type" json:"type"`
	Status      TransactionStatus `db:"status" json:"status"`
	Description *string           `db:"description" json:"description"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// NewTransaction creates a completed ledger entry.
func NewTransaction(account string, amount decimal.Decimal, currency string, txType TransactionType, description *string) *Transaction {
	return &Transaction{
		Account:     account,
		Amount:      amount,
		Currency:    currency,
		Type:        txType,
		Status:      TransactionStatusCompleted,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}
