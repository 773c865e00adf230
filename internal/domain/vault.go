// internal/domain/vault.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Vault is a goal-based savings lock owned by a single account.
// Amounts are expressed in the smallest currency unit and are always integral.
type Vault struct {
	ID            int64           `db:"id" json:"id"`
	Owner         string          `db:"owner" json:"owner"`
	Name          string          `db:"name" json:"name"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`                 // Principal plus later deposits
	InitialAmount decimal.Decimal `db:"initial_amount" json:"initial_amount"` // Principal at creation
	TargetAmount  decimal.Decimal `db:"target_amount" json:"target_amount"`   // Savings goal
	CurrentYield  decimal.Decimal `db:"current_yield" json:"current_yield"`   // Accrued yield, non-decreasing until withdrawal
	UnlockTime    time.Time       `db:"unlock_time" json:"unlock_time"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	Strategy      Strategy        `db:"strategy" json:"strategy"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	Withdrawn     bool            `db:"withdrawn" json:"withdrawn"`
	Matured       bool            `db:"matured" json:"matured"` // Set once by maturity finalization
	MaturedAt     *time.Time      `db:"matured_at" json:"matured_at,omitempty"`
	WithdrawnAt   *time.Time      `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// NewVault creates an active Vault with zero yield and a pending strategy.
func NewVault(owner, name string, amount, targetAmount decimal.Decimal, unlockTime, now time.Time) *Vault {
	now = now.UTC().Truncate(time.Second)
	return &Vault{
		Owner:         owner,
		Name:          name,
		Amount:        amount,
		InitialAmount: amount,
		TargetAmount:  targetAmount,
		CurrentYield:  decimal.Zero,
		UnlockTime:    unlockTime.UTC().Truncate(time.Second),
		CreatedAt:     now,
		IsActive:      true,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy so mutators never touch stored state directly.
func (v *Vault) Clone() *Vault {
	c := *v
	c.Strategy = v.Strategy.Clone()
	if v.MaturedAt != nil {
		t := *v.MaturedAt
		c.MaturedAt = &t
	}
	if v.WithdrawnAt != nil {
		t := *v.WithdrawnAt
		c.WithdrawnAt = &t
	}
	return &c
}

// Open reports whether the vault still accepts deposits and yield.
func (v *Vault) Open() bool {
	return v.IsActive && !v.Withdrawn
}

// DueForMaturity reports whether the sweeper still has to finalize the vault at now.
func (v *Vault) DueForMaturity(now time.Time) bool {
	return v.Open() && !v.Matured && !v.UnlockTime.After(now)
}
