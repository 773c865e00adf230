// internal/custody/ledger.go
package custody

import (
	"context"
	"fmt"
	"sync"

	"yieldlock/internal/accounting"
	"yieldlock/internal/util"

	"github.com/shopspring/decimal"
)

// Ledger is an in-process custody backend. It keeps account balances, the
// amount held by the engine, a treasury account for penalties and a yield
// reserve account that funds credited yield.
//
// A strict Ledger refuses TransferIn and FundYield from accounts without enough
// balance; a non-strict one treats unknown payers as externally funded.
type Ledger struct {
	mu           sync.Mutex
	strict       bool
	treasury     string
	yieldReserve string
	balances     map[string]decimal.Decimal
	held         decimal.Decimal
}

// NewLedger creates an empty ledger whose penalties are credited to treasury.
// Yield is funded from DefaultYieldReserveAccount.
func NewLedger(treasury string, strict bool) *Ledger {
	return &Ledger{
		strict:       strict,
		treasury:     treasury,
		yieldReserve: DefaultYieldReserveAccount,
		balances:     make(map[string]decimal.Decimal),
		held:         decimal.Zero,
	}
}

var (
	_ Custody  = (*Ledger)(nil)
	_ Treasury = (*Ledger)(nil)
)

// Fund credits amount to account.
func (l *Ledger) Fund(account string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum, err := accounting.Add(l.balances[account], amount)
	if err != nil {
		return fmt.Errorf("fund: %w", err)
	}
	l.balances[account] = sum
	return nil
}

// Balance returns account's spendable balance.
func (l *Ledger) Balance(account string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Held returns the total amount currently in custody.
func (l *Ledger) Held() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// TransferIn moves amount from payer into custody.
func (l *Ledger) TransferIn(ctx context.Context, payer string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pull(payer, amount)
}

// FundYield moves amount from the yield reserve into custody.
func (l *Ledger) FundYield(ctx context.Context, vaultID int64, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.pull(l.yieldReserve, amount); err != nil {
		return fmt.Errorf("fund yield for vault %d: %w", vaultID, err)
	}
	return nil
}

// TransferOut pays amount from custody to payee.
func (l *Ledger) TransferOut(ctx context.Context, payee string, amount decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.release(payee, amount)
}

// CollectPenalty moves a retained penalty from custody to the treasury account.
func (l *Ledger) CollectPenalty(ctx context.Context, vaultID int64, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.release(l.treasury, amount); err != nil {
		return fmt.Errorf("collect penalty for vault %d: %w", vaultID, err)
	}
	return nil
}

func (l *Ledger) pull(account string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return util.ErrTransferRejected
	}
	balance, ok := l.balances[account]
	if l.strict || ok {
		if balance.LessThan(amount) {
			return util.ErrInsufficientFunds
		}
	}
	held, err := accounting.Add(l.held, amount)
	if err != nil {
		return err
	}
	if l.strict || ok {
		l.balances[account] = balance.Sub(amount)
	}
	l.held = held
	return nil
}

func (l *Ledger) release(account string, amount decimal.Decimal) error {
	held, err := accounting.Sub(l.held, amount)
	if err != nil {
		return util.ErrInsufficientFunds
	}
	balance, err := accounting.Add(l.balances[account], amount)
	if err != nil {
		return err
	}
	l.held = held
	l.balances[account] = balance
	return nil
}
