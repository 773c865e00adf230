// Package custody moves stablecoin funds between accounts and vault custody.
package custody

import (
	"context"
	"errors"
	"fmt"
	"time"

	"yieldlock/internal/domain"
	"yieldlock/internal/util"

	"github.com/shopspring/decimal"
)

// Custody moves funds between an account and the vault engine.
type Custody interface {
	// TransferIn pulls amount from payer into custody.
	TransferIn(ctx context.Context, payer string, amount decimal.Decimal) error
	// TransferOut pays amount from custody to payee.
	TransferOut(ctx context.Context, payee string, amount decimal.Decimal) error
	// FundYield moves yield credited to vaultID from the yield source into
	// custody, so the vault's payout is backed before the yield is recorded.
	FundYield(ctx context.Context, vaultID int64, amount decimal.Decimal) error
}

// Treasury receives early-withdrawal penalties retained by the engine.
type Treasury interface {
	CollectPenalty(ctx context.Context, vaultID int64, amount decimal.Decimal) error
}

// Statements reports an account's custody balance and movements.
type Statements interface {
	AccountBalance(ctx context.Context, account string) (decimal.Decimal, error)
	AccountHistory(ctx context.Context, account string, limit, offset int) ([]domain.Transaction, int64, error)
}

// timeoutCustody bounds every call of the wrapped Custody.
type timeoutCustody struct {
	next    Custody
	timeout time.Duration
}

// WithTimeout wraps c so each transfer runs under timeout and every failure,
// including a deadline, is reported as util.ErrTransferFailed with the cause attached.
func WithTimeout(c Custody, timeout time.Duration) Custody {
	return &timeoutCustody{next: c, timeout: timeout}
}

func (t *timeoutCustody) TransferIn(ctx context.Context, payer string, amount decimal.Decimal) error {
	return t.call(ctx, func(ctx context.Context) error { return t.next.TransferIn(ctx, payer, amount) })
}

func (t *timeoutCustody) TransferOut(ctx context.Context, payee string, amount decimal.Decimal) error {
	return t.call(ctx, func(ctx context.Context) error { return t.next.TransferOut(ctx, payee, amount) })
}

func (t *timeoutCustody) FundYield(ctx context.Context, vaultID int64, amount decimal.Decimal) error {
	return t.call(ctx, func(ctx context.Context) error { return t.next.FundYield(ctx, vaultID, amount) })
}

func (t *timeoutCustody) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return TransferError(err)
	case <-ctx.Done():
		return TransferError(ctx.Err())
	}
}

// TransferError reports err as util.ErrTransferFailed, keeping err in the chain.
func TransferError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, util.ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", util.ErrTransferFailed, err)
}
