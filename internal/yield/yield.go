// Package yield supplies the yield credited to a vault when it matures.
package yield

import (
	"context"
	"time"

	"yieldlock/internal/domain"

	"github.com/shopspring/decimal"
)

// Feed reports the yield delta to add when a vault is finalized at maturity.
// The returned delta must be a non-negative integer.
type Feed interface {
	FinalYield(ctx context.Context, v *domain.Vault, now time.Time) (decimal.Decimal, error)
}

var (
	hundred     = decimal.NewFromInt(100)
	secondsYear = decimal.NewFromInt(365 * 24 * 60 * 60)
)

// APYFeed credits simple interest at the strategy's expected APY over the
// whole lock period, less the yield already accrued by external signals.
type APYFeed struct{}

var _ Feed = APYFeed{}

// FinalYield returns floor(amount * apy/100 * lock/year) - currentYield, or zero.
func (APYFeed) FinalYield(ctx context.Context, v *domain.Vault, now time.Time) (decimal.Decimal, error) {
	if v.Strategy.Pending() || !v.Strategy.ExpectedAPY.IsPositive() {
		return decimal.Zero, nil
	}
	lock := v.UnlockTime.Sub(v.CreatedAt)
	if lock <= 0 {
		return decimal.Zero, nil
	}

	earned := v.Amount.
		Mul(v.Strategy.ExpectedAPY).
		Mul(decimal.NewFromInt(int64(lock / time.Second))).
		Div(hundred.Mul(secondsYear)).
		Floor()
	delta := earned.Sub(v.CurrentYield)
	if delta.IsNegative() {
		return decimal.Zero, nil
	}
	return delta, nil
}
