// Package accounting holds the pure vault arithmetic: range-checked amounts,
// goal progress, status classification and payout computation.
package accounting

import (
	"math"
	"time"

	"yieldlock/internal/domain"
	"yieldlock/internal/util"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest representable amount in smallest currency units (2^64-1).
var MaxAmount = decimal.RequireFromString("18446744073709551615")

var hundred = decimal.NewFromInt(100)

// Status classifies a vault's progress toward its goal.
type Status string

const (
	StatusOnTrack        Status = "On Track"
	StatusBehindSchedule Status = "Behind Schedule"
	StatusLowYield       Status = "Low Yield"
	StatusGoalHit        Status = "Goal Hit"
)

// Payout is the result of settling a vault at a given time.
type Payout struct {
	Gross          decimal.Decimal `json:"gross"`           // amount + yield
	Amount         decimal.Decimal `json:"payout_amount"`   // credited to the owner
	Penalty        decimal.Decimal `json:"penalty"`         // retained by the system
	PenaltyApplied bool            `json:"penalty_applied"` // true only for early withdrawal
}

// ValidateAmount checks that a is a non-negative integer no larger than MaxAmount.
func ValidateAmount(a decimal.Decimal) error {
	if a.IsNegative() || !a.IsInteger() || a.GreaterThan(MaxAmount) {
		return util.ErrArithmetic
	}
	return nil
}

// Add returns a+b, failing instead of leaving the amount range.
func Add(a, b decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(a); err != nil {
		return decimal.Zero, err
	}
	if err := ValidateAmount(b); err != nil {
		return decimal.Zero, err
	}
	sum := a.Add(b)
	if sum.GreaterThan(MaxAmount) {
		return decimal.Zero, util.ErrArithmetic
	}
	return sum, nil
}

// Sub returns a-b, failing on underflow.
func Sub(a, b decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(a); err != nil {
		return decimal.Zero, err
	}
	if err := ValidateAmount(b); err != nil {
		return decimal.Zero, err
	}
	if b.GreaterThan(a) {
		return decimal.Zero, util.ErrArithmetic
	}
	return a.Sub(b), nil
}

// Progress returns floor(amount*100/target). The value is not capped at 100.
func Progress(v *domain.Vault) (int64, error) {
	if v.TargetAmount.IsZero() {
		return 0, util.ErrDivisionByZero
	}
	q, _ := v.Amount.Mul(hundred).QuoRem(v.TargetAmount, 0)
	if q.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, util.ErrArithmetic
	}
	return q.IntPart(), nil
}

// Classify derives the goal status of v at now.
//
// GoalHit wins over everything. Otherwise the vault is on track when its
// progress fraction is at least the elapsed fraction of its lock period. Before
// any time has elapsed an unmet goal counts as behind schedule. An on-track
// vault the advisor flagged for low yield reports LowYield.
func Classify(v *domain.Vault, now time.Time) Status {
	if v.Amount.GreaterThanOrEqual(v.TargetAmount) {
		return StatusGoalHit
	}

	total := seconds(v.UnlockTime.Sub(v.CreatedAt))
	if total <= 0 {
		return StatusBehindSchedule
	}
	elapsed := seconds(now.Sub(v.CreatedAt))
	switch {
	case elapsed <= 0:
		return StatusBehindSchedule
	case elapsed > total:
		elapsed = total
	}

	// amount/target >= elapsed/total  <=>  amount*total >= target*elapsed
	if v.Amount.Mul(decimal.NewFromInt(total)).LessThan(v.TargetAmount.Mul(decimal.NewFromInt(elapsed))) {
		return StatusBehindSchedule
	}
	if v.Strategy.LowYield {
		return StatusLowYield
	}
	return StatusOnTrack
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// IsMatured reports whether v can be withdrawn without penalty at now.
func IsMatured(v *domain.Vault, now time.Time) bool {
	return v.Matured || !now.Before(v.UnlockTime)
}

// ComputePayout settles v at now with the given early-withdrawal penalty percent.
func ComputePayout(v *domain.Vault, now time.Time, penaltyPercent uint8) (Payout, error) {
	if penaltyPercent > 100 {
		return Payout{}, util.ErrInvalidInput
	}
	gross, err := Add(v.Amount, v.CurrentYield)
	if err != nil {
		return Payout{}, err
	}
	if IsMatured(v, now) {
		return Payout{Gross: gross, Amount: gross, Penalty: decimal.Zero}, nil
	}

	keep := decimal.NewFromInt(int64(100 - penaltyPercent))
	amount, _ := gross.Mul(keep).QuoRem(hundred, 0)
	penalty, err := Sub(gross, amount)
	if err != nil {
		return Payout{}, err
	}
	return Payout{Gross: gross, Amount: amount, Penalty: penalty, PenaltyApplied: true}, nil
}
