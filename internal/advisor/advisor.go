// Package advisor obtains strategy recommendations for vaults. The advisor is
// an untrusted oracle: its answers are stored as-is once they pass Normalize.
package advisor

import (
	"context"
	"strings"

	"yieldlock/internal/domain"

	"github.com/shopspring/decimal"
)

// Risk profiles understood by the advisors.
const (
	RiskConservative = "conservative"
	RiskModerate     = "moderate"
	RiskAggressive   = "aggressive"
)

// Request describes the vault a recommendation is asked for.
type Request struct {
	VaultID      int64           `json:"vault_id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	DurationDays float64         `json:"duration_days"`
	RiskProfile  string          `json:"risk_profile,omitempty"`
}

// Recommendation is an advisor's answer.
type Recommendation struct {
	VaultID     int64                      `json:"vault_id"`
	Strategy    string                     `json:"strategy"`
	Allocation  map[string]decimal.Decimal `json:"allocation"`
	ExpectedAPY decimal.Decimal            `json:"expected_apy"`
	RequiredAPY decimal.Decimal            `json:"required_apy"`
	Reasoning   string                     `json:"reasoning"`
}

// Advisor recommends a yield strategy for a vault.
type Advisor interface {
	RecommendStrategy(ctx context.Context, req Request) (Recommendation, error)
}

// ValidRiskProfile reports whether profile is one of the known risk profiles.
func ValidRiskProfile(profile string) bool {
	switch strings.ToLower(profile) {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	}
	return false
}

// Normalize converts an advisor answer into a stored strategy. A failed call
// or a malformed answer yields the pending (zero) strategy.
func Normalize(rec Recommendation, err error) domain.Strategy {
	if err != nil || strings.TrimSpace(rec.Strategy) == "" || rec.ExpectedAPY.IsNegative() {
		return domain.Strategy{}
	}
	for _, weight := range rec.Allocation {
		if weight.IsNegative() {
			return domain.Strategy{}
		}
	}
	return domain.Strategy{
		Label:       rec.Strategy,
		Allocation:  rec.Allocation,
		ExpectedAPY: rec.ExpectedAPY,
		LowYield:    rec.ExpectedAPY.LessThan(rec.RequiredAPY),
		Reasoning:   rec.Reasoning,
	}
}
