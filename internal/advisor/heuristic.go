// internal/advisor/heuristic.go
package advisor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type strategyProfile struct {
	name        string
	allocation  map[string]int64
	expectedAPY decimal.Decimal
	riskLevel   int
}

var strategyPools = map[string][]strategyProfile{
	RiskConservative: {
		{name: "Ultra Safe", allocation: map[string]int64{"aave": 80, "compound": 20, "gmx": 0}, expectedAPY: decimal.RequireFromString("3.5"), riskLevel: 1},
		{name: "Balanced Conservative", allocation: map[string]int64{"aave": 60, "compound": 30, "gmx": 10}, expectedAPY: decimal.RequireFromString("5.2"), riskLevel: 2},
	},
	RiskModerate: {
		{name: "Growth Focused", allocation: map[string]int64{"aave": 40, "compound": 40, "gmx": 20}, expectedAPY: decimal.RequireFromString("7.8"), riskLevel: 3},
		{name: "Yield Maximizer", allocation: map[string]int64{"aave": 30, "compound": 30, "gmx": 40}, expectedAPY: decimal.RequireFromString("12.5"), riskLevel: 4},
	},
	RiskAggressive: {
		{name: "High Growth", allocation: map[string]int64{"aave": 20, "compound": 20, "gmx": 60}, expectedAPY: decimal.RequireFromString("18.2"), riskLevel: 5},
	},
}

// Heuristic is a local advisor choosing among fixed DeFi allocation pools by
// goal name, size, duration and the APY needed to reach the target.
type Heuristic struct {
	// DefaultRiskProfile is used when a request carries none.
	DefaultRiskProfile string
}

// NewHeuristic creates a Heuristic advisor.
func NewHeuristic(defaultRiskProfile string) *Heuristic {
	if !ValidRiskProfile(defaultRiskProfile) {
		defaultRiskProfile = RiskModerate
	}
	return &Heuristic{DefaultRiskProfile: strings.ToLower(defaultRiskProfile)}
}

var _ Advisor = (*Heuristic)(nil)

// RecommendStrategy picks the first strategy of the chosen risk pool whose
// expected APY covers the required APY, or the pool's safest one.
func (h *Heuristic) RecommendStrategy(ctx context.Context, req Request) (Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return Recommendation{}, err
	}

	required := RequiredAPY(req.Amount, req.TargetAmount, req.DurationDays)
	pool := strategyPools[h.riskCategory(req)]

	selected := pool[0]
	for _, s := range pool {
		if s.expectedAPY.GreaterThanOrEqual(required) {
			selected = s
			break
		}
	}

	allocation := make(map[string]decimal.Decimal, len(selected.allocation))
	for protocol, weight := range selected.allocation {
		allocation[protocol] = decimal.NewFromInt(weight)
	}
	return Recommendation{
		VaultID:     req.VaultID,
		Strategy:    selected.name,
		Allocation:  allocation,
		ExpectedAPY: selected.expectedAPY,
		RequiredAPY: required,
		Reasoning:   reasoning(req.Name, selected, required),
	}, nil
}

func (h *Heuristic) riskCategory(req Request) string {
	category := strings.ToLower(req.RiskProfile)
	if !ValidRiskProfile(category) {
		category = h.DefaultRiskProfile
	}
	if category == "" {
		category = RiskModerate
	}

	name := strings.ToLower(req.Name)
	switch {
	case strings.Contains(name, "rent"), strings.Contains(name, "emergency"):
		category = RiskConservative
	case strings.Contains(name, "vacation"), strings.Contains(name, "luxury"):
		category = RiskAggressive
	}

	switch {
	case req.Amount.GreaterThan(decimal.NewFromInt(10000)) || req.DurationDays < 30:
		category = RiskConservative
	case req.Amount.LessThan(decimal.NewFromInt(1000)) && req.DurationDays > 180:
		category = RiskAggressive
	}
	return category
}

// RequiredAPY returns the yearly percentage growth needed to turn initial into
// target over durationDays, rounded to two places. It is zero when the goal is
// already met.
func RequiredAPY(initial, target decimal.Decimal, durationDays float64) decimal.Decimal {
	if initial.GreaterThanOrEqual(target) {
		return decimal.Zero
	}
	if initial.Sign() <= 0 || durationDays <= 0 {
		return decimal.NewFromInt(math.MaxInt32)
	}
	ratio, _ := target.Div(initial).Float64()
	apy := (math.Pow(ratio, 365/durationDays) - 1) * 100
	if math.IsInf(apy, 0) || math.IsNaN(apy) || apy > math.MaxInt32 {
		return decimal.NewFromInt(math.MaxInt32)
	}
	return decimal.NewFromFloat(math.Max(0, apy)).Round(2)
}

func reasoning(goalName string, s strategyProfile, required decimal.Decimal) string {
	var reasons []string
	if s.expectedAPY.GreaterThanOrEqual(required) {
		reasons = append(reasons, fmt.Sprintf("Strategy expected to meet your %s goal", goalName))
	} else {
		reasons = append(reasons, fmt.Sprintf("Strategy may need adjustment to reach %s goal", goalName))
	}

	switch {
	case s.riskLevel <= 2:
		reasons = append(reasons, "Low-risk strategy for capital preservation")
	case s.riskLevel <= 4:
		reasons = append(reasons, "Balanced approach for growth and safety")
	default:
		reasons = append(reasons, "High-yield strategy for maximum growth")
	}
	return strings.Join(reasons, ". ")
}
