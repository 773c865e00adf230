// internal/domain/strategy.go
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Strategy is the allocation recommended by the external advisor.
// An empty Label means the recommendation is still pending.
type Strategy struct {
	Label       string                     `json:"label"`
	Allocation  map[string]decimal.Decimal `json:"allocation,omitempty"` // protocol -> percent, not validated
	ExpectedAPY decimal.Decimal            `json:"expected_apy"`         // percent per year
	LowYield    bool                       `json:"low_yield"`            // advisor flagged the goal as unlikely to be met
	Reasoning   string                     `json:"reasoning,omitempty"`
}

// Pending reports whether no usable recommendation has been stored yet.
func (s Strategy) Pending() bool {
	return s.Label == ""
}

// Clone returns a copy with its own allocation map.
func (s Strategy) Clone() Strategy {
	if s.Allocation == nil {
		return s
	}
	alloc := make(map[string]decimal.Decimal, len(s.Allocation))
	for k, v := range s.Allocation {
		alloc[k] = v
	}
	s.Allocation = alloc
	return s
}

// Value stores the strategy as a JSONB document.
func (s Strategy) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal strategy: %w", err)
	}
	return b, nil
}

// Scan reads the strategy from a JSONB column. NULL yields a pending strategy.
func (s *Strategy) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = Strategy{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported strategy column type %T", src)
	}
}
