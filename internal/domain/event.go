// internal/domain/event.go
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names an entry in the append-only vault event log.
type EventType string

const (
	EventVaultCreated    EventType = "VaultCreated"
	EventDeposited       EventType = "Deposited"
	EventWithdrawn       EventType = "Withdrawn"
	EventYieldUpdated    EventType = "YieldUpdated"
	EventStrategyUpdated EventType = "StrategyUpdated"
)

// Event is a single observable state change of a vault.
type Event struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	VaultID    int64           `db:"vault_id" json:"vault_id"`
	Type       EventType       `db:"type" json:"type"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
}

// VaultCreatedPayload is emitted once per vault on creation.
type VaultCreatedPayload struct {
	ID           int64           `json:"id"`
	Owner        string          `json:"owner"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	UnlockTime   int64           `json:"unlock_time"` // unix seconds
}

// DepositedPayload is emitted for every additional deposit.
type DepositedPayload struct {
	ID     int64           `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// WithdrawnPayload is emitted on the terminal withdrawal.
type WithdrawnPayload struct {
	ID             int64           `json:"id"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"`
	PenaltyApplied bool            `json:"penalty_applied"`
}

// YieldUpdatedPayload carries the yield after an accrual or maturity finalization.
type YieldUpdatedPayload struct {
	ID       int64           `json:"id"`
	NewYield decimal.Decimal `json:"new_yield"`
}

// StrategyUpdatedPayload is emitted when an advisor recommendation is stored.
type StrategyUpdatedPayload struct {
	ID            int64           `json:"id"`
	StrategyLabel string          `json:"strategy_label"`
	ExpectedAPY   decimal.Decimal `json:"expected_apy"`
}

// NewEvent builds an Event with a fresh id, marshalling payload to JSON.
func NewEvent(vaultID int64, eventType EventType, payload interface{}, occurredAt time.Time) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:         uuid.New(),
		VaultID:    vaultID,
		Type:       eventType,
		Payload:    raw,
		OccurredAt: occurredAt.UTC(),
	}, nil
}
