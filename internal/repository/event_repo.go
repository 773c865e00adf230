// internal/repository/event_repo.go
package repository

import (
	"context"

	"yieldlock/internal/domain"
)

// EventRepository is the append-only vault event log.
type EventRepository interface {
	// Append records event. Events are never updated or removed. Inside a
	// VaultMutator, pass the mutator's ctx so the event commits with the vault.
	Append(ctx context.Context, event *domain.Event) error
	// ListByVault returns a page of a vault's events in the order they occurred, and the total count.
	ListByVault(ctx context.Context, vaultID int64, limit, offset int) ([]domain.Event, int64, error)
}
