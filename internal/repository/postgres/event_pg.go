// internal/repository/postgres/event_pg.go
package postgres

import (
	"context"
	"fmt"

	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
	"yieldlock/pkg/db"

	"github.com/jmoiron/sqlx"
)

// EventRepository implements repository.EventRepository for PostgreSQL.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(conn *sqlx.DB) *EventRepository {
	return &EventRepository{db: conn}
}

var _ repository.EventRepository = (*EventRepository)(nil)

// Append inserts an event row; the seq column preserves append order. When ctx
// carries a transaction the row is written on it.
func (r *EventRepository) Append(ctx context.Context, event *domain.Event) error {
	var q repository.DBExecutor = r.db
	if tx, ok := db.TxFromContext(ctx); ok {
		if txExecutor, ok := tx.(repository.DBExecutor); ok {
			q = txExecutor
		}
	}

	query := `INSERT INTO vault_events (id, vault_id, type, payload, occurred_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := q.ExecContext(ctx, query, event.ID, event.VaultID, event.Type, []byte(event.Payload), event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to append %s event for vault %d: %w", event.Type, event.VaultID, err)
	}
	return nil
}

// ListByVault retrieves a paginated list of a vault's events, oldest first.
// It performs two queries: one for the data and one for the total count.
func (r *EventRepository) ListByVault(ctx context.Context, vaultID int64, limit, offset int) ([]domain.Event, int64, error) {
	events := []domain.Event{}
	query := `
		SELECT id, vault_id, type, payload, occurred_at
		FROM vault_events
		WHERE vault_id = $1
		ORDER BY seq ASC
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &events, query, vaultID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events for vault %d: %w", vaultID, err)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM vault_events WHERE vault_id = $1`, vaultID); err != nil {
		return nil, 0, fmt.Errorf("failed to count events for vault %d: %w", vaultID, err)
	}
	return events, total, nil
}
