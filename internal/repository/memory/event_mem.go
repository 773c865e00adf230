// internal/repository/memory/event_mem.go
package memory

import (
	"context"
	"sync"

	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
)

// EventRepository implements repository.EventRepository in process memory.
type EventRepository struct {
	mu      sync.RWMutex
	byVault map[int64][]domain.Event
}

// NewEventRepository creates an empty in-memory event log.
func NewEventRepository() *EventRepository {
	return &EventRepository{byVault: make(map[int64][]domain.Event)}
}

var _ repository.EventRepository = (*EventRepository)(nil)

// Append records a copy of event.
func (r *EventRepository) Append(ctx context.Context, event *domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := *event
	e.Payload = append([]byte(nil), event.Payload...)
	r.byVault[e.VaultID] = append(r.byVault[e.VaultID], e)
	return nil
}

// ListByVault returns a page of the vault's events, oldest first.
func (r *EventRepository) ListByVault(ctx context.Context, vaultID int64, limit, offset int) ([]domain.Event, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.byVault[vaultID]
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Event{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]domain.Event, end-offset)
	copy(page, all[offset:end])
	return page, total, nil
}
