// internal/repository/vault_repo.go
package repository

import (
	"context"
	"time"

	"yieldlock/internal/domain"
)

// VaultMutator transforms a copy of a vault inside the store's atomic step.
// ctx carries that step: events appended with it are written together with the
// vault, in commit order. Returning an error aborts the step and leaves the
// stored vault untouched.
type VaultMutator func(ctx context.Context, v *domain.Vault) error

// VaultRepository is the durable keyed collection of vaults plus the owner index.
// Implementations serialize Update calls per vault id; different ids may be
// updated in parallel.
type VaultRepository interface {
	// Create assigns the next id to vault, stores it and appends it to its owner's index.
	// onCreate, when not nil, runs in the same atomic step once the id is assigned;
	// changes it makes to the vault are not stored, and its error aborts the creation.
	Create(ctx context.Context, vault *domain.Vault, onCreate VaultMutator) (int64, error)
	// Get returns a copy of the vault or util.ErrNotFound.
	Get(ctx context.Context, id int64) (*domain.Vault, error)
	// Update applies mutator atomically and returns the stored result.
	Update(ctx context.Context, id int64, mutator VaultMutator) (*domain.Vault, error)
	// ListByOwner returns the owner's vault ids in creation order, empty for unknown owners.
	ListByOwner(ctx context.Context, owner string) ([]int64, error)
	// ListMaturityCandidates returns ids of open, unfinalized vaults whose unlock time is <= now.
	ListMaturityCandidates(ctx context.Context, now time.Time) ([]int64, error)
	// Count returns how many vaults were ever created.
	Count(ctx context.Context) (int64, error)
}
