// internal/repository/memory/vault_mem.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
	"yieldlock/internal/util"
)

// VaultRepository implements repository.VaultRepository in process memory.
//
// mu guards the maps; each vault additionally has its own lock that is held
// for the whole read-mutate-write of Update, so a slow mutator on one vault
// never blocks another.
type VaultRepository struct {
	mu     sync.RWMutex
	nextID int64
	vaults map[int64]*domain.Vault
	owners map[string][]int64
	locks  map[int64]*sync.Mutex
}

// NewVaultRepository creates an empty in-memory VaultRepository.
func NewVaultRepository() *VaultRepository {
	return &VaultRepository{
		vaults: make(map[int64]*domain.Vault),
		owners: make(map[string][]int64),
		locks:  make(map[int64]*sync.Mutex),
	}
}

var _ repository.VaultRepository = (*VaultRepository)(nil)

// Create stores a copy of vault under the next id. onCreate runs before the
// vault becomes visible and must not call back into the repository.
func (r *VaultRepository) Create(ctx context.Context, vault *domain.Vault, onCreate repository.VaultMutator) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	stored := vault.Clone()
	stored.ID = id
	if onCreate != nil {
		if err := onCreate(ctx, stored.Clone()); err != nil {
			return 0, err
		}
	}

	r.nextID++
	r.vaults[id] = stored
	r.owners[stored.Owner] = append(r.owners[stored.Owner], id)
	r.locks[id] = &sync.Mutex{}

	vault.ID = id
	return id, nil
}

// Get returns a copy of the vault with the given id.
func (r *VaultRepository) Get(ctx context.Context, id int64) (*domain.Vault, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.vaults[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	return v.Clone(), nil
}

// Update runs mutator on a copy of the vault while holding the vault's lock.
func (r *VaultRepository) Update(ctx context.Context, id int64, mutator repository.VaultMutator) (*domain.Vault, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, util.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutator(ctx, current); err != nil {
		return nil, err
	}
	current.ID = id

	r.mu.Lock()
	r.vaults[id] = current.Clone()
	r.mu.Unlock()

	return current, nil
}

// ListByOwner returns the owner's vault ids in creation order.
func (r *VaultRepository) ListByOwner(ctx context.Context, owner string) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.owners[owner]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out, nil
}

// ListMaturityCandidates scans for vaults the sweeper still has to finalize.
func (r *VaultRepository) ListMaturityCandidates(ctx context.Context, now time.Time) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := []int64{}
	for id, v := range r.vaults {
		if v.DueForMaturity(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Count returns the number of vaults ever created.
func (r *VaultRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID, nil
}
