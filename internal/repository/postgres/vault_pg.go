// internal/repository/postgres/vault_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
	"yieldlock/internal/util"
	"yieldlock/pkg/db"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/semaphore"
)

const vaultColumns = `id, owner, name, amount, initial_amount, target_amount, current_yield, unlock_time, created_at,
	strategy, is_active, withdrawn, matured, matured_at, withdrawn_at, updated_at`

// VaultRepository implements repository.VaultRepository for PostgreSQL.
// Updates lock the vault row with SELECT ... FOR UPDATE for the duration of the mutator.
//
// A mutator may take a second pooled connection (custody runs its own
// transaction), so at most half of the pool's connections are held by updates.
type VaultRepository struct {
	db      *sqlx.DB
	txm     *db.TxManager
	writers *semaphore.Weighted // nil when the pool is unbounded
}

// NewVaultRepository creates a new VaultRepository sized to conn's pool.
func NewVaultRepository(conn *sqlx.DB) *VaultRepository {
	r := &VaultRepository{db: conn, txm: db.NewTxManager(conn)}
	if open := conn.Stats().MaxOpenConnections; open > 0 {
		r.writers = semaphore.NewWeighted(int64(max(open/2, 1)))
	}
	return r
}

var _ repository.VaultRepository = (*VaultRepository)(nil)

// Create allocates the next id from vault_counter and inserts the vault in the
// same transaction, then runs onCreate on that transaction.
func (r *VaultRepository) Create(ctx context.Context, vault *domain.Vault, onCreate repository.VaultMutator) (int64, error) {
	var id int64
	err := r.txm.WithinTx(ctx, func(tx db.TxController) error {
		q, ok := tx.(repository.DBExecutor)
		if !ok {
			return fmt.Errorf("transaction controller does not implement DBExecutor")
		}

		if err := q.GetContext(ctx, &id, `UPDATE vault_counter SET next_id = next_id + 1 RETURNING next_id - 1`); err != nil {
			return fmt.Errorf("failed to allocate vault id: %w", err)
		}

		_, err := q.ExecContext(ctx, `INSERT INTO vaults (`+vaultColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			id, vault.Owner, vault.Name, vault.Amount, vault.InitialAmount, vault.TargetAmount, vault.CurrentYield,
			vault.UnlockTime, vault.CreatedAt, vault.Strategy, vault.IsActive, vault.Withdrawn, vault.Matured,
			vault.MaturedAt, vault.WithdrawnAt, vault.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert vault: %w", err)
		}
		if onCreate != nil {
			created := vault.Clone()
			created.ID = id
			return onCreate(db.WithTx(ctx, tx), created)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create vault: %w", err)
	}
	vault.ID = id
	return id, nil
}

// Get retrieves a vault by its ID.
func (r *VaultRepository) Get(ctx context.Context, id int64) (*domain.Vault, error) {
	return r.get(ctx, r.db, id, false)
}

func (r *VaultRepository) get(ctx context.Context, q repository.DBExecutor, id int64, forUpdate bool) (*domain.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var vault domain.Vault
	if err := q.GetContext(ctx, &vault, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get vault by ID %d: %w", id, err)
	}
	return &vault, nil
}

// Update row-locks the vault, applies mutator and writes back every mutable column.
func (r *VaultRepository) Update(ctx context.Context, id int64, mutator repository.VaultMutator) (*domain.Vault, error) {
	if r.writers != nil {
		if err := r.writers.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire writer slot for vault %d: %w", id, err)
		}
		defer r.writers.Release(1)
	}

	var updated *domain.Vault
	err := r.txm.WithinTx(ctx, func(tx db.TxController) error {
		q, ok := tx.(repository.DBExecutor)
		if !ok {
			return fmt.Errorf("transaction controller does not implement DBExecutor")
		}

		vault, err := r.get(ctx, q, id, true)
		if err != nil {
			return err
		}
		if err := mutator(db.WithTx(ctx, tx), vault); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, `UPDATE vaults SET amount = $1, current_yield = $2, strategy = $3, is_active = $4,
			withdrawn = $5, matured = $6, matured_at = $7, withdrawn_at = $8, updated_at = $9 WHERE id = $10`,
			vault.Amount, vault.CurrentYield, vault.Strategy, vault.IsActive,
			vault.Withdrawn, vault.Matured, vault.MaturedAt, vault.WithdrawnAt, vault.UpdatedAt, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update vault %d: %w", id, err)
		}
		vault.ID = id
		updated = vault
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListByOwner returns the owner's vault ids; ids are allocated in creation order.
func (r *VaultRepository) ListByOwner(ctx context.Context, owner string) ([]int64, error) {
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM vaults WHERE owner = $1 ORDER BY id`, owner); err != nil {
		return nil, fmt.Errorf("failed to list vaults for owner %s: %w", owner, err)
	}
	return ids, nil
}

// ListMaturityCandidates returns open, unfinalized vaults whose unlock time has passed.
func (r *VaultRepository) ListMaturityCandidates(ctx context.Context, now time.Time) ([]int64, error) {
	ids := []int64{}
	query := `SELECT id FROM vaults
		WHERE is_active AND NOT withdrawn AND NOT matured AND unlock_time <= $1
		ORDER BY id`
	if err := r.db.SelectContext(ctx, &ids, query, now.UTC()); err != nil {
		return nil, fmt.Errorf("failed to list maturity candidates: %w", err)
	}
	return ids, nil
}

// Count returns the vault id counter, i.e. how many vaults were ever created.
func (r *VaultRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT next_id FROM vault_counter`); err != nil {
		return 0, fmt.Errorf("failed to read vault counter: %w", err)
	}
	return count, nil
}
