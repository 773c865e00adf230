// internal/service/vault_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"yieldlock/internal/accounting"
	"yieldlock/internal/advisor"
	"yieldlock/internal/custody"
	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
	"yieldlock/internal/util"
	"yieldlock/internal/yield"

	"github.com/shopspring/decimal"
)

// VaultService defines the vault lifecycle: creation, deposits, withdrawal,
// yield accrual, maturity finalization and queries.
type VaultService interface {
	CreateVault(ctx context.Context, in CreateVaultInput, now time.Time) (*domain.Vault, error)
	DepositMore(ctx context.Context, id int64, amount decimal.Decimal, caller string, now time.Time) (*domain.Vault, error)
	Withdraw(ctx context.Context, id int64, caller string, now time.Time) (*domain.Vault, accounting.Payout, error)
	AccrueYield(ctx context.Context, id int64, delta decimal.Decimal, now time.Time) (*domain.Vault, error)
	FinalizeMaturity(ctx context.Context, id int64, now time.Time) (bool, error)
	RefreshStrategy(ctx context.Context, id int64, caller, riskProfile string, now time.Time) (*domain.Vault, error)

	GetVault(ctx context.Context, id int64) (*domain.Vault, error)
	ListOwnerVaults(ctx context.Context, owner string) ([]int64, error)
	VaultCount(ctx context.Context) (int64, error)
	Progress(ctx context.Context, id int64, now time.Time) (ProgressReport, error)
	ListEvents(ctx context.Context, id int64, limit, offset int) ([]domain.Event, int64, error)
	ListMaturityCandidates(ctx context.Context, now time.Time) ([]int64, error)
}

// CreateVaultInput carries the caller-supplied parameters of a new vault.
type CreateVaultInput struct {
	Owner         string
	Name          string
	TargetAmount  decimal.Decimal
	UnlockTime    time.Time
	InitialAmount decimal.Decimal
	RiskProfile   string // optional advisor hint
}

// ProgressReport is a vault's goal progress at a point in time.
type ProgressReport struct {
	VaultID  int64             `json:"vault_id"`
	Progress int64             `json:"progress"` // percent, may exceed 100
	Status   accounting.Status `json:"status"`
}

// Dependencies are the collaborators of the vault service. Advisor, Feed and
// Treasury are optional.
type Dependencies struct {
	Vaults         repository.VaultRepository
	Events         repository.EventRepository
	Custody        custody.Custody
	Treasury       custody.Treasury
	Advisor        advisor.Advisor
	Feed           yield.Feed
	Policy         *Policy
	AdvisorTimeout time.Duration
	Logger         *slog.Logger
}

// vaultService implements the VaultService interface.
type vaultService struct {
	vaults         repository.VaultRepository
	events         repository.EventRepository
	custody        custody.Custody
	treasury       custody.Treasury
	advisor        advisor.Advisor
	feed           yield.Feed
	policy         *Policy
	advisorTimeout time.Duration
	logger         *slog.Logger
}

// errNothingToDo aborts an Update whose mutator found no change to make.
var errNothingToDo = errors.New("nothing to do")

// NewVaultService creates a new instance of VaultService.
func NewVaultService(deps Dependencies) VaultService {
	logger := deps.Logger
	if logger == nil {
		logger = util.GetLogger()
	}
	policy := deps.Policy
	if policy == nil {
		policy, _ = NewPolicy("", DefaultSettings(), logger)
	}
	return &vaultService{
		vaults:         deps.Vaults,
		events:         deps.Events,
		custody:        deps.Custody,
		treasury:       deps.Treasury,
		advisor:        deps.Advisor,
		feed:           deps.Feed,
		policy:         policy,
		advisorTimeout: deps.AdvisorTimeout,
		logger:         logger,
	}
}

// CreateVault validates the request, pulls the initial deposit into custody
// and stores the vault. The advisor is consulted after the vault exists.
func (s *vaultService) CreateVault(ctx context.Context, in CreateVaultInput, now time.Time) (*domain.Vault, error) {
	if strings.TrimSpace(in.Owner) == "" {
		return nil, util.ErrUnauthorized
	}
	if in.RiskProfile != "" && !advisor.ValidRiskProfile(in.RiskProfile) {
		return nil, util.ErrInvalidInput
	}

	settings := s.policy.Settings()
	if in.InitialAmount.Sign() <= 0 {
		return nil, util.ErrNoFundsSent
	}
	lock := in.UnlockTime.Sub(now)
	if lock < settings.MinLockDuration {
		return nil, util.ErrLockTooShort
	}
	if lock > settings.MaxLockDuration {
		return nil, util.ErrLockTooLong
	}
	if in.TargetAmount.LessThan(in.InitialAmount) {
		return nil, util.ErrTargetBelowInitial
	}
	if err := accounting.ValidateAmount(in.InitialAmount); err != nil {
		return nil, err
	}
	if err := accounting.ValidateAmount(in.TargetAmount); err != nil {
		return nil, err
	}

	if err := s.custody.TransferIn(ctx, in.Owner, in.InitialAmount); err != nil {
		return nil, fmt.Errorf("create vault: %w", custody.TransferError(err))
	}

	vault := domain.NewVault(in.Owner, in.Name, in.InitialAmount, in.TargetAmount, in.UnlockTime, now)
	id, err := s.vaults.Create(ctx, vault, func(ctx context.Context, v *domain.Vault) error {
		return s.appendEvent(ctx, v.ID, domain.EventVaultCreated, domain.VaultCreatedPayload{
			ID:           v.ID,
			Owner:        v.Owner,
			Name:         v.Name,
			Amount:       v.Amount,
			TargetAmount: v.TargetAmount,
			UnlockTime:   v.UnlockTime.Unix(),
		}, now)
	})
	if err != nil {
		s.refund(ctx, "create vault", in.Owner, in.InitialAmount)
		return nil, fmt.Errorf("create vault: failed to store vault: %w", err)
	}

	s.logger.InfoContext(ctx, "Vault created", "vault_id", id, "owner", vault.Owner, "amount", vault.Amount.String())

	if updated, ok := s.applyStrategy(ctx, vault, in.RiskProfile, now); ok {
		return updated, nil
	}
	return vault, nil
}

// DepositMore adds amount to an open vault owned by caller.
func (s *vaultService) DepositMore(ctx context.Context, id int64, amount decimal.Decimal, caller string, now time.Time) (*domain.Vault, error) {
	transferred := false
	updated, err := s.vaults.Update(ctx, id, func(ctx context.Context, v *domain.Vault) error {
		if v.Owner != caller {
			return util.ErrNotVaultOwner
		}
		if !v.Open() {
			return util.ErrVaultInactive
		}
		if amount.Sign() <= 0 {
			return util.ErrNoFundsSent
		}
		total, err := accounting.Add(v.Amount, amount)
		if err != nil {
			return err
		}

		if err := s.custody.TransferIn(ctx, caller, amount); err != nil {
			return custody.TransferError(err)
		}
		transferred = true

		v.Amount = total
		v.UpdatedAt = now.UTC()
		return s.appendEvent(ctx, id, domain.EventDeposited, domain.DepositedPayload{ID: id, Amount: amount}, now)
	})
	if err != nil {
		if transferred {
			s.refund(ctx, "deposit", caller, amount)
		}
		return nil, fmt.Errorf("deposit: %w", err)
	}
	return updated, nil
}

// Withdraw settles the vault and pays the owner. Before maturity the
// configured penalty is retained and handed to the treasury.
func (s *vaultService) Withdraw(ctx context.Context, id int64, caller string, now time.Time) (*domain.Vault, accounting.Payout, error) {
	penalty := s.policy.Settings().EarlyWithdrawalPenalty

	var payout accounting.Payout
	paid := false
	updated, err := s.vaults.Update(ctx, id, func(ctx context.Context, v *domain.Vault) error {
		if v.Withdrawn {
			return util.ErrAlreadyWithdrawn
		}
		if v.Owner != caller {
			return util.ErrNotVaultOwner
		}
		if !v.IsActive {
			return util.ErrVaultInactive
		}

		p, err := accounting.ComputePayout(v, now, penalty)
		if err != nil {
			return err
		}
		if p.Amount.IsPositive() {
			if err := s.custody.TransferOut(ctx, caller, p.Amount); err != nil {
				return custody.TransferError(err)
			}
		}
		paid = true

		withdrawnAt := now.UTC()
		v.Withdrawn = true
		v.IsActive = false
		v.WithdrawnAt = &withdrawnAt
		v.UpdatedAt = withdrawnAt
		payout = p
		return s.appendEvent(ctx, id, domain.EventWithdrawn, domain.WithdrawnPayload{
			ID:             id,
			PayoutAmount:   p.Amount,
			PenaltyApplied: p.PenaltyApplied,
		}, now)
	})
	if err != nil {
		if paid {
			// TODO: park the payout in a reconciliation table instead of relying on this log line.
			s.logger.ErrorContext(ctx, "Payout sent but vault state was not saved", "vault_id", id, "payee", caller, "error", err)
		}
		return nil, accounting.Payout{}, fmt.Errorf("withdraw: %w", err)
	}

	if payout.PenaltyApplied && payout.Penalty.IsPositive() && s.treasury != nil {
		if err := s.treasury.CollectPenalty(ctx, id, payout.Penalty); err != nil {
			s.logger.ErrorContext(ctx, "Failed to route penalty to treasury", "vault_id", id, "penalty", payout.Penalty.String(), "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Vault withdrawn", "vault_id", id, "payout", payout.Amount.String(), "penalty_applied", payout.PenaltyApplied)
	return updated, payout, nil
}

// AccrueYield adds a non-negative delta to the vault's yield. The delta is
// funded into custody before it is recorded.
func (s *vaultService) AccrueYield(ctx context.Context, id int64, delta decimal.Decimal, now time.Time) (*domain.Vault, error) {
	funded := false
	updated, err := s.vaults.Update(ctx, id, func(ctx context.Context, v *domain.Vault) error {
		if !v.Open() {
			return util.ErrVaultInactive
		}
		if delta.IsNegative() {
			return util.ErrInvalidInput
		}
		total, err := accounting.Add(v.CurrentYield, delta)
		if err != nil {
			return err
		}
		if funded, err = s.fundYield(ctx, id, delta); err != nil {
			return err
		}

		v.CurrentYield = total
		v.UpdatedAt = now.UTC()
		return s.appendEvent(ctx, id, domain.EventYieldUpdated, domain.YieldUpdatedPayload{ID: id, NewYield: total}, now)
	})
	if err != nil {
		if funded {
			s.logger.ErrorContext(ctx, "Yield funded but vault state was not saved", "vault_id", id, "delta", delta.String(), "error", err)
		}
		return nil, fmt.Errorf("accrue yield: %w", err)
	}
	return updated, nil
}

// FinalizeMaturity marks a due vault as matured, crediting the final yield from
// the feed. It reports false without error when there is nothing to finalize.
func (s *vaultService) FinalizeMaturity(ctx context.Context, id int64, now time.Time) (bool, error) {
	var delta decimal.Decimal
	funded := false
	_, err := s.vaults.Update(ctx, id, func(ctx context.Context, v *domain.Vault) error {
		if !v.DueForMaturity(now) {
			return errNothingToDo
		}

		delta = decimal.Zero
		if s.feed != nil {
			d, err := s.feed.FinalYield(ctx, v, now)
			if err != nil {
				return fmt.Errorf("yield feed: %w", err)
			}
			if d.IsNegative() {
				return util.ErrInvalidInput
			}
			delta = d
		}
		total, err := accounting.Add(v.CurrentYield, delta)
		if err != nil {
			return err
		}
		if funded, err = s.fundYield(ctx, id, delta); err != nil {
			return err
		}

		maturedAt := now.UTC()
		v.CurrentYield = total
		v.Matured = true
		v.MaturedAt = &maturedAt
		v.UpdatedAt = maturedAt
		return s.appendEvent(ctx, id, domain.EventYieldUpdated, domain.YieldUpdatedPayload{ID: id, NewYield: total}, now)
	})
	if errors.Is(err, errNothingToDo) {
		return false, nil
	}
	if err != nil {
		if funded {
			s.logger.ErrorContext(ctx, "Yield funded but vault state was not saved", "vault_id", id, "delta", delta.String(), "error", err)
		}
		return false, fmt.Errorf("finalize maturity: %w", err)
	}
	return true, nil
}

// RefreshStrategy asks the advisor again and stores its answer.
func (s *vaultService) RefreshStrategy(ctx context.Context, id int64, caller, riskProfile string, now time.Time) (*domain.Vault, error) {
	if riskProfile != "" && !advisor.ValidRiskProfile(riskProfile) {
		return nil, util.ErrInvalidInput
	}
	vault, err := s.vaults.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("refresh strategy: %w", err)
	}
	if vault.Owner != caller {
		return nil, util.ErrNotVaultOwner
	}
	if !vault.Open() {
		return nil, util.ErrVaultInactive
	}

	if updated, ok := s.applyStrategy(ctx, vault, riskProfile, now); ok {
		return updated, nil
	}
	return vault, nil
}

// applyStrategy consults the advisor for vault and stores a usable answer.
// It reports false when the strategy stays as it was.
func (s *vaultService) applyStrategy(ctx context.Context, vault *domain.Vault, riskProfile string, now time.Time) (*domain.Vault, bool) {
	if s.advisor == nil {
		return nil, false
	}

	advisorCtx := ctx
	if s.advisorTimeout > 0 {
		var cancel context.CancelFunc
		advisorCtx, cancel = context.WithTimeout(ctx, s.advisorTimeout)
		defer cancel()
	}

	rec, err := s.advisor.RecommendStrategy(advisorCtx, advisor.Request{
		VaultID:      vault.ID,
		Name:         vault.Name,
		Amount:       vault.Amount,
		TargetAmount: vault.TargetAmount,
		DurationDays: vault.UnlockTime.Sub(now).Hours() / 24,
		RiskProfile:  riskProfile,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Advisor unavailable, strategy left unchanged", "vault_id", vault.ID, "error", err)
	}
	strategy := advisor.Normalize(rec, err)
	if strategy.Pending() {
		return nil, false
	}

	updated, err := s.vaults.Update(ctx, vault.ID, func(ctx context.Context, v *domain.Vault) error {
		if !v.Open() {
			return util.ErrVaultInactive
		}
		v.Strategy = strategy
		v.UpdatedAt = now.UTC()
		return s.appendEvent(ctx, v.ID, domain.EventStrategyUpdated, domain.StrategyUpdatedPayload{
			ID:            v.ID,
			StrategyLabel: strategy.Label,
			ExpectedAPY:   strategy.ExpectedAPY,
		}, now)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to store strategy", "vault_id", vault.ID, "error", err)
		return nil, false
	}
	return updated, true
}

// GetVault returns a snapshot of the vault.
func (s *vaultService) GetVault(ctx context.Context, id int64) (*domain.Vault, error) {
	vault, err := s.vaults.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get vault: %w", err)
	}
	return vault, nil
}

// ListOwnerVaults returns the owner's vault ids in creation order.
func (s *vaultService) ListOwnerVaults(ctx context.Context, owner string) ([]int64, error) {
	ids, err := s.vaults.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list owner vaults: %w", err)
	}
	return ids, nil
}

// VaultCount returns the number of vaults ever created.
func (s *vaultService) VaultCount(ctx context.Context) (int64, error) {
	count, err := s.vaults.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("vault count: %w", err)
	}
	return count, nil
}

// Progress returns the vault's goal progress and status at now.
func (s *vaultService) Progress(ctx context.Context, id int64, now time.Time) (ProgressReport, error) {
	vault, err := s.vaults.Get(ctx, id)
	if err != nil {
		return ProgressReport{}, fmt.Errorf("progress: %w", err)
	}
	progress, err := accounting.Progress(vault)
	if err != nil {
		return ProgressReport{}, fmt.Errorf("progress: %w", err)
	}
	return ProgressReport{VaultID: id, Progress: progress, Status: accounting.Classify(vault, now)}, nil
}

// ListEvents retrieves a paginated list of events for a vault.
func (s *vaultService) ListEvents(ctx context.Context, id int64, limit, offset int) ([]domain.Event, int64, error) {
	if _, err := s.vaults.Get(ctx, id); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	events, total, err := s.events.ListByVault(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: failed to retrieve events: %w", err)
	}
	return events, total, nil
}

// ListMaturityCandidates returns the ids the sweeper still has to finalize.
func (s *vaultService) ListMaturityCandidates(ctx context.Context, now time.Time) ([]int64, error) {
	ids, err := s.vaults.ListMaturityCandidates(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list maturity candidates: %w", err)
	}
	return ids, nil
}

// refund returns funds pulled for an operation that then failed to commit.
func (s *vaultService) refund(ctx context.Context, op, account string, amount decimal.Decimal) {
	if err := s.custody.TransferOut(context.WithoutCancel(ctx), account, amount); err != nil {
		s.logger.ErrorContext(ctx, "Failed to refund transfer", "op", op, "account", account, "amount", amount.String(), "error", err)
		return
	}
	s.logger.WarnContext(ctx, "Refunded transfer after failed commit", "op", op, "account", account, "amount", amount.String())
}

// fundYield backs a positive yield delta with custody funds. It reports whether
// funds were moved.
func (s *vaultService) fundYield(ctx context.Context, id int64, delta decimal.Decimal) (bool, error) {
	if !delta.IsPositive() {
		return false, nil
	}
	if err := s.custody.FundYield(ctx, id, delta); err != nil {
		return false, custody.TransferError(err)
	}
	return true, nil
}

// appendEvent records an event from inside a store mutation, so it is written
// with the vault and in the order the mutations commit.
func (s *vaultService) appendEvent(ctx context.Context, vaultID int64, eventType domain.EventType, payload interface{}, now time.Time) error {
	event, err := domain.NewEvent(vaultID, eventType, payload, now)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	if err := s.events.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}
