// internal/service/vault_service_test.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"yieldlock/internal/accounting"
	"yieldlock/internal/advisor"
	"yieldlock/internal/custody"
	"yieldlock/internal/domain"
	"yieldlock/internal/repository"
	"yieldlock/internal/repository/memory"
	"yieldlock/internal/util"
	"yieldlock/internal/yield"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	t0  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	day = 24 * time.Hour
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockCustody is a mock implementation of custody.Custody.
type MockCustody struct {
	mock.Mock
}

func (m *MockCustody) TransferIn(ctx context.Context, payer string, amount decimal.Decimal) error {
	return m.Called(ctx, payer, amount).Error(0)
}

func (m *MockCustody) TransferOut(ctx context.Context, payee string, amount decimal.Decimal) error {
	return m.Called(ctx, payee, amount).Error(0)
}

func (m *MockCustody) FundYield(ctx context.Context, vaultID int64, amount decimal.Decimal) error {
	return m.Called(ctx, vaultID, amount).Error(0)
}

// stubAdvisor returns a fixed answer.
type stubAdvisor struct {
	rec advisor.Recommendation
	err error
}

func (a stubAdvisor) RecommendStrategy(ctx context.Context, req advisor.Request) (advisor.Recommendation, error) {
	return a.rec, a.err
}

// failingCreateRepo fails every Create.
type failingCreateRepo struct {
	*memory.VaultRepository
}

func (failingCreateRepo) Create(ctx context.Context, vault *domain.Vault, onCreate repository.VaultMutator) (int64, error) {
	return 0, errors.New("store unavailable")
}

type fixture struct {
	svc    VaultService
	vaults *memory.VaultRepository
	events *memory.EventRepository
	ledger *custody.Ledger
	policy *Policy
}

func newFixture(t *testing.T, c custody.Custody, opts ...func(*Dependencies)) *fixture {
	t.Helper()
	policy, err := NewPolicy("admin", DefaultSettings(), discardLogger())
	require.NoError(t, err)

	f := &fixture{
		vaults: memory.NewVaultRepository(),
		events: memory.NewEventRepository(),
		ledger: custody.NewLedger("treasury", false),
		policy: policy,
	}
	if c == nil {
		c = f.ledger
	}
	deps := Dependencies{
		Vaults:   f.vaults,
		Events:   f.events,
		Custody:  c,
		Treasury: f.ledger,
		Policy:   policy,
		Logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewVaultService(deps)
	return f
}

func rentInput() CreateVaultInput {
	return CreateVaultInput{
		Owner:         "alice",
		Name:          "Rent",
		TargetAmount:  d(500),
		UnlockTime:    t0.Add(90 * day),
		InitialAmount: d(100),
	}
}

func eventTypes(t *testing.T, f *fixture, id int64) []domain.EventType {
	t.Helper()
	events, _, err := f.events.ListByVault(context.Background(), id, 0, 0)
	require.NoError(t, err)
	types := make([]domain.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestCreateVaultPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *CreateVaultInput)
		wantErr error
	}{
		{"zero initial amount", func(in *CreateVaultInput) { in.InitialAmount = decimal.Zero }, util.ErrNoFundsSent},
		{"zero amount wins over short lock", func(in *CreateVaultInput) {
			in.InitialAmount = decimal.Zero
			in.UnlockTime = t0.Add(6 * day)
		}, util.ErrNoFundsSent},
		{"six day lock", func(in *CreateVaultInput) { in.UnlockTime = t0.Add(6 * day) }, util.ErrLockTooShort},
		{"four hundred day lock", func(in *CreateVaultInput) { in.UnlockTime = t0.Add(400 * day) }, util.ErrLockTooLong},
		{"target below initial", func(in *CreateVaultInput) { in.TargetAmount = d(99) }, util.ErrTargetBelowInitial},
		{"short lock wins over bad target", func(in *CreateVaultInput) {
			in.UnlockTime = t0.Add(6 * day)
			in.TargetAmount = d(1)
		}, util.ErrLockTooShort},
		{"fractional amount", func(in *CreateVaultInput) { in.InitialAmount = decimal.RequireFromString("1.5") }, util.ErrArithmetic},
		{"amount beyond range", func(in *CreateVaultInput) {
			in.InitialAmount = accounting.MaxAmount.Add(d(1))
			in.TargetAmount = in.InitialAmount
		}, util.ErrArithmetic},
		{"unknown risk profile", func(in *CreateVaultInput) { in.RiskProfile = "yolo" }, util.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := new(MockCustody)
			f := newFixture(t, c)
			in := rentInput()
			tt.mutate(&in)

			_, err := f.svc.CreateVault(context.Background(), in, t0)
			assert.ErrorIs(t, err, tt.wantErr)

			c.AssertNotCalled(t, "TransferIn", mock.Anything, mock.Anything, mock.Anything)
			count, _ := f.svc.VaultCount(context.Background())
			assert.Zero(t, count)
		})
	}
}

func TestCreateVaultStoresVaultAndIndexesOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	first, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)
	second, err := f.svc.CreateVault(ctx, rentInput(), t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, int64(0), first.ID)
	assert.Equal(t, int64(1), second.ID)

	stored, err := f.svc.GetVault(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(d(100)))
	assert.True(t, stored.TargetAmount.GreaterThanOrEqual(stored.Amount))
	assert.True(t, stored.CurrentYield.IsZero())
	assert.True(t, stored.IsActive)
	assert.False(t, stored.Withdrawn)
	assert.True(t, stored.Strategy.Pending())

	ids, err := f.svc.ListOwnerVaults(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, ids)

	count, err := f.svc.VaultCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.True(t, f.ledger.Held().Equal(d(200)))
	assert.Equal(t, []domain.EventType{domain.EventVaultCreated}, eventTypes(t, f, first.ID))
}

func TestCreateVaultTransferFailureCreatesNothing(t *testing.T) {
	ctx := context.Background()
	c := new(MockCustody)
	c.On("TransferIn", mock.Anything, "alice", d(100)).Return(util.ErrInsufficientFunds).Once()
	f := newFixture(t, c)

	_, err := f.svc.CreateVault(ctx, rentInput(), t0)
	assert.ErrorIs(t, err, util.ErrTransferFailed)
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)

	count, _ := f.svc.VaultCount(ctx)
	assert.Zero(t, count)
	ids, _ := f.svc.ListOwnerVaults(ctx, "alice")
	assert.Empty(t, ids)
	c.AssertExpectations(t)
}

func TestCreateVaultRefundsWhenStoreFails(t *testing.T) {
	c := new(MockCustody)
	c.On("TransferIn", mock.Anything, "alice", d(100)).Return(nil).Once()
	c.On("TransferOut", mock.Anything, "alice", d(100)).Return(nil).Once()
	f := newFixture(t, c, func(deps *Dependencies) {
		deps.Vaults = failingCreateRepo{memory.NewVaultRepository()}
	})

	_, err := f.svc.CreateVault(context.Background(), rentInput(), t0)
	assert.ErrorContains(t, err, "store unavailable")
	c.AssertExpectations(t)
}

func TestCreateVaultConsultsAdvisor(t *testing.T) {
	ctx := context.Background()

	t.Run("stores recommendation", func(t *testing.T) {
		f := newFixture(t, nil, func(deps *Dependencies) {
			deps.Advisor = advisor.NewHeuristic(advisor.RiskModerate)
			deps.AdvisorTimeout = time.Second
		})
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)
		assert.Equal(t, "Ultra Safe", v.Strategy.Label)
		assert.True(t, v.Strategy.LowYield)
		assert.Equal(t, []domain.EventType{domain.EventVaultCreated, domain.EventStrategyUpdated}, eventTypes(t, f, v.ID))

		report, err := f.svc.Progress(ctx, v.ID, t0)
		require.NoError(t, err)
		assert.Equal(t, accounting.StatusBehindSchedule, report.Status)

		report, err = f.svc.Progress(ctx, v.ID, t0.Add(day))
		require.NoError(t, err)
		assert.Equal(t, accounting.StatusLowYield, report.Status)
	})

	t.Run("advisor failure leaves strategy pending", func(t *testing.T) {
		f := newFixture(t, nil, func(deps *Dependencies) {
			deps.Advisor = stubAdvisor{err: errors.New("timeout")}
		})
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)
		assert.True(t, v.Strategy.Pending())
		assert.Equal(t, []domain.EventType{domain.EventVaultCreated}, eventTypes(t, f, v.ID))
	})

	t.Run("malformed answer leaves strategy pending", func(t *testing.T) {
		f := newFixture(t, nil, func(deps *Dependencies) {
			deps.Advisor = stubAdvisor{rec: advisor.Recommendation{Strategy: "", ExpectedAPY: d(4)}}
		})
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)
		assert.True(t, v.Strategy.Pending())
	})
}

func TestProgressOfFreshVault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	v, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)

	report, err := f.svc.Progress(ctx, v.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), report.Progress)
	assert.Equal(t, accounting.StatusBehindSchedule, report.Status)

	report, err = f.svc.Progress(ctx, v.ID, t0.Add(day))
	require.NoError(t, err)
	assert.Equal(t, accounting.StatusOnTrack, report.Status)

	report, err = f.svc.Progress(ctx, v.ID, t0.Add(60*day))
	require.NoError(t, err)
	assert.Equal(t, accounting.StatusBehindSchedule, report.Status)

	_, err = f.svc.Progress(ctx, 99, t0)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestProgressWithHeuristicAdvisor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, func(deps *Dependencies) {
		deps.Advisor = advisor.NewHeuristic("")
	})
	v, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)
	require.True(t, v.Strategy.LowYield)

	report, err := f.svc.Progress(ctx, v.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(20), report.Progress)
	assert.Equal(t, accounting.StatusBehindSchedule, report.Status)

	report, err = f.svc.Progress(ctx, v.ID, t0.Add(60*day))
	require.NoError(t, err)
	assert.Equal(t, accounting.StatusBehindSchedule, report.Status)
}

func TestWithdrawPenalty(t *testing.T) {
	ctx := context.Background()

	t.Run("early withdrawal keeps five percent", func(t *testing.T) {
		f := newFixture(t, nil)
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)

		updated, payout, err := f.svc.Withdraw(ctx, v.ID, "alice", t0)
		require.NoError(t, err)
		assert.True(t, payout.Amount.Equal(d(95)))
		assert.True(t, payout.Penalty.Equal(d(5)))
		assert.True(t, payout.PenaltyApplied)
		assert.True(t, updated.Withdrawn)
		assert.False(t, updated.IsActive)
		require.NotNil(t, updated.WithdrawnAt)

		assert.True(t, f.ledger.Balance("treasury").Equal(d(5)))
		assert.True(t, f.ledger.Held().IsZero())
		assert.Equal(t, []domain.EventType{domain.EventVaultCreated, domain.EventWithdrawn}, eventTypes(t, f, v.ID))
	})

	t.Run("withdrawal after unlock pays in full", func(t *testing.T) {
		f := newFixture(t, nil)
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)
		_, err = f.svc.AccrueYield(ctx, v.ID, d(7), t0.Add(10*day))
		require.NoError(t, err)
		assert.True(t, f.ledger.Held().Equal(d(107)))

		_, payout, err := f.svc.Withdraw(ctx, v.ID, "alice", t0.Add(91*day))
		require.NoError(t, err)
		assert.True(t, payout.Amount.Equal(d(107)))
		assert.False(t, payout.PenaltyApplied)
		assert.True(t, f.ledger.Balance("treasury").IsZero())
		assert.True(t, f.ledger.Held().IsZero())
	})

	t.Run("early withdrawal with accrued yield", func(t *testing.T) {
		f := newFixture(t, nil)
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)
		_, err = f.svc.AccrueYield(ctx, v.ID, d(10), t0.Add(day))
		require.NoError(t, err)

		_, payout, err := f.svc.Withdraw(ctx, v.ID, "alice", t0.Add(2*day))
		require.NoError(t, err)
		assert.True(t, payout.Amount.Equal(d(104)))
		assert.True(t, f.ledger.Balance("alice").Equal(d(104)))
		assert.True(t, f.ledger.Balance("treasury").Equal(d(6)))
		assert.True(t, f.ledger.Held().IsZero())
	})
}

func TestWithdrawIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	v, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)

	_, _, err = f.svc.Withdraw(ctx, v.ID, "mallory", t0)
	assert.ErrorIs(t, err, util.ErrNotVaultOwner)

	_, _, err = f.svc.Withdraw(ctx, v.ID, "alice", t0)
	require.NoError(t, err)

	_, _, err = f.svc.Withdraw(ctx, v.ID, "alice", t0)
	assert.ErrorIs(t, err, util.ErrAlreadyWithdrawn)
	_, _, err = f.svc.Withdraw(ctx, v.ID, "mallory", t0)
	assert.ErrorIs(t, err, util.ErrAlreadyWithdrawn)

	_, err = f.svc.DepositMore(ctx, v.ID, d(10), "alice", t0)
	assert.ErrorIs(t, err, util.ErrVaultInactive)
	_, err = f.svc.AccrueYield(ctx, v.ID, d(1), t0)
	assert.ErrorIs(t, err, util.ErrVaultInactive)

	finalized, err := f.svc.FinalizeMaturity(ctx, v.ID, t0.Add(100*day))
	require.NoError(t, err)
	assert.False(t, finalized)

	_, _, err = f.svc.Withdraw(ctx, 42, "alice", t0)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestWithdrawTransferFailureLeavesVaultUntouched(t *testing.T) {
	ctx := context.Background()
	c := new(MockCustody)
	c.On("TransferIn", mock.Anything, "alice", d(100)).Return(nil).Once()
	c.On("TransferOut", mock.Anything, "alice", d(95)).Return(util.ErrTransferRejected).Once()
	f := newFixture(t, c)

	v, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)

	_, _, err = f.svc.Withdraw(ctx, v.ID, "alice", t0)
	assert.ErrorIs(t, err, util.ErrTransferFailed)
	assert.Equal(t, util.KindExternal, util.KindOf(err))

	stored, err := f.svc.GetVault(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.Withdrawn)
	assert.Nil(t, stored.WithdrawnAt)
	assert.Equal(t, []domain.EventType{domain.EventVaultCreated}, eventTypes(t, f, v.ID))
	c.AssertExpectations(t)
}

func TestDepositMore(t *testing.T) {
	ctx := context.Background()

	t.Run("checks in order", func(t *testing.T) {
		f := newFixture(t, nil)
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)

		_, err = f.svc.DepositMore(ctx, 77, d(10), "alice", t0)
		assert.ErrorIs(t, err, util.ErrNotFound)
		_, err = f.svc.DepositMore(ctx, v.ID, decimal.Zero, "bob", t0)
		assert.ErrorIs(t, err, util.ErrNotVaultOwner)
		_, err = f.svc.DepositMore(ctx, v.ID, decimal.Zero, "alice", t0)
		assert.ErrorIs(t, err, util.ErrNoFundsSent)

		updated, err := f.svc.DepositMore(ctx, v.ID, d(50), "alice", t0.Add(day))
		require.NoError(t, err)
		assert.True(t, updated.Amount.Equal(d(150)))
		assert.True(t, updated.InitialAmount.Equal(d(100)))
		assert.Equal(t, []domain.EventType{domain.EventVaultCreated, domain.EventDeposited}, eventTypes(t, f, v.ID))
	})

	t.Run("transfer failure leaves amount unchanged", func(t *testing.T) {
		c := new(MockCustody)
		c.On("TransferIn", mock.Anything, "alice", d(100)).Return(nil).Once()
		c.On("TransferIn", mock.Anything, "alice", d(10)).Return(context.DeadlineExceeded).Once()
		f := newFixture(t, c)
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)

		_, err = f.svc.DepositMore(ctx, v.ID, d(10), "alice", t0)
		assert.ErrorIs(t, err, util.ErrTransferFailed)

		stored, _ := f.svc.GetVault(ctx, v.ID)
		assert.True(t, stored.Amount.Equal(d(100)))
		c.AssertExpectations(t)
	})

	t.Run("overflow is rejected before any transfer", func(t *testing.T) {
		c := new(MockCustody)
		c.On("TransferIn", mock.Anything, "alice", d(100)).Return(nil).Once()
		f := newFixture(t, c)
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)

		_, err = f.svc.DepositMore(ctx, v.ID, accounting.MaxAmount, "alice", t0)
		assert.ErrorIs(t, err, util.ErrArithmetic)
		c.AssertExpectations(t)
	})

	t.Run("concurrent deposits are all applied", func(t *testing.T) {
		f := newFixture(t, nil)
		v, err := f.svc.CreateVault(ctx, rentInput(), t0)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.DepositMore(ctx, v.ID, d(5), "alice", t0)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stored, _ := f.svc.GetVault(ctx, v.ID)
		assert.True(t, stored.Amount.Equal(d(300)))
		assert.True(t, f.ledger.Held().Equal(d(300)))
	})
}

func TestAccrueYield(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	v, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)

	_, err = f.svc.AccrueYield(ctx, v.ID, d(-1), t0)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, err = f.svc.AccrueYield(ctx, 5, d(1), t0)
	assert.ErrorIs(t, err, util.ErrNotFound)

	updated, err := f.svc.AccrueYield(ctx, v.ID, d(3), t0)
	require.NoError(t, err)
	updated, err = f.svc.AccrueYield(ctx, v.ID, d(4), t0)
	require.NoError(t, err)
	assert.True(t, updated.CurrentYield.Equal(d(7)))

	events, total, err := f.svc.ListEvents(ctx, v.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.JSONEq(t, `{"id":0,"new_yield":"7"}`, string(events[2].Payload))
}

func TestFinalizeMaturityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, func(deps *Dependencies) {
		deps.Feed = yield.APYFeed{}
		deps.Advisor = stubAdvisor{rec: advisor.Recommendation{Strategy: "Flat", ExpectedAPY: d(10)}}
	})
	in := rentInput()
	in.InitialAmount = d(3650)
	in.TargetAmount = d(4000)
	in.UnlockTime = t0.Add(365 * day)
	v, err := f.svc.CreateVault(ctx, in, t0)
	require.NoError(t, err)

	finalized, err := f.svc.FinalizeMaturity(ctx, v.ID, t0.Add(364*day))
	require.NoError(t, err)
	assert.False(t, finalized, "not due yet")

	due := t0.Add(365 * day)
	finalized, err = f.svc.FinalizeMaturity(ctx, v.ID, due)
	require.NoError(t, err)
	assert.True(t, finalized)
	first, _ := f.svc.GetVault(ctx, v.ID)

	finalized, err = f.svc.FinalizeMaturity(ctx, v.ID, due.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, finalized)
	second, _ := f.svc.GetVault(ctx, v.ID)

	assert.Equal(t, first, second)
	assert.True(t, second.Matured)
	assert.True(t, second.CurrentYield.Equal(d(365)))
	assert.Equal(t, []domain.EventType{domain.EventVaultCreated, domain.EventStrategyUpdated, domain.EventYieldUpdated}, eventTypes(t, f, v.ID))

	assert.True(t, f.ledger.Held().Equal(d(4015)))
	_, payout, err := f.svc.Withdraw(ctx, v.ID, "alice", due.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, payout.PenaltyApplied)
	assert.True(t, payout.Amount.Equal(d(4015)))
	assert.True(t, f.ledger.Held().IsZero())
}

func TestMaturedWithdrawalPaysCreditedYield(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, func(deps *Dependencies) {
		deps.Advisor = advisor.NewHeuristic("")
		deps.Feed = yield.APYFeed{}
	})

	// Another owner's principal must stay untouched by the payout.
	other, err := f.svc.CreateVault(ctx, CreateVaultInput{
		Owner: "bob", Name: "Car", TargetAmount: d(900), UnlockTime: t0.Add(200 * day), InitialAmount: d(500),
	}, t0)
	require.NoError(t, err)

	in := rentInput()
	in.InitialAmount = d(100_000_000)
	in.TargetAmount = d(200_000_000)
	v, err := f.svc.CreateVault(ctx, in, t0)
	require.NoError(t, err)
	assert.Equal(t, "Ultra Safe", v.Strategy.Label)

	finalized, err := f.svc.FinalizeMaturity(ctx, v.ID, v.UnlockTime.Add(time.Second))
	require.NoError(t, err)
	require.True(t, finalized)

	matured, err := f.svc.GetVault(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, matured.CurrentYield.Equal(d(863_013)))
	assert.True(t, f.ledger.Held().Equal(d(100_863_513)))

	_, payout, err := f.svc.Withdraw(ctx, v.ID, "alice", v.UnlockTime.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, payout.PenaltyApplied)
	assert.True(t, payout.Amount.Equal(d(100_863_013)))
	assert.True(t, f.ledger.Balance("alice").Equal(d(100_863_013)))
	assert.True(t, f.ledger.Held().Equal(d(500)))

	_, payout, err = f.svc.Withdraw(ctx, other.ID, "bob", t0.Add(200*day))
	require.NoError(t, err)
	assert.True(t, payout.Amount.Equal(d(500)))
	assert.True(t, f.ledger.Held().IsZero())
}

func TestYieldFundingFailureLeavesVaultUnchanged(t *testing.T) {
	ctx := context.Background()
	c := new(MockCustody)
	c.On("TransferIn", mock.Anything, "alice", d(3650)).Return(nil).Once()
	c.On("FundYield", mock.Anything, int64(0), d(5)).Return(util.ErrInsufficientFunds).Once()
	c.On("FundYield", mock.Anything, int64(0), d(365)).Return(context.DeadlineExceeded).Once()
	f := newFixture(t, c, func(deps *Dependencies) {
		deps.Feed = yield.APYFeed{}
		deps.Advisor = stubAdvisor{rec: advisor.Recommendation{Strategy: "Flat", ExpectedAPY: d(10)}}
	})
	in := rentInput()
	in.InitialAmount = d(3650)
	in.TargetAmount = d(4000)
	in.UnlockTime = t0.Add(365 * day)
	v, err := f.svc.CreateVault(ctx, in, t0)
	require.NoError(t, err)

	_, err = f.svc.AccrueYield(ctx, v.ID, d(5), t0.Add(day))
	assert.ErrorIs(t, err, util.ErrTransferFailed)
	assert.ErrorIs(t, err, util.ErrInsufficientFunds)

	finalized, err := f.svc.FinalizeMaturity(ctx, v.ID, t0.Add(365*day))
	assert.ErrorIs(t, err, util.ErrTransferFailed)
	assert.False(t, finalized)

	stored, err := f.svc.GetVault(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentYield.IsZero())
	assert.False(t, stored.Matured)
	assert.Equal(t, []domain.EventType{domain.EventVaultCreated, domain.EventStrategyUpdated}, eventTypes(t, f, v.ID))

	ids, err := f.svc.ListMaturityCandidates(ctx, t0.Add(365*day))
	require.NoError(t, err)
	assert.Equal(t, []int64{v.ID}, ids)

	// A zero delta moves no funds.
	_, err = f.svc.AccrueYield(ctx, v.ID, decimal.Zero, t0.Add(day))
	require.NoError(t, err)
	c.AssertExpectations(t)
}

func TestEventsFollowCommitOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	v, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AccrueYield(ctx, v.ID, d(1), t0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events, total, err := f.svc.ListEvents(ctx, v.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, int64(n+1), total)
	for i, e := range events[1:] {
		var payload domain.YieldUpdatedPayload
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		assert.True(t, payload.NewYield.Equal(d(int64(i+1))), "event %d has new_yield %s", i+1, payload.NewYield)
	}
	assert.True(t, f.ledger.Held().Equal(d(100+n)))
}

func TestRefreshStrategy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, func(deps *Dependencies) {
		deps.Advisor = advisor.NewHeuristic(advisor.RiskModerate)
	})
	in := rentInput()
	in.Name = "Car"
	in.InitialAmount = d(1000)
	in.TargetAmount = d(1010)
	v, err := f.svc.CreateVault(ctx, in, t0)
	require.NoError(t, err)
	assert.Equal(t, "Growth Focused", v.Strategy.Label)

	_, err = f.svc.RefreshStrategy(ctx, v.ID, "bob", "", t0)
	assert.ErrorIs(t, err, util.ErrNotVaultOwner)
	_, err = f.svc.RefreshStrategy(ctx, v.ID, "alice", "reckless", t0)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	updated, err := f.svc.RefreshStrategy(ctx, v.ID, "alice", advisor.RiskConservative, t0.Add(day))
	require.NoError(t, err)
	assert.Equal(t, "Balanced Conservative", updated.Strategy.Label)

	_, _, err = f.svc.Withdraw(ctx, v.ID, "alice", t0.Add(day))
	require.NoError(t, err)
	_, err = f.svc.RefreshStrategy(ctx, v.ID, "alice", "", t0.Add(day))
	assert.ErrorIs(t, err, util.ErrVaultInactive)
}

func TestPenaltyChangeIsNotRetroactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)
	b, err := f.svc.CreateVault(ctx, rentInput(), t0)
	require.NoError(t, err)

	_, before, err := f.svc.Withdraw(ctx, a.ID, "alice", t0)
	require.NoError(t, err)

	require.NoError(t, f.policy.SetEarlyWithdrawalPenalty(ctx, "admin", 20))
	_, after, err := f.svc.Withdraw(ctx, b.ID, "alice", t0)
	require.NoError(t, err)

	assert.True(t, before.Amount.Equal(d(95)))
	assert.True(t, after.Amount.Equal(d(80)))

	withdrawn, err := f.svc.GetVault(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, withdrawn.Withdrawn)
	assert.True(t, f.ledger.Balance("treasury").Equal(d(25)))
}

func TestLockLimitsApplyToLaterCreations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	in := rentInput()
	in.UnlockTime = t0.Add(3 * day)
	_, err := f.svc.CreateVault(ctx, in, t0)
	assert.ErrorIs(t, err, util.ErrLockTooShort)

	require.NoError(t, f.policy.SetLockDurationLimits(ctx, "admin", day, 30*day))
	_, err = f.svc.CreateVault(ctx, in, t0)
	assert.NoError(t, err)

	_, err = f.svc.CreateVault(ctx, rentInput(), t0)
	assert.ErrorIs(t, err, util.ErrLockTooLong)
}
