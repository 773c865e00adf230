// internal/service/policy.go
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"yieldlock/internal/util"
)

// Settings are the administrator-controlled vault parameters.
type Settings struct {
	EarlyWithdrawalPenalty uint8         `json:"early_withdrawal_penalty"` // percent, 0..100
	MinLockDuration        time.Duration `json:"min_lock_duration"`
	MaxLockDuration        time.Duration `json:"max_lock_duration"`
}

// DefaultSettings returns a 5% penalty and a 7 to 365 day lock window.
func DefaultSettings() Settings {
	return Settings{
		EarlyWithdrawalPenalty: 5,
		MinLockDuration:        7 * 24 * time.Hour,
		MaxLockDuration:        365 * 24 * time.Hour,
	}
}

// Validate checks the penalty range and that 0 < min <= max.
func (s Settings) Validate() error {
	if s.EarlyWithdrawalPenalty > 100 {
		return util.ErrInvalidInput
	}
	if s.MinLockDuration <= 0 || s.MinLockDuration > s.MaxLockDuration {
		return util.ErrInvalidInput
	}
	return nil
}

// Policy holds the current Settings. Only the admin account may change them;
// changes apply to operations that start afterwards.
type Policy struct {
	mu       sync.RWMutex
	admin    string
	settings Settings
	logger   *slog.Logger
}

// NewPolicy creates a Policy administered by admin. An empty admin disables the setters.
func NewPolicy(admin string, settings Settings, logger *slog.Logger) (*Policy, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Policy{admin: admin, settings: settings, logger: logger}, nil
}

// Settings returns a snapshot of the current settings.
func (p *Policy) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// IsAdmin reports whether account is the configured administrator.
func (p *Policy) IsAdmin(account string) bool {
	return p.admin != "" && account == p.admin
}

// SetEarlyWithdrawalPenalty changes the penalty percent applied to early withdrawals.
func (p *Policy) SetEarlyWithdrawalPenalty(ctx context.Context, caller string, percent int) error {
	if !p.IsAdmin(caller) {
		return util.ErrNotAdmin
	}
	if percent < 0 || percent > 100 {
		return util.ErrInvalidInput
	}

	p.mu.Lock()
	old := p.settings.EarlyWithdrawalPenalty
	p.settings.EarlyWithdrawalPenalty = uint8(percent)
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "Early withdrawal penalty changed", "admin", caller, "old", old, "new", percent)
	return nil
}

// SetLockDurationLimits changes the allowed lock window for new vaults.
func (p *Policy) SetLockDurationLimits(ctx context.Context, caller string, minLock, maxLock time.Duration) error {
	if !p.IsAdmin(caller) {
		return util.ErrNotAdmin
	}
	if minLock <= 0 || minLock > maxLock {
		return util.ErrInvalidInput
	}

	p.mu.Lock()
	p.settings.MinLockDuration = minLock
	p.settings.MaxLockDuration = maxLock
	p.mu.Unlock()

	p.logger.InfoContext(ctx, "Lock duration limits changed", "admin", caller, "min", minLock.String(), "max", maxLock.String())
	return nil
}
