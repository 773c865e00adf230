// internal/api/handler/admin.go
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"yieldlock/internal/service"
)

// SettingsStore is the administrator-controlled configuration.
type SettingsStore interface {
	Settings() service.Settings
	SetEarlyWithdrawalPenalty(ctx context.Context, caller string, percent int) error
	SetLockDurationLimits(ctx context.Context, caller string, minLock, maxLock time.Duration) error
}

// VaultCounter reports the number of vaults ever created.
type VaultCounter interface {
	VaultCount(ctx context.Context) (int64, error)
}

// AdminHandler handles the administrator endpoints.
type AdminHandler struct {
	responder
	policy SettingsStore
	vaults VaultCounter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(policy SettingsStore, vaults VaultCounter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{responder: responder{logger: logger}, policy: policy, vaults: vaults}
}

// SettingsResponse shows the current settings with durations in seconds.
type SettingsResponse struct {
	EarlyWithdrawalPenalty uint8 `json:"early_withdrawal_penalty"`
	MinLockSeconds         int64 `json:"min_lock_seconds"`
	MaxLockSeconds         int64 `json:"max_lock_seconds"`
	VaultCount             int64 `json:"vault_count,omitempty"`
}

// GetSettings returns the current settings and vault count.
// GET /admin/settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	count, err := h.vaults.VaultCount(r.Context())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.settingsResponse(count))
}

// PenaltyRequest represents the request body for a penalty change.
type PenaltyRequest struct {
	Percent int `json:"percent"`
}

// SetPenalty changes the early withdrawal penalty.
// PUT /admin/penalty
func (h *AdminHandler) SetPenalty(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req PenaltyRequest
	if err := decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	if err := h.policy.SetEarlyWithdrawalPenalty(r.Context(), caller, req.Percent); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.settingsResponse(0))
}

// LockLimitsRequest carries the lock window in seconds.
type LockLimitsRequest struct {
	MinLockSeconds int64 `json:"min_lock_seconds"`
	MaxLockSeconds int64 `json:"max_lock_seconds"`
}

// SetLockLimits changes the allowed lock window.
// PUT /admin/lock-limits
func (h *AdminHandler) SetLockLimits(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req LockLimitsRequest
	if err := decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	minLock := time.Duration(req.MinLockSeconds) * time.Second
	maxLock := time.Duration(req.MaxLockSeconds) * time.Second
	if err := h.policy.SetLockDurationLimits(r.Context(), caller, minLock, maxLock); err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, h.settingsResponse(0))
}

func (h *AdminHandler) settingsResponse(count int64) SettingsResponse {
	s := h.policy.Settings()
	return SettingsResponse{
		EarlyWithdrawalPenalty: s.EarlyWithdrawalPenalty,
		MinLockSeconds:         int64(s.MinLockDuration / time.Second),
		MaxLockSeconds:         int64(s.MaxLockDuration / time.Second),
		VaultCount:             count,
	}
}
