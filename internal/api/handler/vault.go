// internal/api/handler/vault.go
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"yieldlock/internal/accounting"
	"yieldlock/internal/api/types"
	"yieldlock/internal/domain"
	"yieldlock/internal/service"

	"github.com/shopspring/decimal"
)

// VaultHandler handles HTTP requests of vault owners.
type VaultHandler struct {
	responder
	service service.VaultService
	now     Clock
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(svc service.VaultService, now Clock, logger *slog.Logger) *VaultHandler {
	if now == nil {
		now = time.Now
	}
	return &VaultHandler{responder: responder{logger: logger}, service: svc, now: now}
}

// CreateVaultRequest represents the request body for vault creation.
type CreateVaultRequest struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	UnlockTime    time.Time       `json:"unlock_time"`
	InitialAmount decimal.Decimal `json:"initial_amount"`
	RiskProfile   string          `json:"risk_profile,omitempty"`
}

// CreateVault handles vault creation.
// POST /vaults
func (h *VaultHandler) CreateVault(w http.ResponseWriter, r *http.Request) {
	owner, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req CreateVaultRequest
	if err := decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	if err := wholeUnits(req.InitialAmount, req.TargetAmount); err != nil {
		h.respondWithError(w, err)
		return
	}

	vault, err := h.service.CreateVault(r.Context(), service.CreateVaultInput{
		Owner:         owner,
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		UnlockTime:    req.UnlockTime,
		InitialAmount: req.InitialAmount,
		RiskProfile:   req.RiskProfile,
	}, h.now())
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, vault)
}

// GetVault returns a vault snapshot.
// GET /vaults/{vaultID}
func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	id, err := vaultIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	vault, err := h.service.GetVault(r.Context(), id)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, vault)
}

// GetProgress returns goal progress and status.
// GET /vaults/{vaultID}/progress
func (h *VaultHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, err := vaultIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	report, err := h.service.Progress(r.Context(), id, h.now())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, report)
}

// DepositRequest represents the request body for deposit.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit handles an additional deposit.
// POST /vaults/{vaultID}/deposit
func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req DepositRequest
	if err := decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	if err := wholeUnits(req.Amount); err != nil {
		h.respondWithError(w, err)
		return
	}

	vault, err := h.service.DepositMore(r.Context(), id, req.Amount, caller, h.now())
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Deposit successful",
		"vault_id":   vault.ID,
		"new_amount": vault.Amount,
	})
}

// WithdrawResponse is returned by a successful withdrawal.
type WithdrawResponse struct {
	Vault  *domain.Vault      `json:"vault"`
	Payout accounting.Payout `json:"payout"`
}

// Withdraw handles the terminal withdrawal.
// POST /vaults/{vaultID}/withdraw
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	vault, payout, err := h.service.Withdraw(r.Context(), id, caller, h.now())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, WithdrawResponse{Vault: vault, Payout: payout})
}

// RefreshStrategyRequest represents the request body for a strategy refresh.
type RefreshStrategyRequest struct {
	RiskProfile string `json:"risk_profile"`
}

// RefreshStrategy asks the advisor for a new recommendation.
// POST /vaults/{vaultID}/strategy
func (h *VaultHandler) RefreshStrategy(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	id, err := vaultIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req RefreshStrategyRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.respondWithError(w, err)
			return
		}
	}

	vault, err := h.service.RefreshStrategy(r.Context(), id, caller, req.RiskProfile, h.now())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, vault)
}

// ListEvents returns a page of the vault's event log.
// GET /vaults/{vaultID}/events
func (h *VaultHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := vaultIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, offset := pagination(r)

	events, total, err := h.service.ListEvents(r.Context(), id, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Event]{
		Data:       events,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

// ListMyVaults returns the caller's vaults in creation order.
// GET /accounts/me/vaults
func (h *VaultHandler) ListMyVaults(w http.ResponseWriter, r *http.Request) {
	owner, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	ids, err := h.service.ListOwnerVaults(r.Context(), owner)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	vaults := make([]*domain.Vault, 0, len(ids))
	for _, id := range ids {
		vault, err := h.service.GetVault(r.Context(), id)
		if err != nil {
			h.respondWithError(w, err)
			return
		}
		vaults = append(vaults, vault)
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"owner":     owner,
		"vault_ids": ids,
		"vaults":    vaults,
	})
}
