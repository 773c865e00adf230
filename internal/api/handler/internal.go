// internal/api/handler/internal.go
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"yieldlock/internal/domain"
	"yieldlock/internal/sweeper"

	"github.com/shopspring/decimal"
)

// SweepRunner performs one maturity sweep.
type SweepRunner interface {
	PerformWork(ctx context.Context, now time.Time) (sweeper.Result, error)
}

// YieldAccruer credits yield reported by the yield feed.
type YieldAccruer interface {
	AccrueYield(ctx context.Context, id int64, delta decimal.Decimal, now time.Time) (*domain.Vault, error)
}

// InternalHandler serves the scheduler and yield-feed endpoints.
type InternalHandler struct {
	responder
	sweeper SweepRunner
	yields  YieldAccruer
	now     Clock
}

// NewInternalHandler creates a new InternalHandler.
func NewInternalHandler(sweeper SweepRunner, yields YieldAccruer, now Clock, logger *slog.Logger) *InternalHandler {
	if now == nil {
		now = time.Now
	}
	return &InternalHandler{responder: responder{logger: logger}, sweeper: sweeper, yields: yields, now: now}
}

// Sweep finalizes all vaults due now.
// POST /internal/sweep
func (h *InternalHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.PerformWork(r.Context(), h.now())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, res)
}

// AccrueYieldRequest represents the request body of a yield credit.
type AccrueYieldRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

// AccrueYield credits yield to an active vault.
// POST /internal/vaults/{vaultID}/yield
func (h *InternalHandler) AccrueYield(w http.ResponseWriter, r *http.Request) {
	id, err := vaultIDParam(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req AccrueYieldRequest
	if err := decode(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	if err := wholeUnits(req.Delta); err != nil {
		h.respondWithError(w, err)
		return
	}

	vault, err := h.yields.AccrueYield(r.Context(), id, req.Delta, h.now())
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, vault)
}
