// internal/api/handler/account.go
package handler

import (
	"log/slog"
	"net/http"

	"yieldlock/internal/api/types"
	"yieldlock/internal/custody"
	"yieldlock/internal/domain"
)

// AccountHandler exposes the caller's custody wallet.
type AccountHandler struct {
	responder
	statements custody.Statements
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(statements custody.Statements, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{responder: responder{logger: logger}, statements: statements}
}

// GetWalletBalance returns the caller's wallet balance.
// GET /accounts/me/balance
func (h *AccountHandler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	account, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	balance, err := h.statements.AccountBalance(r.Context(), account)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"balance": balance,
	})
}

// GetTransactionHistory returns a page of the caller's custody movements.
// GET /accounts/me/transactions
func (h *AccountHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	account, err := callerAccount(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	limit, offset := pagination(r)

	transactions, total, err := h.statements.AccountHistory(r.Context(), account, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}
