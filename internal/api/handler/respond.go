// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"yieldlock/internal/api/middleware"
	"yieldlock/internal/util"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// Clock returns the current time; handlers use it for every operation's "now".
type Clock func() time.Time

// responder holds the JSON helpers shared by all handlers.
type responder struct {
	logger *slog.Logger
}

// Helper function to send JSON responses.
func (h responder) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h responder) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInsufficientFunds):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient funds"
	case util.IsError(err, util.ErrTransferFailed):
		statusCode = http.StatusBadGateway
		message = util.ErrTransferFailed.Error()
	case util.IsError(err, util.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		message = util.ErrUnauthorized.Error()
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	default:
		switch util.KindOf(err) {
		case util.KindValidation:
			statusCode = http.StatusBadRequest
			message = err.Error()
		case util.KindAuthorization:
			statusCode = http.StatusForbidden
			message = err.Error()
		case util.KindState:
			statusCode = http.StatusConflict
			message = err.Error()
		default:
			h.logger.Error("Unhandled service error", "error", err)
		}
	}

	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// decode reads a JSON request body into dst.
func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return util.ErrInvalidInput
	}
	return nil
}

func vaultIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "vaultID"), 10, 64)
	if err != nil || id < 0 {
		return 0, util.ErrInvalidInput
	}
	return id, nil
}

func callerAccount(r *http.Request) (string, error) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		return "", util.ErrUnauthorized
	}
	return account, nil
}

// pagination parses limit and offset, falling back to 10 and 0.
func pagination(r *http.Request) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// wholeUnits rejects amounts with a fractional part. Amounts travel in the
// smallest currency unit.
func wholeUnits(amounts ...decimal.Decimal) error {
	for _, a := range amounts {
		if !a.IsInteger() {
			return util.ErrInvalidInput
		}
	}
	return nil
}
