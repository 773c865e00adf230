// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"yieldlock/internal/api/handler"
	auth "yieldlock/internal/api/middleware"
)

// RouterConfig carries the credentials the route groups are guarded with.
type RouterConfig struct {
	JWTSecret []byte
	CronKey   string
}

// NewRouter sets up and returns a new HTTP router. accountHandler is nil when
// custody keeps no per-account statements.
func NewRouter(
	cfg RouterConfig,
	vaultHandler *handler.VaultHandler,
	adminHandler *handler.AdminHandler,
	internalHandler *handler.InternalHandler,
	accountHandler *handler.AccountHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Owner routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticator(cfg.JWTSecret, logger))

		r.Route("/vaults", func(r chi.Router) {
			r.Post("/", vaultHandler.CreateVault)
			r.Get("/{vaultID}", vaultHandler.GetVault)
			r.Get("/{vaultID}/progress", vaultHandler.GetProgress)
			r.Get("/{vaultID}/events", vaultHandler.ListEvents)
			r.Post("/{vaultID}/deposit", vaultHandler.Deposit)
			r.Post("/{vaultID}/withdraw", vaultHandler.Withdraw)
			r.Post("/{vaultID}/strategy", vaultHandler.RefreshStrategy)
		})
		r.Get("/accounts/me/vaults", vaultHandler.ListMyVaults)
		if accountHandler != nil {
			r.Get("/accounts/me/balance", accountHandler.GetWalletBalance)
			r.Get("/accounts/me/transactions", accountHandler.GetTransactionHistory)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Get("/settings", adminHandler.GetSettings)
			r.Put("/penalty", adminHandler.SetPenalty)
			r.Put("/lock-limits", adminHandler.SetLockLimits)
		})
	})

	// Scheduler and yield feed
	r.Route("/internal", func(r chi.Router) {
		r.Use(auth.CronKey(cfg.CronKey))
		r.Post("/sweep", internalHandler.Sweep)
		r.Post("/vaults/{vaultID}/yield", internalHandler.AccrueYield)
	})

	return r
}
