// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	redis "github.com/redis/go-redis/v9"

	"yieldlock/internal/advisor"
	router "yieldlock/internal/api"
	"yieldlock/internal/api/handler"
	"yieldlock/internal/config"
	"yieldlock/internal/custody"
	"yieldlock/internal/repository"
	"yieldlock/internal/repository/memory"
	"yieldlock/internal/repository/postgres"
	"yieldlock/internal/service"
	"yieldlock/internal/sweeper"
	"yieldlock/internal/util"
	"yieldlock/internal/yield"
	"yieldlock/pkg/db"
)

// sweepLeaseKey is the Redis key shared by all sweeping processes.
const sweepLeaseKey = "yieldlock:sweep:lease"

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	VaultRepository repository.VaultRepository
	EventRepository repository.EventRepository

	// Custody
	Custody    custody.Custody
	Treasury   custody.Treasury
	Statements custody.Statements

	// Services
	Policy       *service.Policy
	VaultService service.VaultService
	Sweeper      *sweeper.Sweeper

	// HTTP API
	HTTPHandler http.Handler

	// Now is the clock of every HTTP operation. Tests replace it.
	Now func() time.Time
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{Now: time.Now}
}

// Initialize loads the configuration from the environment and initializes all
// application components.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWithConfig(ctx, cfg)
}

// InitializeWithConfig initializes all application components from cfg.
func (app *Application) InitializeWithConfig(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg

	// 1. Initialize Logger
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "store", cfg.StoreDriver, "custody", cfg.CustodyDriver)

	// 2. Storage
	if err := app.initStorage(ctx); err != nil {
		return err
	}

	// 3. Custody
	if err := app.initCustody(); err != nil {
		return err
	}

	// 4. Services
	policy, err := service.NewPolicy(cfg.AdminAccount, service.Settings{
		EarlyWithdrawalPenalty: uint8(cfg.EarlyWithdrawalPenalty),
		MinLockDuration:        time.Duration(cfg.MinLockDays) * 24 * time.Hour,
		MaxLockDuration:        time.Duration(cfg.MaxLockDays) * 24 * time.Hour,
	}, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize policy: %w", err)
	}
	app.Policy = policy

	var adv advisor.Advisor = advisor.NewHeuristic(cfg.DefaultRiskProfile)
	if cfg.AdvisorURL != "" {
		adv = advisor.NewHTTPClient(cfg.AdvisorURL, cfg.AdvisorTimeout)
	}

	app.VaultService = service.NewVaultService(service.Dependencies{
		Vaults:         app.VaultRepository,
		Events:         app.EventRepository,
		Custody:        app.Custody,
		Treasury:       app.Treasury,
		Advisor:        adv,
		Feed:           yield.APYFeed{},
		Policy:         app.Policy,
		AdvisorTimeout: cfg.AdvisorTimeout,
		Logger:         app.Logger,
	})

	var lease sweeper.Lease
	if cfg.Redis.Addr != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		lease = sweeper.NewRedisLease(app.Redis, sweepLeaseKey)
		app.Logger.Info("Redis sweep lease enabled.", "addr", cfg.Redis.Addr)
	}
	app.Sweeper = sweeper.New(app.VaultService, lease, sweeper.Config{
		Interval: cfg.SweepInterval,
		Workers:  cfg.SweepWorkers,
	}, app.Logger)
	app.Logger.Info("Services initialized.")

	// 5. HTTP Handlers and Router
	now := func() time.Time { return app.Now() }
	vaultHandler := handler.NewVaultHandler(app.VaultService, now, app.Logger)
	adminHandler := handler.NewAdminHandler(app.Policy, app.VaultService, app.Logger)
	internalHandler := handler.NewInternalHandler(app.Sweeper, app.VaultService, now, app.Logger)
	var accountHandler *handler.AccountHandler
	if app.Statements != nil {
		accountHandler = handler.NewAccountHandler(app.Statements, app.Logger)
	}
	app.HTTPHandler = router.NewRouter(router.RouterConfig{
		JWTSecret: []byte(cfg.JWTSecret),
		CronKey:   cfg.CronKey,
	}, vaultHandler, adminHandler, internalHandler, accountHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

func (app *Application) initStorage(ctx context.Context) error {
	if app.Config.StoreDriver != config.DriverPostgres {
		app.VaultRepository = memory.NewVaultRepository()
		app.EventRepository = memory.NewEventRepository()
		app.Logger.Info("In-memory vault store initialized.")
		return nil
	}

	database, err := db.NewPostgresDB(ctx, app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	app.VaultRepository = postgres.NewVaultRepository(app.DB)
	app.EventRepository = postgres.NewEventRepository(app.DB)
	app.Logger.Info("Repositories initialized.")
	return nil
}

func (app *Application) initCustody() error {
	switch app.Config.CustodyDriver {
	case config.DriverWallet:
		if app.DB == nil {
			return fmt.Errorf("wallet custody requires the postgres store")
		}
		wallets := custody.NewWalletCustody(
			db.NewTxManager(app.DB),
			postgres.NewWalletRepository(),
			postgres.NewTransactionRepository(),
		)
		app.Custody = custody.WithTimeout(wallets, app.Config.CustodyTimeout)
		app.Treasury = wallets
		app.Statements = wallets
	default:
		// Unknown payers and the yield reserve are accepted as external
		// funding sources.
		ledger := custody.NewLedger(custody.DefaultTreasuryAccount, false)
		app.Custody = custody.WithTimeout(ledger, app.Config.CustodyTimeout)
		app.Treasury = ledger
	}
	app.Logger.Info("Custody initialized.", "driver", app.Config.CustodyDriver)
	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis client", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
