// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"yieldlock/pkg/db"
)

// Store and custody drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverLedger   = "ledger"
	DriverWallet   = "wallet"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string
	LogLevel    string
	StoreDriver string
	DB          db.Config

	AdminAccount string
	JWTSecret    string
	CronKey      string

	EarlyWithdrawalPenalty int
	MinLockDays            int
	MaxLockDays            int

	SweepInterval  time.Duration
	SweepWorkers   int
	CustodyDriver  string
	CustodyTimeout time.Duration

	AdvisorURL         string
	AdvisorTimeout     time.Duration
	DefaultRiskProfile string

	Redis RedisConfig
}

// RedisConfig configures the shared sweep lease. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoadConfig loads configuration from environment variables, after merging in
// a .env file from the working directory when one exists. Variables already set
// in the environment win over the file.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds an AppConfig from the process environment only.
func FromEnv() (*AppConfig, error) {
	var err error
	cfg := &AppConfig{
		ServerPort:         getString("SERVER_PORT", "8080"),
		LogLevel:           getString("LOG_LEVEL", "info"),
		StoreDriver:        getString("STORE_DRIVER", DriverMemory),
		AdminAccount:       os.Getenv("ADMIN_ACCOUNT"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CronKey:            os.Getenv("CRON_KEY"),
		CustodyDriver:      getString("CUSTODY_DRIVER", DriverLedger),
		AdvisorURL:         os.Getenv("ADVISOR_URL"),
		DefaultRiskProfile: getString("DEFAULT_RISK_PROFILE", "moderate"),
		DB: db.Config{
			Host:     getString("DB_HOST", "localhost"),
			User:     getString("DB_USER", "user"),
			Password: getString("DB_PASSWORD", "password"),
			DBName:   getString("DB_NAME", "yieldlock"),
			SSLMode:  getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}

	if cfg.DB.Port, err = getInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.EarlyWithdrawalPenalty, err = getInt("EARLY_WITHDRAWAL_PENALTY", 5); err != nil {
		return nil, err
	}
	if cfg.MinLockDays, err = getInt("MIN_LOCK_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.MaxLockDays, err = getInt("MAX_LOCK_DAYS", 365); err != nil {
		return nil, err
	}
	if cfg.SweepWorkers, err = getInt("SWEEP_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.CustodyTimeout, err = getDuration("CUSTODY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AdvisorTimeout, err = getDuration("ADVISOR_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.CustodyDriver {
	case DriverLedger:
	case DriverWallet:
		if c.StoreDriver != DriverPostgres {
			return fmt.Errorf("CUSTODY_DRIVER %q requires STORE_DRIVER %q", DriverWallet, DriverPostgres)
		}
	default:
		return fmt.Errorf("invalid CUSTODY_DRIVER %q", c.CustodyDriver)
	}
	if c.EarlyWithdrawalPenalty < 0 || c.EarlyWithdrawalPenalty > 100 {
		return fmt.Errorf("invalid EARLY_WITHDRAWAL_PENALTY: %d", c.EarlyWithdrawalPenalty)
	}
	if c.MinLockDays <= 0 || c.MinLockDays > c.MaxLockDays {
		return fmt.Errorf("invalid lock window: MIN_LOCK_DAYS=%d MAX_LOCK_DAYS=%d", c.MinLockDays, c.MaxLockDays)
	}
	return nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
