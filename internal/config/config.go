package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seer-points/seer_points/internal/ledger"
)

const (
	defaultAppName        = "SeerPoints"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultMutationRate   = 30
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AdminKeyHash   string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	MutationRate   int

	MinAmount       int64
	MaxAmount       int64
	TransferCap     int64
	LockTimeout     time.Duration
	StalePendingAge time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	limits := ledger.DefaultLimits()
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AdminKeyHash:    os.Getenv("ADMIN_KEY_HASH"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		MutationRate:    defaultMutationRate,
		MinAmount:       limits.MinAmount,
		MaxAmount:       limits.MaxAmount,
		TransferCap:     limits.TransferCap,
		LockTimeout:     limits.LockTimeout,
		StalePendingAge: limits.StalePendingAge,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = durationEnv("LOCK_TIMEOUT", cfg.LockTimeout); err != nil {
		return Config{}, err
	}
	if cfg.StalePendingAge, err = durationEnv("STALE_PENDING_AGE", cfg.StalePendingAge); err != nil {
		return Config{}, err
	}
	if cfg.MinAmount, err = int64Env("MIN_AMOUNT", cfg.MinAmount); err != nil {
		return Config{}, err
	}
	if cfg.MaxAmount, err = int64Env("MAX_AMOUNT", cfg.MaxAmount); err != nil {
		return Config{}, err
	}
	if cfg.TransferCap, err = int64Env("TRANSFER_CAP", cfg.TransferCap); err != nil {
		return Config{}, err
	}
	rate, err := int64Env("MUTATION_RATE_LIMIT", int64(cfg.MutationRate))
	if err != nil {
		return Config{}, err
	}
	cfg.MutationRate = int(rate)

	if cfg.MinAmount > cfg.MaxAmount {
		return Config{}, fmt.Errorf("MIN_AMOUNT %d exceeds MAX_AMOUNT %d", cfg.MinAmount, cfg.MaxAmount)
	}

	if cfg.DatabaseURL == "" && cfg.AppEnv != defaultAppEnv {
		return Config{}, fmt.Errorf("DATABASE_URL must be set outside development")
	}

	return cfg, nil
}

// Limits assembles the ledger limits from the loaded configuration.
func (c Config) Limits() ledger.Limits {
	return ledger.Limits{
		MinAmount:       c.MinAmount,
		MaxAmount:       c.MaxAmount,
		TransferCap:     c.TransferCap,
		LockTimeout:     c.LockTimeout,
		StalePendingAge: c.StalePendingAge,
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
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

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
