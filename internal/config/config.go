// Package config loads the process configuration once from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	AccessToken string `env:"FITSYNC_ACCESS_TOKEN"`
	APIBaseURL  string `env:"FITSYNC_API_BASE_URL" default:"https://api.fitbit.com"`

	StoreDriver string `env:"FITSYNC_STORE_DRIVER" default:"sqlite"`
	DatabaseURL string `env:"FITSYNC_DATABASE_URL" default:"./database/fitsync.db"`
	RedisAddr   string `env:"FITSYNC_REDIS_ADDR" default:"localhost:6379"`

	Parallelism       int           `env:"FITSYNC_PARALLELISM" default:"50"`
	RequestTimeout    time.Duration `env:"FITSYNC_REQUEST_TIMEOUT" default:"10s"`
	RateLimitCooldown time.Duration `env:"FITSYNC_RATE_LIMIT_COOLDOWN" default:"1h"`
	MaxRangeDays      int           `env:"FITSYNC_MAX_RANGE_DAYS" default:"100"`
	RequestsPerSecond float64       `env:"FITSYNC_REQUESTS_PER_SECOND" default:"0"`
	RequestBurst      int           `env:"FITSYNC_REQUEST_BURST" default:"10"`

	LogDir   string `env:"FITSYNC_LOG_DIR" default:"./error_log"`
	LogLevel string `env:"FITSYNC_LOG_LEVEL" default:"warn"`
	Debug    bool   `env:"FITSYNC_DEBUG" default:"false"`

	HTTPAddr string `env:"FITSYNC_HTTP_ADDR" default:":8080"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case DriverSQLite, DriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("FITSYNC_DATABASE_URL is required")
		}
	case DriverRedis:
		if cfg.RedisAddr == "" {
			return errors.New("FITSYNC_REDIS_ADDR is required")
		}
	default:
		return fmt.Errorf("FITSYNC_STORE_DRIVER must be one of sqlite, postgres, redis, got %q", cfg.StoreDriver)
	}

	if cfg.Parallelism < 1 {
		return fmt.Errorf("FITSYNC_PARALLELISM must be at least 1, got %d", cfg.Parallelism)
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("FITSYNC_REQUEST_TIMEOUT must be positive")
	}
	if cfg.RateLimitCooldown <= 0 {
		return errors.New("FITSYNC_RATE_LIMIT_COOLDOWN must be positive")
	}
	if cfg.MaxRangeDays < 1 || cfg.MaxRangeDays > 100 {
		return fmt.Errorf("FITSYNC_MAX_RANGE_DAYS must be between 1 and 100, got %d", cfg.MaxRangeDays)
	}
	if cfg.RequestsPerSecond < 0 {
		return errors.New("FITSYNC_REQUESTS_PER_SECOND must not be negative")
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("FITSYNC_LOG_LEVEL: %w", err)
	}

	return nil
}

// RequireAccessToken is checked only by commands that call the remote API.
func (c *Config) RequireAccessToken() error {
	if c.AccessToken == "" {
		return errors.New("FITSYNC_ACCESS_TOKEN is required")
	}
	return nil
}
