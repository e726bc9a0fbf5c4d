package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/nadmax/fitsync/internal/config"
	"github.com/nadmax/fitsync/internal/fetch"
	"github.com/nadmax/fitsync/internal/repository"
	"github.com/nadmax/fitsync/internal/source"
)

// App carries what every command needs. It is built once in main.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Out    io.Writer
}

func (a *App) openStore() (repository.Store, error) {
	switch a.Config.StoreDriver {
	case config.DriverSQLite:
		store, err := repository.NewSQLiteStore(a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres:
		store, err := repository.NewPostgresStore(a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverRedis:
		store, err := repository.NewRedisStore(a.Config.RedisAddr)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
	}
}

// openWritableStore also creates the tables, which only the write path may do.
func (a *App) openWritableStore(ctx context.Context) (repository.Store, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	if sm, ok := store.(repository.SchemaManager); ok {
		if err := sm.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

func (a *App) newOrchestrator(store repository.Store, progress fetch.ProgressReporter) (*fetch.Orchestrator, error) {
	if err := a.Config.RequireAccessToken(); err != nil {
		return nil, err
	}

	client := source.NewFitbitClient(source.FitbitConfig{
		BaseURL:           a.Config.APIBaseURL,
		AccessToken:       a.Config.AccessToken,
		RequestsPerSecond: a.Config.RequestsPerSecond,
		Burst:             a.Config.RequestBurst,
		Logger:            a.Logger,
	})

	return fetch.NewOrchestrator(client, store, fetch.Config{
		Parallelism:  a.Config.Parallelism,
		Timeout:      a.Config.RequestTimeout,
		Cooldown:     a.Config.RateLimitCooldown,
		MaxRangeDays: a.Config.MaxRangeDays,
		Logger:       a.Logger,
		Progress:     progress,
	}), nil
}

func (a *App) closeStore(store repository.Store) {
	if err := store.Close(); err != nil {
		a.Logger.Warn("failed to close store", "error", err)
	}
}
