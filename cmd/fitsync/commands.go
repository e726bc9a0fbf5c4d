package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nadmax/fitsync/internal/api"
	"github.com/nadmax/fitsync/internal/fetch"
	"github.com/nadmax/fitsync/internal/health"
	"github.com/nadmax/fitsync/internal/middleware"
	"github.com/nadmax/fitsync/internal/report"
)

type FetchCmd struct {
	Start health.Date `help:"First day to fetch (YYYY-MM-DD)." required:""`
	End   health.Date `help:"Last day to fetch (YYYY-MM-DD). Defaults to the start day."`
	Quiet bool        `help:"Do not print per-day progress." short:"q"`
}

func (c *FetchCmd) Run(app *App) error {
	ctx := context.Background()

	end := c.End
	if end.IsZero() {
		end = c.Start
	}

	store, err := app.openWritableStore(ctx)
	if err != nil {
		return err
	}
	defer app.closeStore(store)

	var progress fetch.ProgressReporter
	if !c.Quiet {
		progress = progressPrinter(app.Out)
	}

	orchestrator, err := app.newOrchestrator(store, progress)
	if err != nil {
		return err
	}

	batch, err := orchestrator.Run(ctx, health.NewDateRange(c.Start, end))
	if err != nil {
		return err
	}

	_, total := batch.Progress()
	fmt.Fprintf(app.Out, "Fetched %d days (%s)\n", total, batch.Range)
	return nil
}

// progressPrinter serializes writes to w; tasks finish on several goroutines.
func progressPrinter(w io.Writer) fetch.ProgressReporter {
	var mu sync.Mutex
	return fetch.ProgressFunc(func(task fetch.Task, finished, total int) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "[%d/%d] %s %s\n", finished, total, task.Date, task.Status)
	})
}

type MonthCmd struct {
	Year   int    `help:"Year of the month to show." required:""`
	Month  int    `help:"Month number (1-12)." required:""`
	Out    string `help:"Write the view to this file instead of stdout." type:"path"`
	Indent bool   `help:"Indent the JSON output."`
}

func (c *MonthCmd) Run(app *App) error {
	store, err := app.openStore()
	if err != nil {
		return err
	}
	defer app.closeStore(store)

	view, err := report.NewService(store).BuildMonthView(context.Background(), c.Year, time.Month(c.Month))
	if err != nil {
		return err
	}

	w := app.Out
	if c.Out != "" {
		f, err := os.Create(c.Out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				app.Logger.Warn("failed to close output file", "path", c.Out, "error", err)
			}
		}()
		w = f
	}

	return report.JSONRenderer{Indent: c.Indent}.Render(w, view)
}

type ServeCmd struct {
	Addr string `help:"Listen address. Defaults to FITSYNC_HTTP_ADDR."`
}

func (c *ServeCmd) Run(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.openWritableStore(ctx)
	if err != nil {
		return err
	}
	defer app.closeStore(store)

	orchestrator, err := app.newOrchestrator(store, nil)
	if err != nil {
		return err
	}

	addr := c.Addr
	if addr == "" {
		addr = app.Config.HTTPAddr
	}

	handler := api.NewAPI(orchestrator, report.NewService(store), app.Logger)
	server := &http.Server{
		Addr:              addr,
		Handler:           middleware.MetricsMiddleware(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("server starting", "addr", addr, "store", app.Config.StoreDriver)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
