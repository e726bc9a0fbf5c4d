// Package fetch runs per-day retrieval of step counts and sleep sessions under
// bounded concurrency and persists each finished day as soon as it is fetched.
package fetch

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nadmax/fitsync/internal/health"
	"github.com/nadmax/fitsync/internal/metrics"
	"github.com/nadmax/fitsync/internal/repository"
	"github.com/nadmax/fitsync/internal/source"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultParallelism = 50
	DefaultTimeout     = 10 * time.Second
	DefaultCooldown    = time.Hour
)

// ProgressReporter is told about every finished task. It may be called from
// several goroutines at once.
type ProgressReporter interface {
	TaskFinished(task Task, finished, total int)
}

type ProgressFunc func(task Task, finished, total int)

func (f ProgressFunc) TaskFinished(task Task, finished, total int) {
	f(task, finished, total)
}

type Config struct {
	Parallelism  int
	Timeout      time.Duration
	Cooldown     time.Duration
	MaxRangeDays int
	Clock        clockwork.Clock
	Logger       *log.Logger
	Progress     ProgressReporter
}

type Orchestrator struct {
	source source.Source
	store  repository.Store
	cfg    Config
}

func NewOrchestrator(src source.Source, store repository.Store, cfg Config) *Orchestrator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = health.MaxRangeDays
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	return &Orchestrator{
		source: src,
		store:  store,
		cfg:    cfg,
	}
}

// Submit validates r and starts one task per date in the background. The
// batch is not tied to ctx cancellation; every task runs to completion.
func (o *Orchestrator) Submit(ctx context.Context, r health.DateRange) (*Batch, error) {
	if err := r.Validate(o.cfg.MaxRangeDays); err != nil {
		return nil, err
	}

	b := newBatch(uuid.New().String(), r, o.cfg.Clock.Now())
	metrics.RecordBatchSubmitted(len(b.tasks))
	o.cfg.Logger.Debug("batch submitted", "batch", b.ID, "range", r, "days", len(b.tasks))

	go o.run(context.WithoutCancel(ctx), b)

	return b, nil
}

// Run submits r and waits for the batch to finish.
func (o *Orchestrator) Run(ctx context.Context, r health.DateRange) (*Batch, error) {
	b, err := o.Submit(ctx, r)
	if err != nil {
		return nil, err
	}
	return b, b.Wait()
}

func (o *Orchestrator) run(ctx context.Context, b *Batch) {
	var g errgroup.Group
	g.SetLimit(o.cfg.Parallelism)

	for _, t := range b.tasks {
		g.Go(func() error {
			o.execute(ctx, b, t)
			return nil
		})
	}
	_ = g.Wait()

	if err := b.finish(); err != nil {
		metrics.RecordBatchFinished(metrics.OutcomeFailed)
		o.cfg.Logger.Debug("batch finished with failures", "batch", b.ID, "error", err)
		return
	}
	metrics.RecordBatchFinished(metrics.OutcomeSucceeded)
	o.cfg.Logger.Debug("batch finished", "batch", b.ID)
}

func (o *Orchestrator) execute(ctx context.Context, b *Batch, t *Task) {
	startedAt := o.cfg.Clock.Now()
	b.start(t, startedAt)
	metrics.RecordTaskStarted()

	err := o.fetchDay(ctx, t.Date)

	completedAt := o.cfg.Clock.Now()
	snapshot, finished := b.complete(t, err, completedAt)

	outcome := metrics.OutcomeSucceeded
	var rateLimited *health.RateLimitedError
	switch {
	case err == nil:
	case errors.As(err, &rateLimited):
		outcome = metrics.OutcomeRateLimited
		o.cfg.Logger.Warn("rate limited", "batch", b.ID, "date", t.Date, "retry_at", rateLimited.RetryAt)
	default:
		outcome = metrics.OutcomeFailed
		o.cfg.Logger.Error("fetch failed", "batch", b.ID, "date", t.Date, "stage", stageOf(err), "error", err)
	}
	metrics.RecordTaskFinished(outcome, completedAt.Sub(startedAt))

	if o.cfg.Progress != nil {
		o.cfg.Progress.TaskFinished(snapshot, finished, len(b.tasks))
	}
}

func (o *Orchestrator) fetchDay(ctx context.Context, date health.Date) error {
	stepsCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	steps, err := o.source.IntradaySteps(stepsCtx, date)
	cancel()
	if err != nil {
		return o.classify(date, "steps", err)
	}

	sleepCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	sessions, err := o.source.SleepSessions(sleepCtx, date)
	cancel()
	if err != nil {
		return o.classify(date, "sleep", err)
	}

	err = o.store.UpsertSteps(ctx, date, steps)
	metrics.RecordUpsert("steps", err)
	if err != nil {
		return saveError("steps", date, err)
	}

	err = o.store.UpsertSleep(ctx, date, sessions)
	metrics.RecordUpsert("sleep", err)
	if err != nil {
		return saveError("sleep", date, err)
	}

	return nil
}

func (o *Orchestrator) classify(date health.Date, stage string, err error) error {
	if errors.Is(err, source.ErrRateLimited) {
		return &health.RateLimitedError{
			Date:     date,
			Cooldown: o.cfg.Cooldown,
			RetryAt:  o.cfg.Clock.Now().Add(o.cfg.Cooldown),
			Err:      err,
		}
	}
	return &health.FetchFailedError{Date: date, Stage: stage, Err: err}
}

func saveError(table string, date health.Date, err error) error {
	var pErr *health.PersistenceError
	if errors.As(err, &pErr) {
		return err
	}
	return &health.PersistenceError{Op: "upsert " + table, Scope: date.String(), Err: err}
}

func stageOf(err error) string {
	var fErr *health.FetchFailedError
	if errors.As(err, &fErr) {
		return fErr.Stage
	}
	return "save"
}
