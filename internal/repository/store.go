// Package repository persists raw step counts and sleep sessions keyed by
// calendar date. Writes are upserts so a date holds exactly one row per table,
// whatever order concurrent writers finish in.
package repository

import (
	"context"

	"github.com/nadmax/fitsync/internal/health"
)

type Store interface {
	UpsertSteps(ctx context.Context, date health.Date, stepCount int) error
	UpsertSleep(ctx context.Context, date health.Date, sessions []health.RawSession) error
	// StepsInRange and SleepInRange return rows for start..end inclusive, ordered by date.
	StepsInRange(ctx context.Context, start, end health.Date) ([]health.StepRow, error)
	SleepInRange(ctx context.Context, start, end health.Date) ([]health.SleepRow, error)
	Close() error
}

// SchemaManager is implemented by stores whose tables must exist before the
// first write. The read path never creates them.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

func upsertError(table string, date health.Date, err error) error {
	return &health.PersistenceError{Op: "upsert " + table, Scope: date.String(), Err: err}
}

func rangeError(table string, start, end health.Date, err error) error {
	return &health.PersistenceError{
		Op:    "retrieve " + table + " rows",
		Scope: health.NewDateRange(start, end).String(),
		Err:   err,
	}
}
