// Package report assembles per-month views from stored rows for renderers.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nadmax/fitsync/internal/health"
	"github.com/nadmax/fitsync/internal/metrics"
	"github.com/nadmax/fitsync/internal/normalize"
	"github.com/nadmax/fitsync/internal/repository"
)

type MonthView struct {
	Year  int                         `json:"year"`
	Month time.Month                  `json:"month"`
	Days  int                         `json:"days"`
	Sleep []health.NormalizedDaySleep `json:"sleep"`
	Steps []health.StepSample         `json:"steps"`
}

// MonthBounds returns the first and last day of the month.
func MonthBounds(year int, month time.Month) (health.Date, health.Date) {
	first := health.NewDate(year, month, 1)
	days := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return first, first.AddDays(days - 1)
}

type Service struct {
	store repository.Store
}

// NewService accepts a nil store; every view then fails with ErrNoDataSource.
func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// BuildMonthView reads the month's rows and normalizes them. A month with
// only some days stored is returned as is; a malformed row fails the whole view.
func (s *Service) BuildMonthView(ctx context.Context, year int, month time.Month) (*MonthView, error) {
	view, err := s.buildMonthView(ctx, year, month)
	metrics.RecordMonthView(outcome(err))
	return view, err
}

func (s *Service) buildMonthView(ctx context.Context, year int, month time.Month) (*MonthView, error) {
	if month < time.January || month > time.December {
		return nil, &health.ValidationError{Field: "month", Message: fmt.Sprintf("%d is not a month", month)}
	}
	if year < 1 || year > 9999 {
		return nil, &health.ValidationError{Field: "year", Message: fmt.Sprintf("%d is out of range", year)}
	}

	first, last := MonthBounds(year, month)
	scope := health.NewDateRange(first, last).String()

	if s.store == nil {
		return nil, &health.PersistenceError{Op: "build month view", Scope: scope, Err: health.ErrNoDataSource}
	}

	sleepRows, err := s.store.SleepInRange(ctx, first, last)
	if err != nil {
		return nil, err
	}

	stepRows, err := s.store.StepsInRange(ctx, first, last)
	if err != nil {
		return nil, err
	}

	if len(sleepRows) == 0 && len(stepRows) == 0 {
		return nil, &health.PersistenceError{Op: "build month view", Scope: scope, Err: health.ErrNoRows}
	}

	sleep, err := normalize.SleepRows(sleepRows)
	if err != nil {
		return nil, err
	}

	steps, err := normalize.Steps(stepRows)
	if err != nil {
		return nil, err
	}

	return &MonthView{
		Year:  year,
		Month: month,
		Days:  first.DaysUntil(last) + 1,
		Sleep: sleep,
		Steps: steps,
	}, nil
}

func outcome(err error) string {
	var nErr *health.NormalizationError
	switch {
	case err == nil:
		return metrics.OutcomeSucceeded
	case errors.Is(err, health.ErrNoDataSource):
		return "no_data_source"
	case errors.Is(err, health.ErrNoRows):
		return "no_rows"
	case errors.As(err, &nErr):
		return "malformed"
	default:
		return metrics.OutcomeFailed
	}
}
