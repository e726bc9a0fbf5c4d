// Package source retrieves raw per-day step counts and sleep sessions from the
// remote activity tracker API.
package source

import (
	"context"
	"errors"

	"github.com/nadmax/fitsync/internal/health"
)

var (
	// ErrRateLimited marks a response telling the caller to back off.
	ErrRateLimited = errors.New("rate limited by remote source")
	// ErrTransient marks failures that may succeed on a later attempt.
	ErrTransient = errors.New("transient remote source failure")
)

type Source interface {
	IntradaySteps(ctx context.Context, date health.Date) (int, error)
	// SleepSessions returns the day's sessions oldest first.
	SleepSessions(ctx context.Context, date health.Date) ([]health.RawSession, error)
}
