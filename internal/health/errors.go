package health

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoDataSource = errors.New("no data source configured, fetch data first")
	ErrNoRows       = errors.New("no rows in range")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// RateLimitedError carries retry guidance; the orchestrator never retries on its own.
type RateLimitedError struct {
	Date     Date
	Cooldown time.Duration
	RetryAt  time.Time
	Err      error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("data for %s could not be fetched: too many requests to the server, retry after %s (at %s)",
		e.Date, e.Cooldown, e.RetryAt.Format(time.RFC3339))
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

type FetchFailedError struct {
	Date  Date
	Stage string
	Err   error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("%s data for %s could not be fetched: %v", e.Stage, e.Date, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

// PersistenceError names either a single date or a range in Scope.
type PersistenceError struct {
	Op    string
	Scope string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s for %s failed: %v", e.Op, e.Scope, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type NormalizationError struct {
	Date   string
	Reason string
	Err    error
}

func (e *NormalizationError) Error() string {
	msg := fmt.Sprintf("malformed data for %s: %s", e.Date, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NormalizationError) Unwrap() error { return e.Err }
