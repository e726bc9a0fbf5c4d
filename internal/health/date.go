// Package health defines the physiological time series model shared by the fetch,
// persistence and reporting layers: calendar dates, step samples, sleep sessions
// and the typed errors surfaced to callers.
package health

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"

	// MaxRangeDays bounds a single fetch batch.
	MaxRangeDays = 100
)

// Date is a calendar day with no time-of-day or zone. Day arithmetic is done on
// the wall clock the remote source reports, anchored in UTC.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Midnight returns 00:00:00 of the day.
func (d Date) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Before(o Date) bool { return d.Midnight().Before(o.Midnight()) }
func (d Date) After(o Date) bool  { return d.Midnight().After(o.Midnight()) }
func (d Date) IsZero() bool       { return d == Date{} }

// DaysUntil returns o - d in whole days.
func (d Date) DaysUntil(o Date) int {
	return int(o.Midnight().Sub(d.Midnight()).Hours() / 24)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is inclusive on both ends.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewDateRange(start, end Date) DateRange {
	return DateRange{Start: start, End: end}
}

func (r DateRange) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

func (r DateRange) Dates() []Date {
	n := r.Days()
	if n <= 0 {
		return nil
	}

	dates := make([]Date, 0, n)
	for i := range n {
		dates = append(dates, r.Start.AddDays(i))
	}
	return dates
}

// Validate checks ordering and the per-batch day limit.
func (r DateRange) Validate(maxDays int) error {
	if r.Start.IsZero() || r.End.IsZero() {
		return &ValidationError{Field: "range", Message: "start and end dates are required"}
	}
	if r.End.Before(r.Start) {
		return &ValidationError{
			Field:   "range",
			Message: fmt.Sprintf("end date %s is before start date %s", r.End, r.Start),
		}
	}
	if days := r.Days(); days > maxDays {
		return &ValidationError{
			Field:   "range",
			Message: fmt.Sprintf("range %s spans %d days, at most %d can be fetched at once", r, days, maxDays),
		}
	}
	return nil
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
