// Package normalize turns stored raw rows into calendar-day aligned series.
package normalize

import (
	"fmt"
	"slices"
	"time"

	"github.com/nadmax/fitsync/internal/health"
)

// SleepDay is the raw sleep stored under one date, sessions in storage order.
type SleepDay struct {
	Date     string
	Sessions []health.RawSession
}

// SleepRows decodes stored sleep rows and normalizes them.
func SleepRows(rows []health.SleepRow) ([]health.NormalizedDaySleep, error) {
	days := make([]SleepDay, 0, len(rows))
	for _, row := range rows {
		sessions, err := health.DecodeSessions(row.Sessions)
		if err != nil {
			return nil, &health.NormalizationError{Date: row.Date, Reason: "stored sleep sessions are not decodable", Err: err}
		}
		days = append(days, SleepDay{Date: row.Date, Sessions: sessions})
	}
	return Sleep(days)
}

// Sleep splits every session at midnight and returns one timeline per calendar
// day in ascending date order. A session that crosses midnight contributes a
// tail clipped at the end of its first day and a head on the following day
// that is gap-filled from 00:00:00 with the stage active at midnight. When the
// two days fall in different months the tail is dropped.
//
// Segments emitted for the same day are concatenated in the order the
// sessions were supplied; they are not re-sorted by time.
func Sleep(days []SleepDay) ([]health.NormalizedDaySleep, error) {
	acc := newDayAccumulator()

	for _, day := range days {
		date, err := health.ParseDate(day.Date)
		if err != nil {
			return nil, &health.NormalizationError{Date: day.Date, Reason: "invalid row date", Err: err}
		}

		for i, raw := range day.Sessions {
			session, err := parseSession(raw)
			if err != nil {
				return nil, &health.NormalizationError{
					Date:   day.Date,
					Reason: fmt.Sprintf("session %d", i+1),
					Err:    err,
				}
			}

			if len(session) == 0 {
				acc.add(date, nil)
				continue
			}

			for _, part := range splitSession(session) {
				acc.add(part.Date, part.Segments)
			}
		}
	}

	return acc.result(), nil
}

func parseSession(raw health.RawSession) (health.SleepSession, error) {
	session, err := raw.Parse()
	if err != nil {
		return nil, err
	}

	for i := 1; i < len(session); i++ {
		if session[i].Start.Before(session[i-1].Start) {
			return nil, fmt.Errorf("segment at %s starts before the preceding segment at %s",
				session[i].Start.Format(health.SegmentTimeLayout), session[i-1].Start.Format(health.SegmentTimeLayout))
		}
	}
	return session, nil
}

// splitSession expects a non-empty session and returns at most two day parts,
// the previous day first.
func splitSession(session health.SleepSession) []health.NormalizedDaySleep {
	last := session[len(session)-1]
	closing := health.SleepSegment{Start: last.End(), Stage: last.Stage}

	currentDay := closing.Date()
	var previous, current []health.SleepSegment
	for _, seg := range session {
		if seg.Date() == currentDay {
			current = append(current, seg)
		} else {
			previous = append(previous, seg)
		}
	}
	current = append(current, closing)

	if len(previous) == 0 {
		return []health.NormalizedDaySleep{{Date: currentDay, Segments: current}}
	}

	parts := make([]health.NormalizedDaySleep, 0, 2)

	tail := previous[len(previous)-1]
	carry := tail.Stage

	if tail.Start.Month() == currentDay.Month {
		previousDay := tail.Date()
		nextMidnight := previousDay.AddDays(1).Midnight()

		previous[len(previous)-1].DurationSeconds = int(nextMidnight.Sub(tail.Start) / time.Second)
		previous = append(previous, health.SleepSegment{
			Start: nextMidnight.Add(-time.Second),
			Stage: carry,
		})
		parts = append(parts, health.NormalizedDaySleep{Date: previousDay, Segments: previous})
	}

	midnight := currentDay.Midnight()
	if gap := int(current[0].Start.Sub(midnight) / time.Second); gap > 0 {
		head := health.SleepSegment{Start: midnight, Stage: carry, DurationSeconds: gap}
		current = append([]health.SleepSegment{head}, current...)
	}

	return append(parts, health.NormalizedDaySleep{Date: currentDay, Segments: current})
}

type dayAccumulator struct {
	order []health.Date
	days  map[health.Date][]health.SleepSegment
}

func newDayAccumulator() *dayAccumulator {
	return &dayAccumulator{days: make(map[health.Date][]health.SleepSegment)}
}

func (a *dayAccumulator) add(date health.Date, segments []health.SleepSegment) {
	existing, ok := a.days[date]
	if !ok {
		a.order = append(a.order, date)
		existing = []health.SleepSegment{}
	}
	a.days[date] = append(existing, segments...)
}

func (a *dayAccumulator) result() []health.NormalizedDaySleep {
	order := slices.Clone(a.order)
	slices.SortStableFunc(order, func(x, y health.Date) int {
		return x.Midnight().Compare(y.Midnight())
	})

	out := make([]health.NormalizedDaySleep, 0, len(order))
	for _, date := range order {
		out = append(out, health.NormalizedDaySleep{Date: date, Segments: a.days[date]})
	}
	return out
}
