package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/nadmax/fitsync/internal/health"
)

// MockStore is an in-memory Store that records calls and can be told to fail.
type MockStore struct {
	mu                sync.Mutex
	Steps             map[string]int
	Sleep             map[string]string
	UpsertStepsCalls  []UpsertStepsCall
	UpsertSleepCalls  []UpsertSleepCall
	StepsInRangeCalls []RangeCall
	SleepInRangeCalls []RangeCall
	UpsertStepsErrors map[string]error
	UpsertSleepErrors map[string]error
	StepsInRangeError error
	SleepInRangeError error
	Closed            bool
}

type UpsertStepsCall struct {
	Date      health.Date
	StepCount int
}

type UpsertSleepCall struct {
	Date     health.Date
	Sessions []health.RawSession
}

type RangeCall struct {
	Start health.Date
	End   health.Date
}

func NewMockStore() *MockStore {
	return &MockStore{
		Steps:             make(map[string]int),
		Sleep:             make(map[string]string),
		UpsertStepsErrors: make(map[string]error),
		UpsertSleepErrors: make(map[string]error),
	}
}

func (m *MockStore) UpsertSteps(_ context.Context, date health.Date, stepCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertStepsCalls = append(m.UpsertStepsCalls, UpsertStepsCall{Date: date, StepCount: stepCount})
	if err := m.UpsertStepsErrors[date.String()]; err != nil {
		return upsertError("steps", date, err)
	}

	m.Steps[date.String()] = stepCount
	return nil
}

func (m *MockStore) UpsertSleep(_ context.Context, date health.Date, sessions []health.RawSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertSleepCalls = append(m.UpsertSleepCalls, UpsertSleepCall{Date: date, Sessions: sessions})
	if err := m.UpsertSleepErrors[date.String()]; err != nil {
		return upsertError("sleep", date, err)
	}

	encoded, err := health.EncodeSessions(sessions)
	if err != nil {
		return upsertError("sleep", date, err)
	}

	m.Sleep[date.String()] = encoded
	return nil
}

func (m *MockStore) StepsInRange(_ context.Context, start, end health.Date) ([]health.StepRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StepsInRangeCalls = append(m.StepsInRangeCalls, RangeCall{Start: start, End: end})
	if m.StepsInRangeError != nil {
		return nil, rangeError("step", start, end, m.StepsInRangeError)
	}

	var rows []health.StepRow
	for _, date := range inRange(m.Steps, start, end) {
		rows = append(rows, health.StepRow{Date: date, StepCount: m.Steps[date]})
	}
	return rows, nil
}

func (m *MockStore) SleepInRange(_ context.Context, start, end health.Date) ([]health.SleepRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SleepInRangeCalls = append(m.SleepInRangeCalls, RangeCall{Start: start, End: end})
	if m.SleepInRangeError != nil {
		return nil, rangeError("sleep", start, end, m.SleepInRangeError)
	}

	var rows []health.SleepRow
	for _, date := range inRange(m.Sleep, start, end) {
		rows = append(rows, health.SleepRow{Date: date, Sessions: m.Sleep[date]})
	}
	return rows, nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}

// StepCount reports the stored count for date and whether a row exists.
func (m *MockStore) StepCount(date health.Date) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count, ok := m.Steps[date.String()]
	return count, ok
}

func (m *MockStore) HasSleep(date health.Date) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.Sleep[date.String()]
	return ok
}

func inRange[V any](table map[string]V, start, end health.Date) []string {
	lo, hi := start.String(), end.String()

	var dates []string
	for date := range table {
		if date >= lo && date <= hi {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates
}
