package health

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, d)
	assert.Equal(t, "2024-02-29", d.String())

	_, err = ParseDate("2023-02-29")
	assert.Error(t, err)

	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.December, 31)

	assert.Equal(t, NewDate(2025, time.January, 1), d.AddDays(1))
	assert.Equal(t, NewDate(2024, time.November, 30), d.AddDays(-31))
	assert.Equal(t, 1, d.DaysUntil(d.AddDays(1)))
	assert.Equal(t, -1, d.DaysUntil(d.AddDays(-1)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(d.AddDays(-1)))
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), d.Midnight())
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		Date Date `json:"date"`
	}

	data, err := json.Marshal(wrapper{Date: NewDate(2024, time.May, 3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-05-03"}`, string(data))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-05-04"}`), &w))
	assert.Equal(t, NewDate(2024, time.May, 4), w.Date)

	assert.Error(t, json.Unmarshal([]byte(`{"date":"not-a-date"}`), &w))
}

func TestDateRangeDays(t *testing.T) {
	start := NewDate(2024, time.January, 1)

	tests := []struct {
		name string
		end  Date
		days int
	}{
		{name: "single day", end: start, days: 1},
		{name: "one week", end: start.AddDays(6), days: 7},
		{name: "leap february", end: NewDate(2024, time.March, 1), days: 61},
		{name: "limit", end: start.AddDays(MaxRangeDays - 1), days: MaxRangeDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewDateRange(start, tt.end)
			assert.Equal(t, tt.days, r.Days())

			dates := r.Dates()
			require.Len(t, dates, tt.days)
			assert.Equal(t, start, dates[0])
			assert.Equal(t, tt.end, dates[len(dates)-1])
		})
	}
}

func TestDateRangeValidate(t *testing.T) {
	start := NewDate(2024, time.May, 1)

	tests := []struct {
		name    string
		r       DateRange
		wantErr bool
	}{
		{name: "one day", r: NewDateRange(start, start)},
		{name: "exactly the limit", r: NewDateRange(start, start.AddDays(99))},
		{name: "one over the limit", r: NewDateRange(start, start.AddDays(100)), wantErr: true},
		{name: "reversed", r: NewDateRange(start, start.AddDays(-1)), wantErr: true},
		{name: "missing end", r: DateRange{Start: start}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate(MaxRangeDays)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "range", vErr.Field)
		})
	}
}

func TestValidationErrorMentionsLimit(t *testing.T) {
	start := NewDate(2024, time.May, 1)
	err := NewDateRange(start, start.AddDays(150)).Validate(MaxRangeDays)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "151 days")
	assert.Contains(t, err.Error(), "at most 100")
}
