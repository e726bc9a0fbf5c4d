package health

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		level string
		want  Stage
	}{
		{"wake", StageAwake},
		{"awake", StageAwake},
		{"restless", StageREM},
		{"rem", StageREM},
		{"asleep", StageLight},
		{"light", StageLight},
		{"deep", StageDeep},
		{" Deep ", StageDeep},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := ParseStage(tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStage("dreaming")
	assert.Error(t, err)
}

func TestRawSegmentParse(t *testing.T) {
	seg, err := RawSegment{DateTime: "2024-05-03T22:30:00.000", Level: "asleep", Seconds: 5400}.Parse()
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, time.May, 3, 22, 30, 0, 0, time.UTC), seg.Start)
	assert.Equal(t, StageLight, seg.Stage)
	assert.Equal(t, 5400, seg.DurationSeconds)
	assert.Equal(t, time.Date(2024, time.May, 4, 0, 0, 0, 0, time.UTC), seg.End())
	assert.Equal(t, NewDate(2024, time.May, 3), seg.Date())
	assert.Equal(t, 22*3600+30*60, seg.OffsetSeconds())

	withoutMillis, err := RawSegment{DateTime: "2024-05-03T01:02:03", Level: "deep", Seconds: 60}.Parse()
	require.NoError(t, err)
	assert.Equal(t, 3723, withoutMillis.OffsetSeconds())
}

func TestRawSegmentParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  RawSegment
	}{
		{name: "bad time", raw: RawSegment{DateTime: "yesterday", Level: "deep", Seconds: 1}},
		{name: "unknown level", raw: RawSegment{DateTime: "2024-05-03T01:00:00.000", Level: "nap", Seconds: 1}},
		{name: "negative duration", raw: RawSegment{DateTime: "2024-05-03T01:00:00.000", Level: "rem", Seconds: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.raw.Parse()
			assert.Error(t, err)
		})
	}
}

func TestSleepSegmentJSONIncludesOffset(t *testing.T) {
	seg := SleepSegment{
		Start:           time.Date(2024, time.May, 2, 1, 30, 15, 0, time.UTC),
		Stage:           StageDeep,
		DurationSeconds: 600,
	}

	data, err := json.Marshal(seg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"start": "2024-05-02T01:30:15Z",
		"stage": "deep",
		"duration_seconds": 600,
		"offset_seconds": 5415
	}`, string(data))

	var back SleepSegment
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, seg.Start.Equal(back.Start))
	assert.Equal(t, seg.Stage, back.Stage)
	assert.Equal(t, seg.DurationSeconds, back.DurationSeconds)
}

func TestEncodeDecodeSessions(t *testing.T) {
	sessions := []RawSession{
		{
			{DateTime: "2024-05-03T22:30:00.000", Level: "light", Seconds: 600},
			{DateTime: "2024-05-03T22:40:00.000", Level: "deep", Seconds: 1200},
		},
	}

	encoded, err := EncodeSessions(sessions)
	require.NoError(t, err)
	assert.Contains(t, encoded, `"dateTime":"2024-05-03T22:30:00.000"`)

	decoded, err := DecodeSessions(encoded)
	require.NoError(t, err)
	assert.Equal(t, sessions, decoded)

	empty, err := EncodeSessions(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	_, err = DecodeSessions("[['python', 'repr']]")
	assert.Error(t, err)
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	d := NewDate(2024, time.May, 3)

	rl := &RateLimitedError{Date: d, Cooldown: time.Hour, RetryAt: time.Date(2024, 5, 3, 13, 0, 0, 0, time.UTC), Err: cause}
	assert.ErrorIs(t, rl, cause)
	assert.Contains(t, rl.Error(), "2024-05-03")
	assert.Contains(t, rl.Error(), "1h0m0s")

	ff := &FetchFailedError{Date: d, Stage: "sleep", Err: cause}
	assert.ErrorIs(t, ff, cause)
	assert.Equal(t, "sleep data for 2024-05-03 could not be fetched: boom", ff.Error())

	pe := &PersistenceError{Op: "retrieve sleep rows", Scope: "2024-05-01..2024-05-31", Err: ErrNoRows}
	assert.ErrorIs(t, pe, ErrNoRows)
	assert.Contains(t, pe.Error(), "2024-05-01..2024-05-31")

	ne := &NormalizationError{Date: "2024-05-03", Reason: "bad segment", Err: cause}
	assert.ErrorIs(t, ne, cause)
	assert.Equal(t, "malformed data for 2024-05-03: bad segment: boom", ne.Error())
}
