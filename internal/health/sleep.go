package health

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SegmentTimeLayout is the wall-clock format the remote source uses for segment starts.
const SegmentTimeLayout = "2006-01-02T15:04:05.000"

type Stage string

const (
	StageAwake Stage = "awake"
	StageREM   Stage = "rem"
	StageLight Stage = "light"
	StageDeep  Stage = "deep"
)

var stageAliases = map[string]Stage{
	"awake":    StageAwake,
	"wake":     StageAwake,
	"rem":      StageREM,
	"restless": StageREM,
	"light":    StageLight,
	"asleep":   StageLight,
	"deep":     StageDeep,
}

// ParseStage maps vendor level names, including the classic-mode aliases, to a Stage.
func ParseStage(level string) (Stage, error) {
	stage, ok := stageAliases[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return "", fmt.Errorf("unknown sleep level %q", level)
	}
	return stage, nil
}

type SleepSegment struct {
	Start           time.Time `json:"start"`
	Stage           Stage     `json:"stage"`
	DurationSeconds int       `json:"duration_seconds"`
}

func (s SleepSegment) End() time.Time {
	return s.Start.Add(time.Duration(s.DurationSeconds) * time.Second)
}

func (s SleepSegment) Date() Date {
	return DateOf(s.Start)
}

// OffsetSeconds is the number of seconds between the segment's midnight and its start.
func (s SleepSegment) OffsetSeconds() int {
	return s.Start.Hour()*3600 + s.Start.Minute()*60 + s.Start.Second()
}

// MarshalJSON adds offset_seconds so clients can place a segment on a day axis
// without parsing its start time.
func (s SleepSegment) MarshalJSON() ([]byte, error) {
	type segment SleepSegment
	return json.Marshal(struct {
		segment
		OffsetSeconds int `json:"offset_seconds"`
	}{segment(s), s.OffsetSeconds()})
}

// SleepSession is one continuous sleep period in chronological order.
type SleepSession []SleepSegment

func (s SleepSession) TotalSeconds() int {
	total := 0
	for _, seg := range s {
		total += seg.DurationSeconds
	}
	return total
}

// NormalizedDaySleep holds the segments of one calendar day. Every start falls
// inside the day and the slice may be empty.
type NormalizedDaySleep struct {
	Date     Date           `json:"date"`
	Segments []SleepSegment `json:"segments"`
}

func (d NormalizedDaySleep) TotalSeconds() int {
	return SleepSession(d.Segments).TotalSeconds()
}

// RawSegment is a segment exactly as the remote source reports it and as the
// store persists it.
type RawSegment struct {
	DateTime string `json:"dateTime"`
	Level    string `json:"level"`
	Seconds  int    `json:"seconds"`
}

type RawSession []RawSegment

func (r RawSegment) Parse() (SleepSegment, error) {
	// Fractional seconds are accepted by time.Parse even though the layout omits them.
	start, err := time.ParseInLocation("2006-01-02T15:04:05", r.DateTime, time.UTC)
	if err != nil {
		return SleepSegment{}, fmt.Errorf("invalid segment time %q: %w", r.DateTime, err)
	}

	stage, err := ParseStage(r.Level)
	if err != nil {
		return SleepSegment{}, err
	}

	if r.Seconds < 0 {
		return SleepSegment{}, fmt.Errorf("negative segment duration %d at %s", r.Seconds, r.DateTime)
	}

	return SleepSegment{Start: start, Stage: stage, DurationSeconds: r.Seconds}, nil
}

func (r RawSession) Parse() (SleepSession, error) {
	session := make(SleepSession, 0, len(r))
	for _, raw := range r {
		seg, err := raw.Parse()
		if err != nil {
			return nil, err
		}
		session = append(session, seg)
	}
	return session, nil
}

func EncodeSessions(sessions []RawSession) (string, error) {
	if sessions == nil {
		sessions = []RawSession{}
	}

	data, err := json.Marshal(sessions)
	if err != nil {
		return "", fmt.Errorf("failed to encode sleep sessions: %w", err)
	}
	return string(data), nil
}

func DecodeSessions(data string) ([]RawSession, error) {
	var sessions []RawSession
	if err := json.Unmarshal([]byte(data), &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sleep sessions: %w", err)
	}
	return sessions, nil
}
