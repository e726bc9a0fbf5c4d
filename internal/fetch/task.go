package fetch

import (
	"time"

	"github.com/nadmax/fitsync/internal/health"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// Task is the unit of work for one calendar date: steps and sleep are fetched
// and saved together.
type Task struct {
	Date        health.Date `json:"date"`
	Status      TaskStatus  `json:"status"`
	Error       string      `json:"error,omitempty"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`

	Err error `json:"-"`
}

func newTask(date health.Date) *Task {
	return &Task{
		Date:   date,
		Status: StatusPending,
	}
}

func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

func (t *Task) Finished() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}
