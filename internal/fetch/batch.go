package fetch

import (
	"fmt"
	"sync"
	"time"

	"github.com/nadmax/fitsync/internal/health"
)

// Batch is the handle returned by Submit. Tasks are kept in date order.
type Batch struct {
	ID        string
	Range     health.DateRange
	CreatedAt time.Time

	mu       sync.Mutex
	tasks    []*Task
	finished int
	done     chan struct{}
	err      error
}

func newBatch(id string, r health.DateRange, createdAt time.Time) *Batch {
	dates := r.Dates()
	tasks := make([]*Task, 0, len(dates))
	for _, d := range dates {
		tasks = append(tasks, newTask(d))
	}

	return &Batch{
		ID:        id,
		Range:     r,
		CreatedAt: createdAt,
		tasks:     tasks,
		done:      make(chan struct{}),
	}
}

// Done is closed once every task has finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until every task has finished and returns nil or a *BatchError.
func (b *Batch) Wait() error {
	<-b.done
	return b.err
}

// Tasks returns a snapshot of every task in date order.
func (b *Batch) Tasks() []Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, *t)
	}
	return out
}

func (b *Batch) Progress() (finished, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.finished, len(b.tasks)
}

func (b *Batch) start(t *Task, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t.Status = StatusRunning
	t.StartedAt = &at
}

func (b *Batch) complete(t *Task, err error, at time.Time) (snapshot Task, finished int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t.CompletedAt = &at
	if err != nil {
		t.Status = StatusFailed
		t.Err = err
		t.Error = err.Error()
	} else {
		t.Status = StatusSucceeded
	}
	b.finished++

	return *t, b.finished
}

func (b *Batch) finish() error {
	b.mu.Lock()
	var first *Task
	failed := 0
	for _, t := range b.tasks {
		if t.Status != StatusFailed {
			continue
		}
		if first == nil {
			first = t
		}
		failed++
	}

	if first != nil {
		b.err = &BatchError{
			BatchID: b.ID,
			Date:    first.Date,
			Err:     first.Err,
			Failed:  failed,
			Total:   len(b.tasks),
		}
	}
	err := b.err
	b.mu.Unlock()

	close(b.done)
	return err
}

// BatchError reports the earliest failing date of a batch. Failures on later
// dates are counted but only logged.
type BatchError struct {
	BatchID string
	Date    health.Date
	Err     error
	Failed  int
	Total   int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%v (%d of %d days failed)", e.Err, e.Failed, e.Total)
}

func (e *BatchError) Unwrap() error { return e.Err }
