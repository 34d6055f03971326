package tasks

import (
	"context"
	"log/slog"
	"sync"
)

// SyncQueue runs each task inline during Submit. It records what it ran,
// which makes submissions observable in tests.
type SyncQueue struct {
	logger   *slog.Logger
	recorder Recorder

	mu        sync.Mutex
	submitted []Task
	errs      []error
}

func NewSyncQueue(logger *slog.Logger, recorder Recorder) *SyncQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncQueue{logger: logger, recorder: recorder}
}

// Submit runs task to completion. Task failures are logged and recorded,
// never returned, matching AsyncQueue.
func (q *SyncQueue) Submit(ctx context.Context, task Task) error {
	err := execute(context.WithoutCancel(ctx), task)
	report(q.logger, q.recorder, task, err)

	q.mu.Lock()
	q.submitted = append(q.submitted, task)
	q.errs = append(q.errs, err)
	q.mu.Unlock()
	return nil
}

// Submitted returns the names of tasks run so far, in order.
func (q *SyncQueue) Submitted() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	names := make([]string, len(q.submitted))
	for i, t := range q.submitted {
		names[i] = t.Name
	}
	return names
}

// Errors returns the result of each task run so far, in order.
func (q *SyncQueue) Errors() []error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]error(nil), q.errs...)
}
