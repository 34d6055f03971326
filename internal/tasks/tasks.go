// Package tasks runs side effects detached from the request that triggered
// them. A failed task is logged once and never retried.
package tasks

import (
	"context"
	"errors"
)

var (
	ErrQueueFull   = errors.New("task queue full")
	ErrQueueClosed = errors.New("task queue closed")
)

// Task is one unit of detached work.
type Task struct {
	// Name identifies the kind of work, e.g. "booking.created".
	Name     string
	TenantID string
	// Key identifies the subject of the work, such as an event or booking id.
	Key string
	Run func(ctx context.Context) error
}

// Queue accepts tasks for execution outside the caller's goroutine.
type Queue interface {
	Submit(ctx context.Context, task Task) error
}

// Recorder counts task outcomes.
type Recorder interface {
	ObserveTask(name, outcome string)
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)
