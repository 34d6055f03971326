package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config configures an AsyncQueue.
type Config struct {
	BufferSize int
	Workers    int
	Timeout    time.Duration
}

// AsyncQueue executes tasks on a fixed pool of worker goroutines fed by a
// buffered channel. Submit never blocks; tasks are dropped when the buffer
// is full.
type AsyncQueue struct {
	ch       chan Task
	cfg      Config
	logger   *slog.Logger
	recorder Recorder

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewAsyncQueue creates and starts an async queue.
func NewAsyncQueue(cfg Config, logger *slog.Logger, recorder Recorder) *AsyncQueue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &AsyncQueue{
		ch:       make(chan Task, cfg.BufferSize),
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		cancel:   cancel,
	}

	q.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go q.worker(ctx)
	}

	return q
}

// Submit enqueues a task. The caller's context is not propagated to the
// task, which outlives the request that submitted it.
func (q *AsyncQueue) Submit(_ context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(task, "task queue closed, dropping task")
		return ErrQueueClosed
	}

	select {
	case q.ch <- task:
		return nil
	default:
		q.drop(task, "task queue full, dropping task")
		return ErrQueueFull
	}
}

// Close stops accepting tasks, runs everything already queued and waits
// for the workers to exit.
func (q *AsyncQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	for _, task := range q.drainAll() {
		q.run(task)
	}
	return nil
}

func (q *AsyncQueue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			for _, task := range q.drainAll() {
				q.run(task)
			}
			return
		case task := <-q.ch:
			q.run(task)
		}
	}
}

func (q *AsyncQueue) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.Timeout)
	defer cancel()

	err := execute(ctx, task)
	report(q.logger, q.recorder, task, err)
}

func (q *AsyncQueue) drop(task Task, msg string) {
	q.logger.Warn(msg, "task", task.Name, "tenant_id", task.TenantID, "key", task.Key)
	if q.recorder != nil {
		q.recorder.ObserveTask(task.Name, OutcomeDropped)
	}
}

func (q *AsyncQueue) drainAll() []Task {
	var out []Task
	for {
		select {
		case task := <-q.ch:
			out = append(out, task)
		default:
			return out
		}
	}
}

// execute runs task and converts a panic into an error.
func execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	if task.Run == nil {
		return nil
	}
	return task.Run(ctx)
}

func report(logger *slog.Logger, recorder Recorder, task Task, err error) {
	outcome := OutcomeSucceeded
	if err != nil {
		outcome = OutcomeFailed
		logger.Error("task failed",
			"task", task.Name,
			"tenant_id", task.TenantID,
			"key", task.Key,
			"error", err,
		)
	} else {
		logger.Debug("task completed", "task", task.Name, "tenant_id", task.TenantID, "key", task.Key)
	}
	if recorder != nil {
		recorder.ObserveTask(task.Name, outcome)
	}
}
