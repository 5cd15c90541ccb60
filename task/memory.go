package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned when enqueueing on a stopped queue.
var ErrQueueClosed = errors.New("task: queue closed")

// MemoryQueue is an in-process queue backed by goroutine workers. It is
// the default for tests and single-node deployments; work does not
// survive a restart.
type MemoryQueue struct {
	handler Handler
	logger  *slog.Logger
	workers int

	mu     sync.Mutex
	tasks  chan Task
	timers map[*time.Timer]struct{}
	closed bool
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// MemoryOption configures a MemoryQueue.
type MemoryOption func(*MemoryQueue)

// WithWorkers sets the number of concurrent workers. Default is 4.
func WithWorkers(n int) MemoryOption {
	return func(q *MemoryQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithMemoryLogger sets the queue logger.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(q *MemoryQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewMemoryQueue creates an in-process queue. Call Start before enqueueing
// and Stop to drain.
func NewMemoryQueue(opts ...MemoryOption) *MemoryQueue {
	q := &MemoryQueue{
		logger:  slog.Default(),
		workers: 4,
		tasks:   make(chan Task, 1024),
		timers:  make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start registers the handler and launches the worker pool.
func (q *MemoryQueue) Start(ctx context.Context, h Handler) {
	runCtx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.handler = h
	q.cancel = cancel
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx)
	}
}

// Stop prevents further enqueues, cancels pending timers, and waits for
// in-flight tasks to finish.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = nil
	cancel := q.cancel
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	if cancel != nil {
		cancel()
	}
}

// Enqueue implements Queue.
func (q *MemoryQueue) Enqueue(_ context.Context, t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- t:
		return nil
	default:
		return fmt.Errorf("task: memory queue full, dropping %s", t.Kind())
	}
}

// EnqueueAt implements Queue using a one-shot timer.
func (q *MemoryQueue) EnqueueAt(ctx context.Context, t Task, at time.Time) error {
	delay := time.Until(at)
	if delay <= 0 {
		return q.Enqueue(ctx, t)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return
		}
		delete(q.timers, timer)
		select {
		case q.tasks <- t:
		default:
			q.logger.Warn("memory queue full, dropping delayed task", "kind", t.Kind())
		}
		q.mu.Unlock()
	})
	q.timers[timer] = struct{}{}
	return nil
}

func (q *MemoryQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.process(ctx, t)
	}
}

func (q *MemoryQueue) process(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task handler panicked", "kind", t.Kind(), "panic", r)
		}
	}()

	if err := q.handler.ProcessTask(ctx, t); err != nil {
		q.logger.ErrorContext(ctx, "task failed", "kind", t.Kind(), "error", err)
	}
}
