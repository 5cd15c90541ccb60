package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hookline/hookline/task"
)

// Sweeper periodically scans for due deliveries and re-enqueues them. It
// is the safety net behind the queue's own delayed scheduling: a lost
// queue entry or a crashed worker delays a delivery by at most one sweep
// interval instead of losing it.
type Sweeper struct {
	store    Store
	queue    task.Queue
	logger   *slog.Logger
	interval time.Duration
	batch    int
	gauge    PendingRecorder

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// PendingRecorder receives the pending-delivery count observed each sweep.
type PendingRecorder interface {
	SetPending(n int)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithPendingRecorder wires a gauge that tracks the backlog of
// non-terminal deliveries.
func WithPendingRecorder(g PendingRecorder) SweeperOption {
	return func(s *Sweeper) { s.gauge = g }
}

// NewSweeper creates a sweeper. Zero interval and batch fall back to one
// minute and 100.
func NewSweeper(store Store, queue task.Queue, interval time.Duration, batch int, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	s := &Sweeper{
		store:    store,
		queue:    queue,
		logger:   logger,
		interval: interval,
		batch:    batch,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// sweep claims one batch of due deliveries and enqueues an attempt for
// each. Re-enqueueing an already-scheduled delivery is harmless: the
// executor skips anything terminal or in flight.
func (s *Sweeper) sweep(ctx context.Context) {
	if s.gauge != nil {
		if n, err := s.store.CountPending(ctx); err == nil {
			s.gauge.SetPending(n)
		}
	}

	due, err := s.store.DueDeliveries(ctx, time.Now(), s.batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "scan due deliveries", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	enqueued := 0
	for _, d := range due {
		if err := s.queue.Enqueue(ctx, task.ExecuteDelivery{DeliveryID: d.ID}); err != nil {
			s.logger.ErrorContext(ctx, "enqueue due delivery", "delivery_id", d.ID, "error", err)
			continue
		}
		enqueued++
	}

	s.logger.DebugContext(ctx, "swept due deliveries", "found", len(due), "enqueued", enqueued)
}
