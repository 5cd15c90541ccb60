package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/notify"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/task"
)

// ExecutorStore is the narrow storage surface the executor needs.
type ExecutorStore interface {
	Store

	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	GetSource(ctx context.Context, srcID id.ID) (*source.Source, error)
	GetConnection(ctx context.Context, connID id.ID) (*connection.Connection, error)
	GetDestination(ctx context.Context, dstID id.ID) (*destination.Destination, error)
}

// AttemptRecorder receives per-attempt observations for metrics.
type AttemptRecorder interface {
	ObserveAttempt(ctx context.Context, success bool, errorCode string, latency time.Duration)
}

// Executor performs delivery attempts: it drives the state machine,
// records the attempt audit trail, schedules retries, and raises failure
// notifications on exhaustion.
type Executor struct {
	store    ExecutorStore
	sender   *Sender
	queue    task.Queue
	notifier *notify.Service
	recorder AttemptRecorder
	tracer   *observability.Tracer
	logger   *slog.Logger
	now      func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithAttemptRecorder wires a metrics recorder into the executor.
func WithAttemptRecorder(r AttemptRecorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithAttemptTracer wires OpenTelemetry spans around attempts.
func WithAttemptTracer(t *observability.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// WithExecutorClock overrides the clock, for tests.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates a delivery executor.
func NewExecutor(store ExecutorStore, sender *Sender, queue task.Queue, notifier *notify.Service, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		store:    store,
		sender:   sender,
		queue:    queue,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs one attempt for the delivery. Terminal deliveries are
// skipped silently so a stale queue entry, a sweeper race, or a
// cancellation after scheduling never re-delivers.
func (e *Executor) Execute(ctx context.Context, delID id.ID) error {
	d, err := e.store.GetDelivery(ctx, delID)
	if err != nil {
		return fmt.Errorf("delivery: load %s: %w", delID, err)
	}
	if d.Terminal() || d.Status == StatusDelivering {
		e.logger.DebugContext(ctx, "skipping delivery attempt",
			"delivery_id", d.ID, "status", d.Status)
		return nil
	}

	BeginAttempt(d, e.now())
	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		return fmt.Errorf("delivery: mark delivering %s: %w", d.ID, err)
	}

	evt, src, conn, dst, err := e.loadContext(ctx, d)
	if err != nil {
		return e.resolve(ctx, d, nil, Outcome{
			ErrorCode: ErrCodeRequest,
		}, &Attempt{
			Entity:       entity.New(),
			ID:           id.NewAttemptID(),
			DeliveryID:   d.ID,
			Number:       d.AttemptCount,
			ErrorCode:    ErrCodeRequest,
			ErrorMessage: err.Error(),
			StartedAt:    e.now(),
		})
	}

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.StartAttemptSpan(ctx, d.ID.String(), d.EventID.String(), d.DestinationID.String())
	}

	headers := BuildHeaders(evt, src, conn, dst)
	started := e.now()
	result := e.sender.Send(ctx, dst.HTTPMethod(), dst.URL, headers, evt.RawBody, dst.Timeout(0))

	attempt := &Attempt{
		Entity:          entity.New(),
		ID:              id.NewAttemptID(),
		DeliveryID:      d.ID,
		Number:          d.AttemptCount,
		RequestURL:      dst.URL,
		RequestMethod:   dst.HTTPMethod(),
		RequestHeaders:  SnapshotHeaders(headers),
		RequestBody:     Truncate(evt.RawBody),
		ResponseStatus:  result.Status,
		ResponseHeaders: SnapshotHeaders(result.Headers),
		ResponseBody:    Truncate(result.Body),
		Success:         result.Succeeded(),
		LatencyMs:       result.Latency.Milliseconds(),
		StartedAt:       started,
	}

	out := Outcome{
		Success:        result.Succeeded(),
		ResponseStatus: result.Status,
	}
	if !out.Success {
		out.ErrorCode = result.ErrorCode
		attempt.ErrorCode = result.ErrorCode
		attempt.ErrorMessage = result.ErrorMessage
		if out.ErrorCode == "" {
			out.ErrorCode = ErrCodeRequest
			attempt.ErrorCode = ErrCodeRequest
			attempt.ErrorMessage = fmt.Sprintf("destination responded %d", result.Status)
		}
	}

	if e.recorder != nil {
		e.recorder.ObserveAttempt(ctx, out.Success, out.ErrorCode, result.Latency)
	}
	if span != nil {
		e.tracer.EndAttemptSpan(span, result.Status, attempt.LatencyMs, attempt.ErrorCode)
	}

	return e.resolve(ctx, d, dst, out, attempt)
}

func (e *Executor) loadContext(ctx context.Context, d *Delivery) (*event.Event, *source.Source, *connection.Connection, *destination.Destination, error) {
	evt, err := e.store.GetEvent(ctx, d.EventID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load event %s: %w", d.EventID, err)
	}
	src, err := e.store.GetSource(ctx, evt.SourceID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load source %s: %w", evt.SourceID, err)
	}
	conn, err := e.store.GetConnection(ctx, d.ConnectionID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load connection %s: %w", d.ConnectionID, err)
	}
	dst, err := e.store.GetDestination(ctx, d.DestinationID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load destination %s: %w", d.DestinationID, err)
	}
	return evt, src, conn, dst, nil
}

func (e *Executor) resolve(ctx context.Context, d *Delivery, dst *destination.Destination, out Outcome, attempt *Attempt) error {
	if err := e.store.CreateAttempt(ctx, attempt); err != nil {
		e.logger.ErrorContext(ctx, "record attempt", "delivery_id", d.ID, "error", err)
	}

	effects := Resolve(d, out, e.now())
	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		return fmt.Errorf("delivery: persist outcome %s: %w", d.ID, err)
	}

	switch {
	case out.Success:
		e.logger.InfoContext(ctx, "delivery succeeded",
			"delivery_id", d.ID,
			"attempt", d.AttemptCount,
			"status", out.ResponseStatus,
			"latency_ms", attempt.LatencyMs)
	default:
		e.logger.WarnContext(ctx, "delivery attempt failed",
			"delivery_id", d.ID,
			"attempt", d.AttemptCount,
			"max_attempts", d.MaxAttempts,
			"error_code", out.ErrorCode,
			"status", out.ResponseStatus)
	}

	if effects.ScheduleRetry && d.NextAttemptAt != nil {
		if err := e.queue.EnqueueAt(ctx, task.ExecuteDelivery{DeliveryID: d.ID}, *d.NextAttemptAt); err != nil {
			// The sweeper picks up deliveries whose schedule was lost.
			e.logger.ErrorContext(ctx, "schedule retry", "delivery_id", d.ID, "error", err)
		} else {
			d.Status = StatusQueued
			if err := e.store.UpdateDelivery(ctx, d); err != nil {
				e.logger.ErrorContext(ctx, "mark queued", "delivery_id", d.ID, "error", err)
			}
		}
	}

	if effects.NotifyFailure && e.notifier != nil && dst != nil {
		e.notifier.DeliveryFailed(ctx, dst.Subscribers, notify.Notification{
			DeliveryID:      d.ID,
			EventID:         d.EventID,
			DestinationID:   d.DestinationID,
			DestinationName: dst.Name,
			DestinationURL:  dst.URL,
			Attempts:        d.AttemptCount,
			LastError:       attempt.ErrorMessage,
			FailedAt:        e.now(),
		})
	}

	return nil
}
