package hookline

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/ingest"
	"github.com/hookline/hookline/notify"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/route"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/task"
)

// Hookline is the root webhook relay pipeline.
type Hookline struct {
	config  Config
	store   store.Store
	queue   task.Queue
	runner  QueueRunner
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	notifier notify.Notifier

	sourceSvc      *source.Service
	destinationSvc *destination.Service
	connectionSvc  *connection.Service
	deliverySvc    *delivery.Service
	gatekeeper     *ingest.Gatekeeper
	router         *route.Router
	executor       *delivery.Executor
	sweeper        *delivery.Sweeper
	notifySvc      *notify.Service
	mux            *task.Mux
}

// QueueRunner is the optional lifecycle surface of a queue that owns its
// own workers. Both bundled queues implement it.
type QueueRunner interface {
	Start(ctx context.Context, h task.Handler)
	Stop()
}

// Option configures a Hookline instance.
type Option func(*Hookline) error

// New creates a new Hookline pipeline with the given options.
func New(opts ...Option) (*Hookline, error) {
	hl := &Hookline{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(hl); err != nil {
			return nil, err
		}
	}
	if hl.store == nil {
		return nil, ErrNoStore
	}
	if hl.queue == nil {
		return nil, ErrNoQueue
	}
	hl.wireServices()
	return hl, nil
}

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(hl *Hookline) error {
		hl.store = s
		return nil
	}
}

// WithQueue sets the task queue. When the queue also implements
// QueueRunner, Start and Stop manage its worker lifecycle.
func WithQueue(q task.Queue) Option {
	return func(hl *Hookline) error {
		hl.queue = q
		if runner, ok := q.(QueueRunner); ok {
			hl.runner = runner
		}
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(hl *Hookline) error {
		hl.logger = logger
		return nil
	}
}

// WithMetrics wires metric instruments into the pipeline.
func WithMetrics(m *observability.Metrics) Option {
	return func(hl *Hookline) error {
		hl.metrics = m
		return nil
	}
}

// WithTracer wires OpenTelemetry tracing into the pipeline.
func WithTracer(t *observability.Tracer) Option {
	return func(hl *Hookline) error {
		hl.tracer = t
		return nil
	}
}

// WithNotifier sets the failure notification sink. Defaults to the
// structured log.
func WithNotifier(n notify.Notifier) Option {
	return func(hl *Hookline) error {
		hl.notifier = n
		return nil
	}
}

// WithMaxAttempts sets the attempt budget stamped onto new deliveries.
func WithMaxAttempts(n int) Option {
	return func(hl *Hookline) error {
		hl.config.MaxAttempts = n
		return nil
	}
}

// WithMaxPayloadBytes sets the ingestion payload size cap.
func WithMaxPayloadBytes(n int) Option {
	return func(hl *Hookline) error {
		hl.config.MaxPayloadBytes = n
		return nil
	}
}

// WithRequestTimeout sets the default per-attempt HTTP timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(hl *Hookline) error {
		hl.config.RequestTimeout = d
		return nil
	}
}

// WithConnectTimeout sets the dial and TLS handshake timeout for
// outbound attempts.
func WithConnectTimeout(d time.Duration) Option {
	return func(hl *Hookline) error {
		hl.config.ConnectTimeout = d
		return nil
	}
}

// WithSweepInterval sets how often the sweeper scans for due deliveries.
func WithSweepInterval(d time.Duration) Option {
	return func(hl *Hookline) error {
		hl.config.SweepInterval = d
		return nil
	}
}

// WithNotificationCooldown sets the per-subscriber failure notification
// suppression window.
func WithNotificationCooldown(d time.Duration) Option {
	return func(hl *Hookline) error {
		hl.config.NotificationCooldown = d
		return nil
	}
}
