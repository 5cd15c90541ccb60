package hookline

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/ingest"
	"github.com/hookline/hookline/notify"
	"github.com/hookline/hookline/route"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/task"
)

// wireServices initializes the internal services after options have been
// applied.
func (hl *Hookline) wireServices() {
	hl.sourceSvc = source.NewService(hl.store, hl.logger)
	hl.destinationSvc = destination.NewService(hl.store, hl.logger)
	hl.connectionSvc = connection.NewService(hl.store, hl.logger)
	hl.deliverySvc = delivery.NewService(hl.store, hl.queue, hl.config.MaxAttempts, hl.logger)

	hl.notifySvc = notify.NewService(hl.notifier, hl.config.NotificationCooldown, hl.logger)

	var gkOpts []ingest.GatekeeperOption
	if hl.config.MaxPayloadBytes > 0 {
		gkOpts = append(gkOpts, ingest.WithMaxPayloadBytes(hl.config.MaxPayloadBytes))
	}
	if hl.metrics != nil {
		gkOpts = append(gkOpts, ingest.WithEventRecorder(hl.metrics))
	}
	hl.gatekeeper = ingest.NewGatekeeper(hl.store, hl.queue, hl.logger, gkOpts...)

	hl.router = route.NewRouter(hl.store, hl.queue, hl.config.MaxAttempts, hl.logger)

	sender := delivery.NewSender(hl.config.ConnectTimeout, hl.config.RequestTimeout)
	var exOpts []delivery.ExecutorOption
	if hl.metrics != nil {
		exOpts = append(exOpts, delivery.WithAttemptRecorder(hl.metrics))
	}
	if hl.tracer != nil {
		exOpts = append(exOpts, delivery.WithAttemptTracer(hl.tracer))
	}
	hl.executor = delivery.NewExecutor(hl.store, sender, hl.queue, hl.notifySvc, hl.logger, exOpts...)

	var swOpts []delivery.SweeperOption
	if hl.metrics != nil {
		swOpts = append(swOpts, delivery.WithPendingRecorder(hl.metrics))
	}
	hl.sweeper = delivery.NewSweeper(hl.store, hl.queue, hl.config.SweepInterval, hl.config.SweepBatchSize, hl.logger, swOpts...)

	hl.mux = task.NewMux()
	hl.mux.HandleFunc(task.KindRouteEvent, func(ctx context.Context, t task.Task) error {
		return hl.router.Route(ctx, t.(task.RouteEvent).EventID)
	})
	hl.mux.HandleFunc(task.KindExecuteDelivery, func(ctx context.Context, t task.Task) error {
		return hl.executor.Execute(ctx, t.(task.ExecuteDelivery).DeliveryID)
	})
}

// Start launches the queue workers and the due-delivery sweeper.
func (hl *Hookline) Start(ctx context.Context) {
	if hl.runner != nil {
		hl.runner.Start(ctx, hl.mux)
	}
	hl.sweeper.Start(ctx)
	hl.logger.InfoContext(ctx, "hookline started",
		"max_attempts", hl.config.MaxAttempts,
		"sweep_interval", hl.config.SweepInterval)
}

// Stop gracefully shuts the pipeline down: the sweeper halts first so no
// new attempts are scheduled, then the queue drains in-flight tasks.
func (hl *Hookline) Stop() {
	hl.sweeper.Stop()
	if hl.runner != nil {
		hl.runner.Stop()
	}
	hl.logger.Info("hookline stopped")
}

// Receive runs the ingestion pipeline for one inbound payload. Most
// callers should mount Gatekeeper's HTTP handler instead; Receive exists
// for embedding ingestion into other transports.
func (hl *Hookline) Receive(ctx context.Context, req ingest.Request) ingest.Receipt {
	if hl.tracer != nil {
		var span trace.Span
		ctx, span = hl.tracer.StartIngestSpan(ctx, req.Token)
		defer span.End()
	}
	return hl.gatekeeper.Receive(ctx, req)
}

// ReplayEvent fans an event out again to every active connection of its
// source, bypassing filter rules. Returns the number of deliveries created.
func (hl *Hookline) ReplayEvent(ctx context.Context, evtID id.ID) (int, error) {
	return hl.router.Replay(ctx, evtID)
}

// Gatekeeper returns the ingestion gatekeeper.
func (hl *Hookline) Gatekeeper() *ingest.Gatekeeper {
	return hl.gatekeeper
}

// Sources returns the source management service.
func (hl *Hookline) Sources() *source.Service {
	return hl.sourceSvc
}

// Destinations returns the destination management service.
func (hl *Hookline) Destinations() *destination.Service {
	return hl.destinationSvc
}

// Connections returns the connection management service.
func (hl *Hookline) Connections() *connection.Service {
	return hl.connectionSvc
}

// Deliveries returns the delivery lifecycle service.
func (hl *Hookline) Deliveries() *delivery.Service {
	return hl.deliverySvc
}

// Store returns the underlying store.
func (hl *Hookline) Store() store.Store {
	return hl.store
}
