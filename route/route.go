// Package route fans received events out to their connections, creating
// one delivery per matching connection.
package route

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/task"
)

// Store is the narrow storage surface the router needs.
type Store interface {
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	GetSource(ctx context.Context, srcID id.ID) (*source.Source, error)
	ListBySource(ctx context.Context, srcID id.ID, opts connection.ListOpts) ([]*connection.Connection, error)
	GetDestination(ctx context.Context, dstID id.ID) (*destination.Destination, error)
	CreateDelivery(ctx context.Context, d *delivery.Delivery) error
}

// Router turns one received event into deliveries.
type Router struct {
	store       Store
	queue       task.Queue
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// NewRouter creates a router. maxAttempts is the attempt budget stamped
// onto every delivery it creates.
func NewRouter(store Store, queue task.Queue, maxAttempts int, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:       store,
		queue:       queue,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Route fans an event out to its source's active connections. Events that
// were rejected at ingestion, and events whose source has since been
// paused, produce no deliveries.
func (r *Router) Route(ctx context.Context, evtID id.ID) error {
	evt, err := r.store.GetEvent(ctx, evtID)
	if err != nil {
		return fmt.Errorf("route: load event %s: %w", evtID, err)
	}
	if !evt.Status.Routable() {
		r.logger.DebugContext(ctx, "event not routable", "event_id", evt.ID, "status", evt.Status)
		return nil
	}

	src, err := r.store.GetSource(ctx, evt.SourceID)
	if err != nil {
		return fmt.Errorf("route: load source %s: %w", evt.SourceID, err)
	}
	if !src.Active() {
		r.logger.DebugContext(ctx, "source inactive, skipping fan-out", "source_id", src.ID)
		return nil
	}

	conns, err := r.store.ListBySource(ctx, src.ID, connection.ListOpts{})
	if err != nil {
		return fmt.Errorf("route: list connections for %s: %w", src.ID, err)
	}

	created := 0
	for _, conn := range conns {
		if !conn.Active() {
			continue
		}
		if !conn.Rules.PassesFilters(evt.EventType) {
			continue
		}
		ok, err := r.dispatch(ctx, evt, conn, conn.Rules.Delay())
		if err != nil {
			r.logger.ErrorContext(ctx, "dispatch delivery",
				"event_id", evt.ID, "connection_id", conn.ID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	r.logger.InfoContext(ctx, "event routed",
		"event_id", evt.ID,
		"event_type", evt.EventType,
		"connections", len(conns),
		"deliveries", created)
	return nil
}

// Replay fans an event out again to every active connection of its
// source. Filters are bypassed: a replay is an explicit operator request,
// so every live connection gets the event.
func (r *Router) Replay(ctx context.Context, evtID id.ID) (int, error) {
	evt, err := r.store.GetEvent(ctx, evtID)
	if err != nil {
		return 0, fmt.Errorf("route: load event %s: %w", evtID, err)
	}

	conns, err := r.store.ListBySource(ctx, evt.SourceID, connection.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("route: list connections for %s: %w", evt.SourceID, err)
	}

	created := 0
	for _, conn := range conns {
		if !conn.Active() {
			continue
		}
		ok, err := r.dispatch(ctx, evt, conn, 0)
		if err != nil {
			r.logger.ErrorContext(ctx, "dispatch replay delivery",
				"event_id", evt.ID, "connection_id", conn.ID, "error", err)
			continue
		}
		if ok {
			created++
		}
	}

	r.logger.InfoContext(ctx, "event replayed", "event_id", evt.ID, "deliveries", created)
	return created, nil
}

// dispatch creates and schedules one delivery. It reports false when the
// connection's destination is not accepting deliveries.
func (r *Router) dispatch(ctx context.Context, evt *event.Event, conn *connection.Connection, delay time.Duration) (bool, error) {
	dst, err := r.store.GetDestination(ctx, conn.DestinationID)
	if err != nil {
		return false, fmt.Errorf("load destination %s: %w", conn.DestinationID, err)
	}
	if !dst.Active() {
		return false, nil
	}

	at := r.now().Add(delay)
	d := &delivery.Delivery{
		Entity:        entity.New(),
		ID:            id.NewDeliveryID(),
		EventID:       evt.ID,
		ConnectionID:  conn.ID,
		DestinationID: dst.ID,
		Status:        delivery.StatusQueued,
		MaxAttempts:   r.maxAttempts,
		NextAttemptAt: &at,
	}

	if err := r.store.CreateDelivery(ctx, d); err != nil {
		return false, fmt.Errorf("create delivery: %w", err)
	}

	t := task.ExecuteDelivery{DeliveryID: d.ID}
	if delay > 0 {
		err = r.queue.EnqueueAt(ctx, t, at)
	} else {
		err = r.queue.Enqueue(ctx, t)
	}
	if err != nil {
		// The sweeper re-enqueues the delivery from its NextAttemptAt.
		return false, fmt.Errorf("enqueue delivery %s: %w", d.ID, err)
	}
	return true, nil
}
