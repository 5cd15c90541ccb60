package delivery

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/task"
)

// Service provides operator-facing delivery lifecycle operations.
type Service struct {
	store       Store
	queue       task.Queue
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// NewService creates a delivery service.
func NewService(store Store, queue task.Queue, maxAttempts int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		queue:       queue,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Get returns a delivery by ID.
func (svc *Service) Get(ctx context.Context, delID id.ID) (*Delivery, error) {
	return svc.store.GetDelivery(ctx, delID)
}

// List returns deliveries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Delivery, error) {
	return svc.store.ListDeliveries(ctx, opts)
}

// Attempts returns a delivery's attempt audit trail.
func (svc *Service) Attempts(ctx context.Context, delID id.ID) ([]*Attempt, error) {
	return svc.store.ListAttempts(ctx, delID)
}

// Cancel withdraws a delivery between attempts. Cancellation is advisory
// for an attempt already in flight: that attempt completes, but no
// further ones are scheduled.
func (svc *Service) Cancel(ctx context.Context, delID id.ID) (*Delivery, error) {
	d, err := svc.store.GetDelivery(ctx, delID)
	if err != nil {
		return nil, err
	}

	if err := Cancel(d, svc.now()); err != nil {
		return nil, err
	}
	if err := svc.store.UpdateDelivery(ctx, d); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "delivery cancelled", "delivery_id", d.ID)
	return d, nil
}

// Retry immediately reschedules a non-terminal delivery, keeping its
// attempt count.
func (svc *Service) Retry(ctx context.Context, delID id.ID) (*Delivery, error) {
	d, err := svc.store.GetDelivery(ctx, delID)
	if err != nil {
		return nil, err
	}

	if err := Requeue(d, svc.now()); err != nil {
		return nil, err
	}
	if err := svc.store.UpdateDelivery(ctx, d); err != nil {
		return nil, err
	}
	if err := svc.queue.Enqueue(ctx, task.ExecuteDelivery{DeliveryID: d.ID}); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "delivery retry requested", "delivery_id", d.ID)
	return d, nil
}

// Replay creates a fresh delivery for the same event and connection with
// a full attempt budget. The original delivery and its audit trail are
// untouched.
func (svc *Service) Replay(ctx context.Context, delID id.ID) (*Delivery, error) {
	orig, err := svc.store.GetDelivery(ctx, delID)
	if err != nil {
		return nil, err
	}

	now := svc.now()
	fresh := &Delivery{
		Entity:        entity.New(),
		ID:            id.NewDeliveryID(),
		EventID:       orig.EventID,
		ConnectionID:  orig.ConnectionID,
		DestinationID: orig.DestinationID,
		Status:        StatusQueued,
		MaxAttempts:   svc.maxAttempts,
		NextAttemptAt: &now,
	}

	if err := svc.store.CreateDelivery(ctx, fresh); err != nil {
		return nil, err
	}
	if err := svc.queue.Enqueue(ctx, task.ExecuteDelivery{DeliveryID: fresh.ID}); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "delivery replayed",
		"delivery_id", fresh.ID, "replay_of", orig.ID)
	return fresh, nil
}
