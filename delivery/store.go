package delivery

import (
	"context"
	"time"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for deliveries and attempts.
type Store interface {
	// CreateDelivery persists a new delivery.
	CreateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// UpdateDelivery persists state machine changes.
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// ListDeliveries returns deliveries, newest first.
	ListDeliveries(ctx context.Context, opts ListOpts) ([]*Delivery, error)

	// DueDeliveries claims up to limit non-terminal deliveries whose
	// NextAttemptAt is at or before now. Claimed deliveries must not be
	// returned to concurrent callers.
	DueDeliveries(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// CountPending returns the number of non-terminal deliveries.
	CountPending(ctx context.Context) (int, error)

	// CreateAttempt persists one attempt audit record.
	CreateAttempt(ctx context.Context, a *Attempt) error

	// ListAttempts returns a delivery's attempts ordered by number.
	ListAttempts(ctx context.Context, delID id.ID) ([]*Attempt, error)
}
