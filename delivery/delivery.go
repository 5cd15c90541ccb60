// Package delivery implements the outbound delivery state machine: one
// delivery per event/connection pair, retried with exponential backoff
// until success, cancellation, or attempt exhaustion.
package delivery

import (
	"errors"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Errors specific to delivery lifecycle operations.
var (
	// ErrNotCancellable is returned when cancelling a terminal delivery.
	ErrNotCancellable = errors.New("hookline: delivery is not cancellable")

	// ErrNotRetryable is returned when manually retrying a delivery that
	// is not in a retryable state.
	ErrNotRetryable = errors.New("hookline: delivery is not retryable")
)

// Status is a delivery's position in the state machine.
type Status string

const (
	// StatusPending means the delivery exists but has not been scheduled.
	StatusPending Status = "pending"

	// StatusQueued means the delivery is scheduled for an attempt.
	StatusQueued Status = "queued"

	// StatusDelivering means an attempt is in flight.
	StatusDelivering Status = "delivering"

	// StatusSuccess means the destination acknowledged the delivery.
	StatusSuccess Status = "success"

	// StatusFailed means the last attempt failed. The delivery is only
	// terminal once attempts are exhausted.
	StatusFailed Status = "failed"

	// StatusCancelled means an operator withdrew the delivery.
	StatusCancelled Status = "cancelled"
)

// Delivery is one scheduled transfer of an event to a destination.
type Delivery struct {
	entity.Entity

	// ID is the unique TypeID for this delivery.
	ID id.ID `json:"id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// ConnectionID references the connection that produced this delivery.
	ConnectionID id.ID `json:"connection_id"`

	// DestinationID references the target destination.
	DestinationID id.ID `json:"destination_id"`

	// Status is the current state machine position.
	Status Status `json:"status"`

	// AttemptCount is the number of attempts performed so far.
	AttemptCount int `json:"attempt_count"`

	// MaxAttempts caps total attempts before the delivery fails terminally.
	MaxAttempts int `json:"max_attempts"`

	// NextAttemptAt is when the next attempt is due. Nil once terminal.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`

	// LastErrorCode classifies the most recent failure, empty on success.
	LastErrorCode string `json:"last_error_code,omitempty"`

	// LastResponseStatus is the HTTP status of the most recent attempt,
	// zero when the attempt never produced a response.
	LastResponseStatus int `json:"last_response_status,omitempty"`

	// CompletedAt is when the delivery reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Exhausted reports whether the delivery has used up its attempt budget.
func (d *Delivery) Exhausted() bool {
	return d.AttemptCount >= d.MaxAttempts
}

// Terminal reports whether the delivery will never be attempted again.
func (d *Delivery) Terminal() bool {
	switch d.Status {
	case StatusSuccess, StatusCancelled:
		return true
	case StatusFailed:
		return d.Exhausted()
	default:
		return false
	}
}

// Cancellable reports whether an operator may withdraw the delivery.
// In-flight attempts cannot be cancelled; cancellation applies between
// attempts only.
func (d *Delivery) Cancellable() bool {
	switch d.Status {
	case StatusPending, StatusQueued:
		return true
	case StatusFailed:
		return !d.Exhausted()
	default:
		return false
	}
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset        int
	Limit         int
	EventID       *id.ID
	DestinationID *id.ID
	Status        *Status
}
