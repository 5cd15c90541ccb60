// Package event holds captured inbound webhook events.
package event

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Status records the ingestion outcome for an event.
type Status string

const (
	// StatusReceived indicates the event was accepted and is eligible for routing.
	StatusReceived Status = "received"

	// StatusAuthenticationFailed indicates signature verification rejected
	// the event. The payload is retained for audit but never routed.
	StatusAuthenticationFailed Status = "authentication_failed"

	// StatusPayloadTooLarge indicates the payload exceeded the size cap.
	// The body is not retained and the event is never routed.
	StatusPayloadTooLarge Status = "payload_too_large"
)

// Routable reports whether the event may be handed to the router.
func (s Status) Routable() bool { return s == StatusReceived }

// Event is a captured inbound webhook payload.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// SourceID references the source that received the event.
	SourceID id.ID `json:"source_id"`

	// Status is the ingestion outcome.
	Status Status `json:"status"`

	// RawBody is the exact bytes received. Encrypted at rest; never
	// serialized.
	RawBody []byte `json:"-"`

	// ContentType is the inbound Content-Type header, if any.
	ContentType string `json:"content_type,omitempty"`

	// BodyIsBinary marks payloads that are not valid UTF-8 text.
	BodyIsBinary bool `json:"body_is_binary"`

	// BodySize is the payload length in bytes, recorded even when the
	// body itself is not retained.
	BodySize int `json:"body_size"`

	// Headers are the captured inbound headers, minus proxy artifacts.
	Headers map[string]string `json:"headers,omitempty"`

	// QueryParams are the query parameters of the ingest request.
	QueryParams map[string]string `json:"query_params,omitempty"`

	// SourceIP is the remote address the event arrived from.
	SourceIP string `json:"source_ip,omitempty"`

	// EventType is the classified event type, empty when none could be
	// extracted.
	EventType string `json:"event_type,omitempty"`

	// ReceivedAt is when the event arrived.
	ReceivedAt time.Time `json:"received_at"`
}

// DisplayableBody returns the body as text for inspection surfaces, or a
// placeholder for binary payloads.
func (e *Event) DisplayableBody() string {
	if e.BodyIsBinary || !utf8.Valid(e.RawBody) {
		return "[binary payload]"
	}
	return string(e.RawBody)
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset   int
	Limit    int
	SourceID *id.ID
	Status   *Status
}

// Store defines the persistence contract for events.
type Store interface {
	// CreateEvent persists a new event.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// UpdateEventStatus changes an event's ingestion status.
	UpdateEventStatus(ctx context.Context, evtID id.ID, status Status) error

	// ListEvents returns events, newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
