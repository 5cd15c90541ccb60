package destination

import (
	"context"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Status is the lifecycle status of a destination.
type Status string

const (
	// StatusActive indicates the destination participates in fan-out.
	StatusActive Status = "active"

	// StatusPaused indicates the destination is temporarily excluded from fan-out.
	StatusPaused Status = "paused"

	// StatusDisabled indicates the destination is permanently excluded from fan-out.
	StatusDisabled Status = "disabled"
)

// AuthType selects how outbound requests authenticate against the destination.
type AuthType string

const (
	// AuthNone sends no authentication header.
	AuthNone AuthType = "none"

	// AuthBearer sends "Authorization: Bearer <value>".
	AuthBearer AuthType = "bearer"

	// AuthBasic base64-encodes "<value>" into "Authorization: Basic ...".
	// The value is expected to be "username:password".
	AuthBasic AuthType = "basic"

	// AuthAPIKey sends "X-API-Key: <value>", or splits a "name:value" pair
	// into a custom header.
	AuthAPIKey AuthType = "api_key"
)

// Destination is an outbound HTTP target configured by a tenant.
type Destination struct {
	entity.Entity

	// ID is the unique TypeID for this destination.
	ID id.ID `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// URL is the delivery URL.
	URL string `json:"url"`

	// Method is the HTTP method used for deliveries. Defaults to POST.
	Method string `json:"method"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// AuthType selects the authentication mode.
	AuthType AuthType `json:"auth_type"`

	// AuthValue is the credential used by AuthType. Encrypted at rest;
	// never serialized.
	AuthValue string `json:"-"`

	// TimeoutSeconds is the total per-attempt HTTP timeout. Zero means the
	// platform default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Status controls fan-out participation.
	Status Status `json:"status"`

	// Subscribers are addresses notified when deliveries to this
	// destination exhaust their attempts.
	Subscribers []string `json:"subscribers,omitempty"`
}

// Active reports whether the destination participates in fan-out.
func (d *Destination) Active() bool {
	return d.Status == StatusActive
}

// Timeout returns the per-attempt timeout, falling back to the given default.
func (d *Destination) Timeout(fallback time.Duration) time.Duration {
	if d.TimeoutSeconds <= 0 {
		return fallback
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// HTTPMethod returns the configured method, defaulting to POST.
func (d *Destination) HTTPMethod() string {
	if d.Method == "" {
		return "POST"
	}
	return d.Method
}

// ListOpts configures filtering and pagination for destination listing.
type ListOpts struct {
	Offset int
	Limit  int
	Status *Status
}

// Store defines the persistence contract for destinations.
type Store interface {
	// CreateDestination persists a new destination.
	CreateDestination(ctx context.Context, dst *Destination) error

	// GetDestination returns a destination by ID.
	GetDestination(ctx context.Context, dstID id.ID) (*Destination, error)

	// UpdateDestination modifies an existing destination.
	UpdateDestination(ctx context.Context, dst *Destination) error

	// DeleteDestination removes a destination.
	DeleteDestination(ctx context.Context, dstID id.ID) error

	// ListDestinations returns destinations, optionally filtered.
	ListDestinations(ctx context.Context, opts ListOpts) ([]*Destination, error)
}
