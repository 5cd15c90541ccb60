// Package connection defines routing rules from sources to destinations.
package connection

import (
	"context"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Status is the lifecycle status of a connection.
type Status string

const (
	// StatusActive indicates the connection participates in fan-out.
	StatusActive Status = "active"

	// StatusPaused indicates the connection is temporarily excluded from fan-out.
	StatusPaused Status = "paused"

	// StatusDisabled indicates the connection is permanently excluded from fan-out.
	StatusDisabled Status = "disabled"
)

// Connection is a routing rule linking one source to one destination.
type Connection struct {
	entity.Entity

	// ID is the unique TypeID for this connection.
	ID id.ID `json:"id"`

	// SourceID references the inbound source.
	SourceID id.ID `json:"source_id"`

	// DestinationID references the outbound destination.
	DestinationID id.ID `json:"destination_id"`

	// Priority orders connections during fan-out, ascending.
	Priority int `json:"priority"`

	// Status controls fan-out participation.
	Status Status `json:"status"`

	// Rules is the ordered filter/delay rule set applied during routing.
	Rules RuleSet `json:"rules,omitempty"`

	// ForwardAllHeaders forwards every captured inbound header (minus the
	// hop-by-hop blocklist) to the destination.
	ForwardAllHeaders bool `json:"forward_all_headers"`

	// ForwardHeaders is an explicit allow-list of inbound headers to
	// forward. Ignored when ForwardAllHeaders is set.
	ForwardHeaders []string `json:"forward_headers,omitempty"`
}

// Active reports whether the connection participates in fan-out.
func (c *Connection) Active() bool {
	return c.Status == StatusActive
}

// ListOpts configures filtering and pagination for connection listing.
type ListOpts struct {
	Offset int
	Limit  int
	Status *Status
}

// Store defines the persistence contract for connections.
type Store interface {
	// CreateConnection persists a new connection.
	CreateConnection(ctx context.Context, conn *Connection) error

	// GetConnection returns a connection by ID.
	GetConnection(ctx context.Context, connID id.ID) (*Connection, error)

	// UpdateConnection modifies an existing connection.
	UpdateConnection(ctx context.Context, conn *Connection) error

	// DeleteConnection removes a connection.
	DeleteConnection(ctx context.Context, connID id.ID) error

	// ListBySource returns connections for a source ordered by priority ascending.
	ListBySource(ctx context.Context, srcID id.ID, opts ListOpts) ([]*Connection, error)
}
