// Package store defines the composite Store interface for all Hookline
// persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them all, so engines depend only on the slice they use.
package store

import (
	"context"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/source"
)

// Store is the aggregate persistence interface.
type Store interface {
	source.Store
	destination.Store
	connection.Store
	event.Store
	delivery.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
