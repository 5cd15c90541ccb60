package hookline

import "errors"

// Sentinel errors returned by Hookline operations.
var (
	// ErrNoStore is returned when a Hookline is created without a store.
	ErrNoStore = errors.New("hookline: store is required")

	// ErrNoQueue is returned when a Hookline is created without a task queue.
	ErrNoQueue = errors.New("hookline: task queue is required")

	// ErrSourceNotFound is returned when a source cannot be found.
	ErrSourceNotFound = errors.New("hookline: source not found")

	// ErrDestinationNotFound is returned when a destination cannot be found.
	ErrDestinationNotFound = errors.New("hookline: destination not found")

	// ErrConnectionNotFound is returned when a connection cannot be found.
	ErrConnectionNotFound = errors.New("hookline: connection not found")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("hookline: event not found")

	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = errors.New("hookline: delivery not found")

	// ErrDuplicateIngestToken is returned when a source is created with an
	// ingest token that is already in use.
	ErrDuplicateIngestToken = errors.New("hookline: duplicate ingest token")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("hookline: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("hookline: migration failed")
)
