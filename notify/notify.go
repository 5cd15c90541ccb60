// Package notify alerts subscribers when deliveries exhaust their attempts.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/hookline/hookline/id"
)

// Notification describes a delivery that exhausted its attempts.
type Notification struct {
	// DeliveryID identifies the exhausted delivery.
	DeliveryID id.ID

	// EventID identifies the event being delivered.
	EventID id.ID

	// DestinationID identifies the failing destination.
	DestinationID id.ID

	// DestinationName is a human-readable destination label.
	DestinationName string

	// DestinationURL is the delivery URL that kept failing.
	DestinationURL string

	// Attempts is the number of attempts made before giving up.
	Attempts int

	// LastError describes the final attempt's failure.
	LastError string

	// FailedAt is when the delivery became terminal.
	FailedAt time.Time
}

// Notifier sends a notification to one subscriber address.
type Notifier interface {
	Notify(ctx context.Context, subscriber string, n Notification) error
}

// LogNotifier writes notifications to the structured log. It is the
// default sink when no external channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(ctx context.Context, subscriber string, n Notification) error {
	l.logger.WarnContext(ctx, "delivery exhausted all attempts",
		"subscriber", subscriber,
		"delivery_id", n.DeliveryID,
		"event_id", n.EventID,
		"destination_id", n.DestinationID,
		"destination_url", n.DestinationURL,
		"attempts", n.Attempts,
		"last_error", n.LastError)
	return nil
}
