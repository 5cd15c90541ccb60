package notify

import (
	"context"
	"log/slog"
	"time"
)

// Service fans a failure notification out to a destination's subscribers,
// applying the per-subscriber cooldown.
type Service struct {
	notifier Notifier
	cooldown *Cooldown
	logger   *slog.Logger
}

// NewService creates a notification service. A nil notifier falls back to
// the log notifier.
func NewService(notifier Notifier, window time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Service{
		notifier: notifier,
		cooldown: NewCooldown(window),
		logger:   logger,
	}
}

// DeliveryFailed notifies each subscriber about an exhausted delivery.
// Subscribers inside their cooldown window are skipped. Notifier errors
// are logged, not propagated, so one bad subscriber never blocks the rest.
func (svc *Service) DeliveryFailed(ctx context.Context, subscribers []string, n Notification) {
	for _, sub := range subscribers {
		if !svc.cooldown.Allow(sub) {
			continue
		}
		if err := svc.notifier.Notify(ctx, sub, n); err != nil {
			svc.logger.ErrorContext(ctx, "notify subscriber",
				"subscriber", sub,
				"delivery_id", n.DeliveryID,
				"error", err)
		}
	}
}
