package hookline

import "time"

// Config holds the configuration for a Hookline instance.
type Config struct {
	// MaxAttempts is the default maximum number of delivery attempts.
	MaxAttempts int

	// MaxPayloadBytes is the inbound payload size cap enforced at ingestion.
	MaxPayloadBytes int

	// ConnectTimeout is the dial timeout for outbound delivery requests.
	ConnectTimeout time.Duration

	// RequestTimeout is the total per-attempt timeout used when a
	// destination does not configure its own.
	RequestTimeout time.Duration

	// SweepInterval is how often the retry sweeper scans for due deliveries.
	SweepInterval time.Duration

	// SweepBatchSize is the maximum number of due deliveries picked up per sweep.
	SweepBatchSize int

	// NotificationCooldown is the minimum interval between failure
	// notifications sent to the same subscriber.
	NotificationCooldown time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:          18,
		MaxPayloadBytes:      1 << 20, // 1 MiB
		ConnectTimeout:       10 * time.Second,
		RequestTimeout:       30 * time.Second,
		SweepInterval:        time.Minute,
		SweepBatchSize:       100,
		NotificationCooldown: 10 * time.Minute,
	}
}
