// Package observability provides metric instruments and tracing for the
// webhook pipeline.
package observability

import (
	"context"
	"time"

	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Hookline, backed by any go-utils
// MetricFactory.
type Metrics struct {
	EventsReceivedTotal gu.Counter
	DeliveriesTotal     gu.Counter
	AttemptLatency      gu.Histogram
	PendingDeliveries   gu.Gauge
}

// NewMetrics creates the pipeline's metric instruments using the supplied
// factory. Use metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		EventsReceivedTotal: factory.Counter("hookline_events_received_total"),
		DeliveriesTotal:     factory.Counter("hookline_delivery_attempts_total"),
		AttemptLatency:      factory.Histogram("hookline_attempt_latency_seconds"),
		PendingDeliveries:   factory.Gauge("hookline_pending_deliveries"),
	}
}

// ObserveEvent implements ingest.EventRecorder.
func (m *Metrics) ObserveEvent(_ context.Context, status string) {
	m.EventsReceivedTotal.WithLabels(map[string]string{"status": status}).Inc()
}

// ObserveAttempt implements delivery.AttemptRecorder.
func (m *Metrics) ObserveAttempt(_ context.Context, success bool, errorCode string, latency time.Duration) {
	status := "success"
	if !success {
		status = errorCode
		if status == "" {
			status = "failed"
		}
	}
	m.DeliveriesTotal.WithLabels(map[string]string{"status": status}).Inc()
	m.AttemptLatency.Observe(latency.Seconds())
}

// SetPending records the current number of non-terminal deliveries.
func (m *Metrics) SetPending(n int) {
	m.PendingDeliveries.Set(float64(n))
}
