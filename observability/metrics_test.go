package observability

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/go-utils/metrics"
)

func TestNewMetricsCreatesInstruments(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("hookline"))

	if m.EventsReceivedTotal == nil {
		t.Fatal("EventsReceivedTotal should not be nil")
	}
	if m.DeliveriesTotal == nil {
		t.Fatal("DeliveriesTotal should not be nil")
	}
	if m.AttemptLatency == nil {
		t.Fatal("AttemptLatency should not be nil")
	}
	if m.PendingDeliveries == nil {
		t.Fatal("PendingDeliveries should not be nil")
	}
}

func TestObserveHelpers(t *testing.T) {
	m := NewMetrics(metrics.NewMetricsCollector("hookline"))
	ctx := context.Background()

	m.ObserveEvent(ctx, "received")
	m.ObserveAttempt(ctx, true, "", 120*time.Millisecond)
	m.ObserveAttempt(ctx, false, "timeout", 30*time.Second)
	m.SetPending(7)
}
