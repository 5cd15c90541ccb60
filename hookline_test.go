package hookline_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/ingest"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/task"
)

func ctx() context.Context { return context.Background() }

func setup(t *testing.T) (*hookline.Hookline, *memory.Store) {
	t.Helper()
	st := memory.New()
	hl, err := hookline.New(
		hookline.WithStore(st),
		hookline.WithQueue(task.NewMemoryQueue()),
		hookline.WithSweepInterval(50*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	hl.Start(ctx())
	t.Cleanup(hl.Stop)
	return hl, st
}

func createPipeline(t *testing.T, hl *hookline.Hookline, url string, rules connection.RuleSet) *source.Source {
	t.Helper()
	src, err := hl.Sources().Create(ctx(), source.Input{Name: "shop"})
	if err != nil {
		t.Fatal(err)
	}
	dst, err := hl.Destinations().Create(ctx(), destination.Input{
		Name: "warehouse",
		URL:  url,
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = hl.Connections().Create(ctx(), connection.Input{
		SourceID:      src.ID,
		DestinationID: dst.ID,
		Rules:         rules,
	})
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met before timeout")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestIngestToDeliveryHappyPath(t *testing.T) {
	var hits atomic.Int32
	var gotType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotType.Store(r.Header.Get("X-Webhook-Event-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hl, st := setup(t)
	src := createPipeline(t, hl, srv.URL, nil)

	receipt := hl.Receive(ctx(), ingest.Request{
		Token: src.IngestToken,
		Body:  []byte(`{"type":"order.created","id":42}`),
	})
	if receipt.HTTPStatus != http.StatusAccepted {
		t.Fatalf("ingest status = %d, want 202", receipt.HTTPStatus)
	}

	waitFor(t, 5*time.Second, func() bool { return hits.Load() >= 1 })

	if got := gotType.Load(); got != "order.created" {
		t.Errorf("delivered event type = %v", got)
	}

	var deliveries []*delivery.Delivery
	waitFor(t, 5*time.Second, func() bool {
		var err error
		deliveries, err = st.ListDeliveries(ctx(), delivery.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		return len(deliveries) == 1 && deliveries[0].Status == delivery.StatusSuccess
	})
	if deliveries[0].AttemptCount != 1 {
		t.Errorf("attempt count = %d, want 1", deliveries[0].AttemptCount)
	}

	attempts, err := st.ListAttempts(ctx(), deliveries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 || !attempts[0].Success {
		t.Fatalf("attempts = %d", len(attempts))
	}
}

func TestIngestFilteredEventCreatesNoDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("destination hit for a filtered-out event")
	}))
	defer srv.Close()

	hl, st := setup(t)
	src := createPipeline(t, hl, srv.URL, connection.RuleSet{
		connection.FilterRule{EventTypes: []string{"order.created"}},
	})

	receipt := hl.Receive(ctx(), ingest.Request{
		Token: src.IngestToken,
		Body:  []byte(`{"type":"order.deleted"}`),
	})
	if receipt.HTTPStatus != http.StatusAccepted {
		t.Fatalf("ingest status = %d, want 202", receipt.HTTPStatus)
	}

	// Give routing a moment to run, then confirm nothing was created.
	waitFor(t, 5*time.Second, func() bool {
		evt, err := st.GetEvent(ctx(), receipt.EventID)
		if err != nil {
			t.Fatal(err)
		}
		return evt.Status == event.StatusReceived
	})
	time.Sleep(100 * time.Millisecond)

	deliveries, err := st.ListDeliveries(ctx(), delivery.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(deliveries) != 0 {
		t.Fatalf("created %d deliveries", len(deliveries))
	}
}

func TestReplayEventReachesFilteredConnections(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hl, _ := setup(t)
	src := createPipeline(t, hl, srv.URL, connection.RuleSet{
		connection.FilterRule{EventTypes: []string{"order.created"}},
	})

	receipt := hl.Receive(ctx(), ingest.Request{
		Token: src.IngestToken,
		Body:  []byte(`{"type":"order.deleted"}`),
	})
	if receipt.HTTPStatus != http.StatusAccepted {
		t.Fatalf("ingest status = %d, want 202", receipt.HTTPStatus)
	}

	created, err := hl.ReplayEvent(ctx(), receipt.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("replay created %d deliveries, want 1", created)
	}

	waitFor(t, 5*time.Second, func() bool { return hits.Load() >= 1 })
}

func TestFailingDestinationLeavesRetryState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	hl, st := setup(t)
	src := createPipeline(t, hl, srv.URL, nil)

	receipt := hl.Receive(ctx(), ingest.Request{
		Token: src.IngestToken,
		Body:  []byte(`{"type":"order.created"}`),
	})
	if receipt.HTTPStatus != http.StatusAccepted {
		t.Fatalf("ingest status = %d, want 202", receipt.HTTPStatus)
	}

	var d *delivery.Delivery
	waitFor(t, 5*time.Second, func() bool {
		ds, err := st.ListDeliveries(ctx(), delivery.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(ds) != 1 || ds[0].AttemptCount < 1 {
			return false
		}
		d = ds[0]
		return true
	})

	if d.Status != delivery.StatusQueued && d.Status != delivery.StatusFailed {
		t.Fatalf("status = %q, want a retryable state", d.Status)
	}
	if d.NextAttemptAt == nil {
		t.Fatal("no retry scheduled")
	}
	if remaining := time.Until(*d.NextAttemptAt); remaining < time.Minute {
		t.Errorf("retry in %v, want a backed-off schedule", remaining)
	}
}

func TestNewRequiresStoreAndQueue(t *testing.T) {
	if _, err := hookline.New(hookline.WithQueue(task.NewMemoryQueue())); err != hookline.ErrNoStore {
		t.Errorf("err = %v, want ErrNoStore", err)
	}
	if _, err := hookline.New(hookline.WithStore(memory.New())); err != hookline.ErrNoQueue {
		t.Errorf("err = %v, want ErrNoQueue", err)
	}
}
