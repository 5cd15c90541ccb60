package route_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/route"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/task"
)

type recordQueue struct {
	mu        sync.Mutex
	immediate []task.Task
	scheduled []task.Task
	at        []time.Time
}

func (q *recordQueue) Enqueue(_ context.Context, t task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.immediate = append(q.immediate, t)
	return nil
}

func (q *recordQueue) EnqueueAt(_ context.Context, t task.Task, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scheduled = append(q.scheduled, t)
	q.at = append(q.at, at)
	return nil
}

type fixture struct {
	store *memory.Store
	queue *recordQueue
	src   *source.Source
	evt   *event.Event
}

func newFixture(t *testing.T, eventType string) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	src := &source.Source{
		Entity:      entity.New(),
		ID:          id.NewSourceID(),
		Name:        "shop",
		IngestToken: "tok_" + id.NewSourceID().String(),
		Status:      source.StatusActive,
	}
	if err := st.CreateSource(ctx, src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	evt := &event.Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		SourceID:   src.ID,
		Status:     event.StatusReceived,
		RawBody:    []byte(`{}`),
		EventType:  eventType,
		ReceivedAt: time.Now().UTC(),
	}
	if err := st.CreateEvent(ctx, evt); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	return &fixture{store: st, queue: &recordQueue{}, src: src, evt: evt}
}

func (f *fixture) addConnection(t *testing.T, status connection.Status, dstStatus destination.Status, rules connection.RuleSet) *connection.Connection {
	t.Helper()
	ctx := context.Background()

	dst := &destination.Destination{
		Entity: entity.New(),
		ID:     id.NewDestinationID(),
		Name:   "endpoint",
		URL:    "https://example.com/hook",
		Status: dstStatus,
	}
	if err := f.store.CreateDestination(ctx, dst); err != nil {
		t.Fatalf("CreateDestination: %v", err)
	}

	conn := &connection.Connection{
		Entity:        entity.New(),
		ID:            id.NewConnectionID(),
		SourceID:      f.src.ID,
		DestinationID: dst.ID,
		Status:        status,
		Rules:         rules,
	}
	if err := f.store.CreateConnection(ctx, conn); err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	return conn
}

func (f *fixture) deliveries(t *testing.T) []*delivery.Delivery {
	t.Helper()
	ds, err := f.store.ListDeliveries(context.Background(), delivery.ListOpts{})
	if err != nil {
		t.Fatalf("ListDeliveries: %v", err)
	}
	return ds
}

func TestRouteFansOutToActiveConnections(t *testing.T) {
	f := newFixture(t, "order.created")
	f.addConnection(t, connection.StatusActive, destination.StatusActive, nil)
	f.addConnection(t, connection.StatusActive, destination.StatusActive, nil)

	r := route.NewRouter(f.store, f.queue, 18, nil)
	if err := r.Route(context.Background(), f.evt.ID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	ds := f.deliveries(t)
	if len(ds) != 2 {
		t.Fatalf("created %d deliveries, want 2", len(ds))
	}
	for _, d := range ds {
		if d.Status != delivery.StatusQueued {
			t.Errorf("delivery status = %q, want %q", d.Status, delivery.StatusQueued)
		}
		if d.MaxAttempts != 18 {
			t.Errorf("max attempts = %d, want 18", d.MaxAttempts)
		}
		if d.NextAttemptAt == nil {
			t.Error("next attempt at not set")
		}
	}
	if len(f.queue.immediate) != 2 {
		t.Errorf("enqueued %d tasks, want 2", len(f.queue.immediate))
	}
}

func TestRouteFilterMismatchCreatesNothing(t *testing.T) {
	f := newFixture(t, "order.deleted")
	f.addConnection(t, connection.StatusActive, destination.StatusActive, connection.RuleSet{
		connection.FilterRule{EventTypes: []string{"order.created", "order.updated"}},
	})

	r := route.NewRouter(f.store, f.queue, 18, nil)
	if err := r.Route(context.Background(), f.evt.ID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if ds := f.deliveries(t); len(ds) != 0 {
		t.Fatalf("created %d deliveries for a filtered-out event", len(ds))
	}
}

func TestRouteFilterMatchDelivers(t *testing.T) {
	f := newFixture(t, "order.created")
	f.addConnection(t, connection.StatusActive, destination.StatusActive, connection.RuleSet{
		connection.FilterRule{EventTypes: []string{"order.created"}},
	})

	r := route.NewRouter(f.store, f.queue, 18, nil)
	if err := r.Route(context.Background(), f.evt.ID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if ds := f.deliveries(t); len(ds) != 1 {
		t.Fatalf("created %d deliveries, want 1", len(ds))
	}
}

func TestRouteSkipsInactiveConnectionAndDestination(t *testing.T) {
	f := newFixture(t, "order.created")
	f.addConnection(t, connection.StatusPaused, destination.StatusActive, nil)
	f.addConnection(t, connection.StatusActive, destination.StatusPaused, nil)
	f.addConnection(t, connection.StatusActive, destination.StatusActive, nil)

	r := route.NewRouter(f.store, f.queue, 18, nil)
	if err := r.Route(context.Background(), f.evt.ID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if ds := f.deliveries(t); len(ds) != 1 {
		t.Fatalf("created %d deliveries, want 1", len(ds))
	}
}

func TestRouteSkipsInactiveSource(t *testing.T) {
	f := newFixture(t, "order.created")
	f.addConnection(t, connection.StatusActive, destination.StatusActive, nil)

	f.src.Status = source.StatusPaused
	if err := f.store.UpdateSource(context.Background(), f.src); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	r := route.NewRouter(f.store, f.queue, 18, nil)
	if err := r.Route(context.Background(), f.evt.ID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if ds := f.deliveries(t); len(ds) != 0 {
		t.Fatalf("created %d deliveries for a paused source", len(ds))
	}
}

func TestRouteSkipsUnroutableEvent(t *testing.T) {
	f := newFixture(t, "order.created")
	f.addConnection(t, connection.StatusActive, destination.StatusActive, nil)

	if err := f.store.UpdateEventStatus(context.Background(), f.evt.ID, event.StatusAuthenticationFailed); err != nil {
		t.Fatalf("UpdateEventStatus: %v", err)
	}

	r := route.NewRouter(f.store, f.queue, 18, nil)
	if err := r.Route(context.Background(), f.evt.ID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if ds := f.deliveries(t); len(ds) != 0 {
		t.Fatalf("created %d deliveries for a rejected event", len(ds))
	}
}

func TestRouteDelayRuleSchedulesLater(t *testing.T) {
	f := newFixture(t, "order.created")
	f.addConnection(t, connection.StatusActive, destination.StatusActive, connection.RuleSet{
		connection.DelayRule{Seconds: 300},
	})

	before := time.Now()
	r := route.NewRouter(f.store, f.queue, 18, nil)
	if err := r.Route(context.Background(), f.evt.ID); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if len(f.queue.immediate) != 0 {
		t.Errorf("enqueued %d immediate tasks, want 0 for a delayed connection", len(f.queue.immediate))
	}
	if len(f.queue.scheduled) != 1 {
		t.Fatalf("scheduled %d tasks, want 1", len(f.queue.scheduled))
	}
	delay := f.queue.at[0].Sub(before)
	if delay < 4*time.Minute || delay > 6*time.Minute {
		t.Errorf("scheduled delay = %v, want about 5m", delay)
	}

	ds := f.deliveries(t)
	if len(ds) != 1 {
		t.Fatalf("created %d deliveries, want 1", len(ds))
	}
	if got := ds[0].NextAttemptAt.Sub(before); got < 4*time.Minute {
		t.Errorf("delivery next attempt = %v out, want the delay applied", got)
	}
}

func TestReplayBypassesFilters(t *testing.T) {
	f := newFixture(t, "order.deleted")
	f.addConnection(t, connection.StatusActive, destination.StatusActive, connection.RuleSet{
		connection.FilterRule{EventTypes: []string{"order.created"}},
	})
	f.addConnection(t, connection.StatusPaused, destination.StatusActive, nil)
	f.addConnection(t, connection.StatusActive, destination.StatusActive, nil)

	r := route.NewRouter(f.store, f.queue, 18, nil)
	created, err := r.Replay(context.Background(), f.evt.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	// The filtered connection gets the event anyway; only the paused one
	// is skipped.
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}
	if ds := f.deliveries(t); len(ds) != 2 {
		t.Fatalf("stored %d deliveries, want 2", len(ds))
	}
}

func TestReplayCountsOnlyRealDeliveries(t *testing.T) {
	f := newFixture(t, "order.created")
	f.addConnection(t, connection.StatusActive, destination.StatusPaused, nil)

	r := route.NewRouter(f.store, f.queue, 18, nil)
	created, err := r.Replay(context.Background(), f.evt.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0 when the destination is paused", created)
	}
}
