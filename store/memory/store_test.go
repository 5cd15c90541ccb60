package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/store/memory"
)

func newSource(token string) *source.Source {
	return &source.Source{
		Entity:      entity.New(),
		ID:          id.NewSourceID(),
		Name:        "src",
		IngestToken: token,
		Status:      source.StatusActive,
	}
}

func TestCreateSourceRejectsDuplicateToken(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	if err := st.CreateSource(ctx, newSource("tok_dup")); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	err := st.CreateSource(ctx, newSource("tok_dup"))
	if !errors.Is(err, hookline.ErrDuplicateIngestToken) {
		t.Fatalf("err = %v, want ErrDuplicateIngestToken", err)
	}
}

func TestUpdateSourcePreservesToken(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	src := newSource("tok_original")
	if err := st.CreateSource(ctx, src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	src.IngestToken = "tok_tampered"
	src.Name = "renamed"
	if err := st.UpdateSource(ctx, src); err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}

	got, err := st.GetSourceByToken(ctx, "tok_original")
	if err != nil {
		t.Fatalf("GetSourceByToken: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("name = %q, want renamed", got.Name)
	}
	if _, err := st.GetSourceByToken(ctx, "tok_tampered"); !errors.Is(err, hookline.ErrSourceNotFound) {
		t.Errorf("tampered token resolves: %v", err)
	}
}

func TestListBySourceOrdersByPriority(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	srcID := id.NewSourceID()

	for _, priority := range []int{5, 1, 3} {
		conn := &connection.Connection{
			Entity:   entity.New(),
			ID:       id.NewConnectionID(),
			SourceID: srcID,
			Priority: priority,
			Status:   connection.StatusActive,
		}
		if err := st.CreateConnection(ctx, conn); err != nil {
			t.Fatalf("CreateConnection: %v", err)
		}
	}

	conns, err := st.ListBySource(ctx, srcID, connection.ListOpts{})
	if err != nil {
		t.Fatalf("ListBySource: %v", err)
	}
	if len(conns) != 3 {
		t.Fatalf("got %d connections, want 3", len(conns))
	}
	for i, want := range []int{1, 3, 5} {
		if conns[i].Priority != want {
			t.Errorf("conns[%d].Priority = %d, want %d", i, conns[i].Priority, want)
		}
	}
}

func TestDueDeliveriesClaimAndRelease(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	due := time.Now().Add(-time.Second)
	d := &delivery.Delivery{
		Entity:        entity.New(),
		ID:            id.NewDeliveryID(),
		EventID:       id.NewEventID(),
		Status:        delivery.StatusQueued,
		MaxAttempts:   3,
		NextAttemptAt: &due,
	}
	if err := st.CreateDelivery(ctx, d); err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}

	first, err := st.DueDeliveries(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("DueDeliveries: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first scan claimed %d, want 1", len(first))
	}

	// Claimed deliveries stay invisible until the claimer writes back.
	second, err := st.DueDeliveries(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("DueDeliveries: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second scan claimed %d, want 0 while held", len(second))
	}

	if err := st.UpdateDelivery(ctx, first[0]); err != nil {
		t.Fatalf("UpdateDelivery: %v", err)
	}
	third, err := st.DueDeliveries(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("DueDeliveries: %v", err)
	}
	if len(third) != 1 {
		t.Fatalf("scan after release claimed %d, want 1", len(third))
	}
}

func TestDueDeliveriesSkipsTerminalAndFuture(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	due := time.Now().Add(-time.Second)
	future := time.Now().Add(time.Hour)
	for _, d := range []*delivery.Delivery{
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusSuccess, AttemptCount: 1, MaxAttempts: 3, NextAttemptAt: &due},
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusFailed, AttemptCount: 3, MaxAttempts: 3, NextAttemptAt: &due},
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusQueued, MaxAttempts: 3, NextAttemptAt: &future},
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusQueued, MaxAttempts: 3},
	} {
		if err := st.CreateDelivery(ctx, d); err != nil {
			t.Fatalf("CreateDelivery: %v", err)
		}
	}

	got, err := st.DueDeliveries(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("DueDeliveries: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("claimed %d deliveries, want 0", len(got))
	}
}

func TestGetDeliveryReturnsCopy(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	d := &delivery.Delivery{
		Entity:      entity.New(),
		ID:          id.NewDeliveryID(),
		Status:      delivery.StatusQueued,
		MaxAttempts: 3,
	}
	if err := st.CreateDelivery(ctx, d); err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}

	got, err := st.GetDelivery(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDelivery: %v", err)
	}
	got.Status = delivery.StatusCancelled

	again, _ := st.GetDelivery(ctx, d.ID)
	if again.Status != delivery.StatusQueued {
		t.Fatalf("mutation through a returned copy leaked into the store")
	}
}

func TestListAttemptsOrdersByNumber(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	delID := id.NewDeliveryID()

	for _, n := range []int{3, 1, 2} {
		a := &delivery.Attempt{
			Entity:     entity.New(),
			ID:         id.NewAttemptID(),
			DeliveryID: delID,
			Number:     n,
			StartedAt:  time.Now(),
		}
		if err := st.CreateAttempt(ctx, a); err != nil {
			t.Fatalf("CreateAttempt: %v", err)
		}
	}

	attempts, err := st.ListAttempts(ctx, delID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	for i, a := range attempts {
		if a.Number != i+1 {
			t.Errorf("attempts[%d].Number = %d, want %d", i, a.Number, i+1)
		}
	}
}

func TestCountPending(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	for _, d := range []*delivery.Delivery{
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusQueued, MaxAttempts: 3},
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusFailed, AttemptCount: 1, MaxAttempts: 3},
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusFailed, AttemptCount: 3, MaxAttempts: 3},
		{Entity: entity.New(), ID: id.NewDeliveryID(), Status: delivery.StatusSuccess, AttemptCount: 1, MaxAttempts: 3},
	} {
		if err := st.CreateDelivery(ctx, d); err != nil {
			t.Fatalf("CreateDelivery: %v", err)
		}
	}

	count, err := st.CountPending(ctx)
	if err != nil {
		t.Fatalf("CountPending: %v", err)
	}
	// Queued plus failed-with-budget; exhausted and succeeded are settled.
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestPingAfterClose(t *testing.T) {
	st := memory.New()
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Ping(context.Background()); !errors.Is(err, hookline.ErrStoreClosed) {
		t.Fatalf("Ping after close = %v, want ErrStoreClosed", err)
	}
}
