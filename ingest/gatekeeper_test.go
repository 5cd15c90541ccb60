package ingest_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/ingest"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/task"
	"github.com/hookline/hookline/verify"
)

type recordQueue struct {
	mu    sync.Mutex
	tasks []task.Task
}

func (q *recordQueue) Enqueue(_ context.Context, t task.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *recordQueue) EnqueueAt(_ context.Context, t task.Task, _ time.Time) error {
	return q.Enqueue(context.Background(), t)
}

func seedSource(t *testing.T, st *memory.Store, mutate func(*source.Source)) *source.Source {
	t.Helper()
	src := &source.Source{
		Entity:      entity.New(),
		ID:          id.NewSourceID(),
		Name:        "payments",
		IngestToken: "tok_payments_1",
		Status:      source.StatusActive,
	}
	if mutate != nil {
		mutate(src)
	}
	if err := st.CreateSource(context.Background(), src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	return src
}

func githubSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func countEvents(t *testing.T, st *memory.Store) int {
	t.Helper()
	evts, err := st.ListEvents(context.Background(), event.ListOpts{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return len(evts)
}

func TestReceiveAccepted(t *testing.T) {
	st := memory.New()
	queue := &recordQueue{}
	seedSource(t, st, nil)
	g := ingest.NewGatekeeper(st, queue, nil)

	body := []byte(`{"type":"invoice.paid","amount":1200}`)
	receipt := g.Receive(context.Background(), ingest.Request{
		Token:          "tok_payments_1",
		Body:           body,
		DeclaredLength: int64(len(body)),
		Headers:        http.Header{"Content-Type": []string{"application/json"}},
		ContentType:    "application/json",
		RemoteIP:       "203.0.113.9",
	})

	if receipt.HTTPStatus != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", receipt.HTTPStatus)
	}
	if receipt.EventID.IsNil() {
		t.Fatal("no event ID in receipt")
	}
	if receipt.Message != "Event received" {
		t.Errorf("message = %q", receipt.Message)
	}

	evt, err := st.GetEvent(context.Background(), receipt.EventID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if evt.Status != event.StatusReceived {
		t.Errorf("event status = %q, want %q", evt.Status, event.StatusReceived)
	}
	if evt.EventType != "invoice.paid" {
		t.Errorf("event type = %q, want invoice.paid", evt.EventType)
	}
	if evt.BodySize != len(body) {
		t.Errorf("body size = %d, want %d", evt.BodySize, len(body))
	}
	if evt.SourceIP != "203.0.113.9" {
		t.Errorf("source ip = %q", evt.SourceIP)
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(queue.tasks))
	}
	rt, ok := queue.tasks[0].(task.RouteEvent)
	if !ok {
		t.Fatalf("enqueued %T, want task.RouteEvent", queue.tasks[0])
	}
	if rt.EventID.String() != receipt.EventID.String() {
		t.Errorf("routed event %s, want %s", rt.EventID, receipt.EventID)
	}
}

func TestReceiveCustomAckStatus(t *testing.T) {
	st := memory.New()
	seedSource(t, st, func(src *source.Source) { src.SuccessStatus = 200 })
	g := ingest.NewGatekeeper(st, &recordQueue{}, nil)

	receipt := g.Receive(context.Background(), ingest.Request{
		Token: "tok_payments_1",
		Body:  []byte(`{}`),
	})
	if receipt.HTTPStatus != http.StatusOK {
		t.Fatalf("status = %d, want 200", receipt.HTTPStatus)
	}
}

func TestReceiveUnknownToken(t *testing.T) {
	st := memory.New()
	g := ingest.NewGatekeeper(st, &recordQueue{}, nil)

	receipt := g.Receive(context.Background(), ingest.Request{
		Token: "tok_nope",
		Body:  []byte(`{}`),
	})
	if receipt.HTTPStatus != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", receipt.HTTPStatus)
	}
	if receipt.Error != "Invalid token" {
		t.Errorf("error = %q, want %q", receipt.Error, "Invalid token")
	}
	if got := countEvents(t, st); got != 0 {
		t.Errorf("stored %d events for an unknown token", got)
	}
}

func TestReceivePausedSource(t *testing.T) {
	st := memory.New()
	seedSource(t, st, func(src *source.Source) { src.Status = source.StatusPaused })
	g := ingest.NewGatekeeper(st, &recordQueue{}, nil)

	receipt := g.Receive(context.Background(), ingest.Request{
		Token: "tok_payments_1",
		Body:  []byte(`{}`),
	})
	if receipt.HTTPStatus != http.StatusGone {
		t.Fatalf("status = %d, want 410", receipt.HTTPStatus)
	}
	if receipt.Error != "Source is paused" {
		t.Errorf("error = %q, want %q", receipt.Error, "Source is paused")
	}
	if got := countEvents(t, st); got != 0 {
		t.Errorf("stored %d events for a paused source", got)
	}
}

func TestReceiveSignature(t *testing.T) {
	const secret = "whsec_test"
	body := []byte(`{"type":"push"}`)

	for _, tc := range []struct {
		name       string
		headers    http.Header
		wantStatus int
	}{
		{
			name:       "valid",
			headers:    http.Header{"X-Hub-Signature-256": []string{githubSignature(secret, body)}},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "wrong secret",
			headers:    http.Header{"X-Hub-Signature-256": []string{githubSignature("other", body)}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			headers:    http.Header{},
			wantStatus: http.StatusUnauthorized,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st := memory.New()
			queue := &recordQueue{}
			seedSource(t, st, func(src *source.Source) {
				src.VerificationScheme = verify.SchemeGitHub
				src.VerificationSecret = secret
			})
			g := ingest.NewGatekeeper(st, queue, nil)

			receipt := g.Receive(context.Background(), ingest.Request{
				Token:   "tok_payments_1",
				Body:    body,
				Headers: tc.headers,
			})
			if receipt.HTTPStatus != tc.wantStatus {
				t.Fatalf("status = %d, want %d", receipt.HTTPStatus, tc.wantStatus)
			}

			// A rejected payload is still captured for audit, with the
			// status flipped and no routing scheduled.
			if receipt.EventID.IsNil() {
				t.Fatal("no event ID in receipt")
			}
			evt, err := st.GetEvent(context.Background(), receipt.EventID)
			if err != nil {
				t.Fatalf("GetEvent: %v", err)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				if receipt.Error != "Invalid signature" {
					t.Errorf("error = %q, want %q", receipt.Error, "Invalid signature")
				}
				if evt.Status != event.StatusAuthenticationFailed {
					t.Errorf("event status = %q, want %q", evt.Status, event.StatusAuthenticationFailed)
				}
				queue.mu.Lock()
				n := len(queue.tasks)
				queue.mu.Unlock()
				if n != 0 {
					t.Errorf("enqueued %d tasks for a rejected event", n)
				}
			} else if evt.Status != event.StatusReceived {
				t.Errorf("event status = %q, want %q", evt.Status, event.StatusReceived)
			}
		})
	}
}

func TestReceiveOversized(t *testing.T) {
	const limit = 64

	t.Run("unknown token gets no audit event", func(t *testing.T) {
		st := memory.New()
		g := ingest.NewGatekeeper(st, &recordQueue{}, nil, ingest.WithMaxPayloadBytes(limit))

		receipt := g.Receive(context.Background(), ingest.Request{
			Token: "tok_nope",
			Body:  make([]byte, limit+1),
		})
		if receipt.HTTPStatus != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", receipt.HTTPStatus)
		}
		if !receipt.EventID.IsNil() {
			t.Error("receipt carries an event ID for an unknown token")
		}
		if got := countEvents(t, st); got != 0 {
			t.Errorf("stored %d events", got)
		}
	})

	t.Run("valid token gets audit event without body", func(t *testing.T) {
		st := memory.New()
		queue := &recordQueue{}
		seedSource(t, st, nil)
		g := ingest.NewGatekeeper(st, queue, nil, ingest.WithMaxPayloadBytes(limit))

		receipt := g.Receive(context.Background(), ingest.Request{
			Token:          "tok_payments_1",
			Body:           make([]byte, limit+1),
			DeclaredLength: 5000,
		})
		if receipt.HTTPStatus != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", receipt.HTTPStatus)
		}
		if receipt.Error != "Payload too large" {
			t.Errorf("error = %q, want %q", receipt.Error, "Payload too large")
		}
		if receipt.EventID.IsNil() {
			t.Fatal("no audit event recorded")
		}

		evt, err := st.GetEvent(context.Background(), receipt.EventID)
		if err != nil {
			t.Fatalf("GetEvent: %v", err)
		}
		if evt.Status != event.StatusPayloadTooLarge {
			t.Errorf("event status = %q, want %q", evt.Status, event.StatusPayloadTooLarge)
		}
		if len(evt.RawBody) != 0 {
			t.Errorf("audit event retained %d body bytes", len(evt.RawBody))
		}
		if evt.BodySize != 5000 {
			t.Errorf("body size = %d, want declared length 5000", evt.BodySize)
		}

		queue.mu.Lock()
		n := len(queue.tasks)
		queue.mu.Unlock()
		if n != 0 {
			t.Errorf("enqueued %d tasks for an oversized payload", n)
		}
	})

	t.Run("declared length alone triggers rejection", func(t *testing.T) {
		st := memory.New()
		seedSource(t, st, nil)
		g := ingest.NewGatekeeper(st, &recordQueue{}, nil, ingest.WithMaxPayloadBytes(limit))

		receipt := g.Receive(context.Background(), ingest.Request{
			Token:          "tok_payments_1",
			Body:           []byte("small"),
			DeclaredLength: limit + 1,
		})
		if receipt.HTTPStatus != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", receipt.HTTPStatus)
		}
	})
}

func TestReceiveStoresExactlyOneEventPerCall(t *testing.T) {
	st := memory.New()
	seedSource(t, st, nil)
	g := ingest.NewGatekeeper(st, &recordQueue{}, nil)

	for i := 0; i < 5; i++ {
		receipt := g.Receive(context.Background(), ingest.Request{
			Token: "tok_payments_1",
			Body:  []byte(`{"type":"ping"}`),
		})
		if receipt.HTTPStatus != http.StatusAccepted {
			t.Fatalf("call %d: status = %d", i, receipt.HTTPStatus)
		}
	}

	if got := countEvents(t, st); got != 5 {
		t.Fatalf("stored %d events for 5 calls", got)
	}
}
