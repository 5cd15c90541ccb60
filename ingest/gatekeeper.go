// Package ingest receives raw webhook payloads, enforces the size cap,
// verifies signatures, and records exactly one event per accepted call.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/task"
	"github.com/hookline/hookline/verify"
)

// MaxPayloadBytes is the default payload size cap: 1 MiB, checked against
// both the declared Content-Length and the measured body.
const MaxPayloadBytes = 1 << 20

// Store is the narrow storage surface the gatekeeper needs.
type Store interface {
	GetSourceByToken(ctx context.Context, token string) (*source.Source, error)
	CreateEvent(ctx context.Context, evt *event.Event) error
	UpdateEventStatus(ctx context.Context, evtID id.ID, status event.Status) error
}

// EventRecorder receives per-event observations for metrics.
type EventRecorder interface {
	ObserveEvent(ctx context.Context, status string)
}

// Request carries everything ingestion needs about one inbound call.
type Request struct {
	// Token is the opaque ingest token from the URL path.
	Token string

	// Body is the raw payload, already capped at MaxPayloadBytes+1 by
	// the transport layer so oversize is detectable without buffering
	// arbitrary input.
	Body []byte

	// DeclaredLength is the Content-Length header value, -1 when absent.
	DeclaredLength int64

	// Headers are the inbound request headers.
	Headers http.Header

	// QueryParams are the single-valued query parameters.
	QueryParams map[string]string

	// ContentType is the inbound Content-Type header.
	ContentType string

	// RemoteIP is the caller's address.
	RemoteIP string
}

// Receipt is the outcome of one ingestion call.
type Receipt struct {
	// EventID is set whenever an event row was created, including audit
	// rows for oversized or unverified payloads.
	EventID id.ID

	// HTTPStatus is the status code the caller should receive.
	HTTPStatus int

	// Error is the machine-readable error string, empty on success.
	Error string

	// Message is the human-readable detail.
	Message string
}

// Gatekeeper applies the ingestion checks in a fixed order: size cap,
// token resolution, source status, classification, signature.
type Gatekeeper struct {
	store    Store
	queue    task.Queue
	logger   *slog.Logger
	recorder EventRecorder
	maxBytes int
	now      func() time.Time
}

// GatekeeperOption configures a Gatekeeper.
type GatekeeperOption func(*Gatekeeper)

// WithMaxPayloadBytes overrides the payload size cap.
func WithMaxPayloadBytes(n int) GatekeeperOption {
	return func(g *Gatekeeper) {
		if n > 0 {
			g.maxBytes = n
		}
	}
}

// WithEventRecorder wires a metrics recorder into the gatekeeper.
func WithEventRecorder(r EventRecorder) GatekeeperOption {
	return func(g *Gatekeeper) { g.recorder = r }
}

// NewGatekeeper creates an ingestion gatekeeper.
func NewGatekeeper(store Store, queue task.Queue, logger *slog.Logger, opts ...GatekeeperOption) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gatekeeper{
		store:    store,
		queue:    queue,
		logger:   logger,
		maxBytes: MaxPayloadBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Receive runs the ingestion pipeline for one inbound payload. The size
// check runs before token resolution, so an oversized body is rejected
// even when the token is invalid; a valid token still gets an audit event
// with the size recorded and no body stored.
func (g *Gatekeeper) Receive(ctx context.Context, req Request) Receipt {
	oversized := req.DeclaredLength > int64(g.maxBytes) || len(req.Body) > g.maxBytes

	if oversized {
		return g.rejectOversized(ctx, req)
	}

	src, err := g.store.GetSourceByToken(ctx, req.Token)
	if err != nil {
		return Receipt{HTTPStatus: http.StatusNotFound, Error: "Invalid token"}
	}
	if !src.Active() {
		return Receipt{HTTPStatus: http.StatusGone, Error: "Source is paused"}
	}

	c := Classify(req.Body, req.ContentType, req.Headers)

	evt := &event.Event{
		Entity:       entity.New(),
		ID:           id.NewEventID(),
		SourceID:     src.ID,
		Status:       event.StatusReceived,
		RawBody:      req.Body,
		ContentType:  c.ContentType,
		BodyIsBinary: c.Binary,
		BodySize:     len(req.Body),
		Headers:      CaptureHeaders(req.Headers),
		QueryParams:  req.QueryParams,
		SourceIP:     req.RemoteIP,
		EventType:    c.EventType,
		ReceivedAt:   g.now(),
	}
	if err := g.store.CreateEvent(ctx, evt); err != nil {
		g.logger.ErrorContext(ctx, "store event", "source_id", src.ID, "error", err)
		return Receipt{HTTPStatus: http.StatusInternalServerError, Error: "Internal error"}
	}

	if !verify.Verify(src.VerificationScheme, src.VerificationSecret, req.Body, req.Headers) {
		if err := g.store.UpdateEventStatus(ctx, evt.ID, event.StatusAuthenticationFailed); err != nil {
			g.logger.ErrorContext(ctx, "flip event status", "event_id", evt.ID, "error", err)
		}
		g.observe(ctx, string(event.StatusAuthenticationFailed))
		g.logger.WarnContext(ctx, "signature verification failed",
			"event_id", evt.ID, "source_id", src.ID, "scheme", src.VerificationScheme)
		return Receipt{
			EventID:    evt.ID,
			HTTPStatus: http.StatusUnauthorized,
			Error:      "Invalid signature",
		}
	}

	if err := g.queue.Enqueue(ctx, task.RouteEvent{EventID: evt.ID}); err != nil {
		g.logger.ErrorContext(ctx, "enqueue routing", "event_id", evt.ID, "error", err)
		return Receipt{HTTPStatus: http.StatusInternalServerError, Error: "Internal error"}
	}

	g.observe(ctx, string(event.StatusReceived))
	g.logger.InfoContext(ctx, "event received",
		"event_id", evt.ID,
		"source_id", src.ID,
		"event_type", evt.EventType,
		"bytes", evt.BodySize)

	return Receipt{
		EventID:    evt.ID,
		HTTPStatus: src.AckStatus(),
		Message:    "Event received",
	}
}

func (g *Gatekeeper) rejectOversized(ctx context.Context, req Request) Receipt {
	receipt := Receipt{
		HTTPStatus: http.StatusRequestEntityTooLarge,
		Error:      "Payload too large",
		Message:    "payload exceeds the 1 MiB limit",
	}

	src, err := g.store.GetSourceByToken(ctx, req.Token)
	if err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			g.logger.DebugContext(ctx, "oversized payload with unknown token")
		}
		return receipt
	}

	size := len(req.Body)
	if req.DeclaredLength > int64(size) {
		size = int(req.DeclaredLength)
	}

	evt := &event.Event{
		Entity:      entity.New(),
		ID:          id.NewEventID(),
		SourceID:    src.ID,
		Status:      event.StatusPayloadTooLarge,
		ContentType: req.ContentType,
		BodySize:    size,
		Headers:     CaptureHeaders(req.Headers),
		QueryParams: req.QueryParams,
		SourceIP:    req.RemoteIP,
		ReceivedAt:  g.now(),
	}
	if err := g.store.CreateEvent(ctx, evt); err != nil {
		g.logger.ErrorContext(ctx, "store oversize audit event", "source_id", src.ID, "error", err)
		return receipt
	}

	g.observe(ctx, string(event.StatusPayloadTooLarge))
	receipt.EventID = evt.ID
	return receipt
}

func (g *Gatekeeper) observe(ctx context.Context, status string) {
	if g.recorder != nil {
		g.recorder.ObserveEvent(ctx, status)
	}
}
