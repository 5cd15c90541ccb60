package observability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hookline/hookline"

// Tracer provides OpenTelemetry tracing for the pipeline.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new pipeline tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// StartIngestSpan starts a span for one ingestion call. The ingest token
// is a credential, so only a fingerprint of it reaches the trace backend.
func (t *Tracer) StartIngestSpan(ctx context.Context, sourceToken string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "hookline.ingest",
		trace.WithAttributes(
			attribute.String("hookline.source_token_hash", TokenFingerprint(sourceToken)),
		),
	)
}

// TokenFingerprint returns a short stable digest of an ingest token for
// correlating telemetry without exposing the credential.
func TokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}

// StartAttemptSpan starts a span for one delivery attempt.
func (t *Tracer) StartAttemptSpan(ctx context.Context, deliveryID, eventID, destinationID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "hookline.delivery_attempt",
		trace.WithAttributes(
			attribute.String("hookline.delivery_id", deliveryID),
			attribute.String("hookline.event_id", eventID),
			attribute.String("hookline.destination_id", destinationID),
		),
	)
}

// EndAttemptSpan ends an attempt span with result attributes.
func (t *Tracer) EndAttemptSpan(span trace.Span, statusCode int, latencyMs int64, errCode string) {
	span.SetAttributes(
		attribute.Int("http.status_code", statusCode),
		attribute.Int64("hookline.latency_ms", latencyMs),
	)
	if errCode != "" {
		span.SetAttributes(attribute.String("hookline.error_code", errCode))
	}
	span.End()
}
