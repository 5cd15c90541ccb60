// Package hookline provides a composable webhook relay engine for Go.
//
// Hookline receives webhooks from external providers on tenant-issued ingest
// tokens, verifies their origin with provider-specific signature schemes,
// fans them out across routing connections, and delivers them to configured
// HTTP destinations with at-least-once semantics, capped exponential-backoff
// retries, and a full per-attempt audit trail.
//
// Key features:
//   - Provider signature verification (Stripe, Shopify, GitHub, generic HMAC)
//   - Rule-based routing with event-type filters and delayed delivery
//   - Explicit delivery state machine with cancellation and replay
//   - Append-only delivery attempt audit with secret redaction
//   - Composable store pattern with Postgres and in-memory backends
//   - Pluggable task queue (in-process or Redis) for asynchronous work
//
// Quick start:
//
//	hl, err := hookline.New(
//	    hookline.WithStore(memory.New()),
//	    hookline.WithQueue(task.NewMemoryQueue()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hl.Start(ctx)
//	defer hl.Stop()
//
//	r := chi.NewRouter()
//	ingest.NewHandler(hl.Gatekeeper()).Mount(r)
package hookline
