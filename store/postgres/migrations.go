package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Hookline store.
var Migrations = migrate.NewGroup("hookline")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_hookline_sources",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hookline_sources (
    id                      TEXT PRIMARY KEY,
    name                    TEXT NOT NULL DEFAULT '',
    provider                TEXT NOT NULL DEFAULT '',
    ingest_token            TEXT NOT NULL UNIQUE,
    status                  TEXT NOT NULL DEFAULT 'active',
    verification_scheme     TEXT NOT NULL DEFAULT 'none',
    verification_secret     TEXT NOT NULL DEFAULT '',
    success_status          INT NOT NULL DEFAULT 0,
    default_forward_headers TEXT[] NOT NULL DEFAULT '{}',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hookline_sources`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hookline_destinations",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hookline_destinations (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL DEFAULT '',
    method          TEXT NOT NULL DEFAULT 'POST',
    headers         JSONB NOT NULL DEFAULT '{}',
    auth_type       TEXT NOT NULL DEFAULT 'none',
    auth_value      TEXT NOT NULL DEFAULT '',
    timeout_seconds INT NOT NULL DEFAULT 0,
    status          TEXT NOT NULL DEFAULT 'active',
    subscribers     TEXT[] NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hookline_destinations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hookline_connections",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hookline_connections (
    id                  TEXT PRIMARY KEY,
    source_id           TEXT NOT NULL DEFAULT '',
    destination_id      TEXT NOT NULL DEFAULT '',
    priority            INT NOT NULL DEFAULT 0,
    status              TEXT NOT NULL DEFAULT 'active',
    rules               JSONB NOT NULL DEFAULT '[]',
    forward_all_headers BOOLEAN NOT NULL DEFAULT FALSE,
    forward_headers     TEXT[] NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookline_connections_source ON hookline_connections (source_id, priority);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hookline_connections`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hookline_events",
			Version: "20260101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hookline_events (
    id             TEXT PRIMARY KEY,
    source_id      TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'received',
    raw_body       BYTEA,
    content_type   TEXT NOT NULL DEFAULT '',
    body_is_binary BOOLEAN NOT NULL DEFAULT FALSE,
    body_size      INT NOT NULL DEFAULT 0,
    headers        JSONB NOT NULL DEFAULT '{}',
    query_params   JSONB NOT NULL DEFAULT '{}',
    source_ip      TEXT NOT NULL DEFAULT '',
    event_type     TEXT NOT NULL DEFAULT '',
    received_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookline_events_source ON hookline_events (source_id);
CREATE INDEX IF NOT EXISTS idx_hookline_events_received ON hookline_events (received_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hookline_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hookline_deliveries",
			Version: "20260101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hookline_deliveries (
    id                   TEXT PRIMARY KEY,
    event_id             TEXT NOT NULL DEFAULT '',
    connection_id        TEXT NOT NULL DEFAULT '',
    destination_id       TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT 'pending',
    attempt_count        INT NOT NULL DEFAULT 0,
    max_attempts         INT NOT NULL DEFAULT 0,
    next_attempt_at      TIMESTAMPTZ,
    last_error_code      TEXT NOT NULL DEFAULT '',
    last_response_status INT NOT NULL DEFAULT 0,
    completed_at         TIMESTAMPTZ,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookline_deliveries_due ON hookline_deliveries (next_attempt_at) WHERE next_attempt_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_hookline_deliveries_event ON hookline_deliveries (event_id);
CREATE INDEX IF NOT EXISTS idx_hookline_deliveries_destination ON hookline_deliveries (destination_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hookline_deliveries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_hookline_attempts",
			Version: "20260101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS hookline_attempts (
    id               TEXT PRIMARY KEY,
    delivery_id      TEXT NOT NULL DEFAULT '',
    number           INT NOT NULL DEFAULT 0,
    request_url      TEXT NOT NULL DEFAULT '',
    request_method   TEXT NOT NULL DEFAULT '',
    request_headers  JSONB NOT NULL DEFAULT '{}',
    request_body     TEXT NOT NULL DEFAULT '',
    response_status  INT NOT NULL DEFAULT 0,
    response_headers JSONB NOT NULL DEFAULT '{}',
    response_body    TEXT NOT NULL DEFAULT '',
    success          BOOLEAN NOT NULL DEFAULT FALSE,
    error_code       TEXT NOT NULL DEFAULT '',
    error_message    TEXT NOT NULL DEFAULT '',
    latency_ms       BIGINT NOT NULL DEFAULT 0,
    started_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_hookline_attempts_delivery ON hookline_attempts (delivery_id, number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS hookline_attempts`)
				return err
			},
		},
	)
}
