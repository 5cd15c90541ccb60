package source

import (
	"context"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/verify"
)

// Status is the lifecycle status of a source.
type Status string

const (
	// StatusActive indicates the source accepts inbound webhooks.
	StatusActive Status = "active"

	// StatusPaused indicates the source rejects inbound webhooks with 410 Gone.
	StatusPaused Status = "paused"
)

// Source is an inbound webhook channel identified by a secret ingest token.
type Source struct {
	entity.Entity

	// ID is the unique TypeID for this source.
	ID id.ID `json:"id"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Provider is the provider slug this source receives from (e.g. "stripe").
	// Informational; it also selects the default verification scheme and the
	// default forwarded-header allow-list for new connections.
	Provider string `json:"provider,omitempty"`

	// IngestToken is the opaque token embedded in the ingest URL.
	// Globally unique and immutable once issued.
	IngestToken string `json:"ingest_token"`

	// Status controls whether the source accepts webhooks.
	Status Status `json:"status"`

	// VerificationScheme selects the signature verification applied at ingestion.
	VerificationScheme verify.Scheme `json:"verification_scheme"`

	// VerificationSecret is the shared signing secret. Blank disables
	// verification. Encrypted at rest; never serialized.
	VerificationSecret string `json:"-"`

	// SuccessStatus is the acknowledgement status code returned for accepted
	// webhooks. Zero means the platform default (202).
	SuccessStatus int `json:"success_status,omitempty"`

	// DefaultForwardHeaders is the provider-default allow-list of inbound
	// headers forwarded to destinations when a connection does not configure
	// its own forwarding policy.
	DefaultForwardHeaders []string `json:"default_forward_headers,omitempty"`
}

// Active reports whether the source accepts inbound webhooks.
func (s *Source) Active() bool {
	return s.Status == StatusActive
}

// AckStatus returns the acknowledgement status code for accepted webhooks.
func (s *Source) AckStatus() int {
	if s.SuccessStatus == 0 {
		return 202
	}
	return s.SuccessStatus
}

// ListOpts configures filtering and pagination for source listing.
type ListOpts struct {
	Offset int
	Limit  int
	Status *Status
}

// Store defines the persistence contract for sources.
type Store interface {
	// CreateSource persists a new source. Returns ErrDuplicateIngestToken
	// if the ingest token is already in use.
	CreateSource(ctx context.Context, src *Source) error

	// GetSource returns a source by ID.
	GetSource(ctx context.Context, srcID id.ID) (*Source, error)

	// GetSourceByToken returns the source owning the given ingest token.
	GetSourceByToken(ctx context.Context, token string) (*Source, error)

	// UpdateSource modifies an existing source.
	UpdateSource(ctx context.Context, src *Source) error

	// DeleteSource removes a source.
	DeleteSource(ctx context.Context, srcID id.ID) error

	// ListSources returns sources, optionally filtered.
	ListSources(ctx context.Context, opts ListOpts) ([]*Source, error)
}
