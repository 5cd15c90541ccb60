package source

import (
	"context"
	"log/slog"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/verify"
)

// Service provides source management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new source service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Input is the creation/update payload for sources.
type Input struct {
	Name                  string        `json:"name"`
	Provider              string        `json:"provider"`
	VerificationScheme    verify.Scheme `json:"verification_scheme"`
	VerificationSecret    string        `json:"verification_secret"`
	SuccessStatus         int           `json:"success_status"`
	DefaultForwardHeaders []string      `json:"default_forward_headers"`
}

// Create registers a new source and issues its ingest token.
func (svc *Service) Create(ctx context.Context, in Input) (*Source, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}

	scheme := in.VerificationScheme
	if scheme == "" {
		scheme = verify.SchemeNone
	}
	if !scheme.Valid() {
		return nil, &ValidationError{Field: "verification_scheme", Message: "unknown scheme"}
	}

	if in.SuccessStatus != 0 && (in.SuccessStatus < 200 || in.SuccessStatus > 299) {
		return nil, &ValidationError{Field: "success_status", Message: "must be a 2xx status code"}
	}

	src := &Source{
		Entity:                entity.New(),
		ID:                    id.NewSourceID(),
		Name:                  in.Name,
		Provider:              in.Provider,
		IngestToken:           verify.GenerateIngestToken(),
		Status:                StatusActive,
		VerificationScheme:    scheme,
		VerificationSecret:    in.VerificationSecret,
		SuccessStatus:         in.SuccessStatus,
		DefaultForwardHeaders: in.DefaultForwardHeaders,
	}

	if err := svc.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "source created", "source_id", src.ID, "provider", src.Provider)
	return src, nil
}

// Get returns a source by ID.
func (svc *Service) Get(ctx context.Context, srcID id.ID) (*Source, error) {
	return svc.store.GetSource(ctx, srcID)
}

// List returns sources matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Source, error) {
	return svc.store.ListSources(ctx, opts)
}

// SetStatus pauses or resumes a source. The ingest token is untouched.
func (svc *Service) SetStatus(ctx context.Context, srcID id.ID, status Status) (*Source, error) {
	src, err := svc.store.GetSource(ctx, srcID)
	if err != nil {
		return nil, err
	}

	src.Status = status
	if err := svc.store.UpdateSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// RotateSecret replaces the verification secret with a freshly generated one
// and returns it. Callers must hand the new secret to the provider.
func (svc *Service) RotateSecret(ctx context.Context, srcID id.ID) (string, error) {
	src, err := svc.store.GetSource(ctx, srcID)
	if err != nil {
		return "", err
	}

	secret := verify.GenerateSecret()
	src.VerificationSecret = secret
	if err := svc.store.UpdateSource(ctx, src); err != nil {
		return "", err
	}
	return secret, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "source validation: " + e.Field + ": " + e.Message
}
