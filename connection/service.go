package connection

import (
	"context"
	"log/slog"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Service provides connection management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new connection service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Input is the creation/update payload for connections.
type Input struct {
	SourceID          id.ID    `json:"source_id"`
	DestinationID     id.ID    `json:"destination_id"`
	Priority          int      `json:"priority"`
	Rules             RuleSet  `json:"rules"`
	ForwardAllHeaders bool     `json:"forward_all_headers"`
	ForwardHeaders    []string `json:"forward_headers"`
}

// Create links a source to a destination.
func (svc *Service) Create(ctx context.Context, in Input) (*Connection, error) {
	if in.SourceID.IsNil() {
		return nil, &ValidationError{Field: "source_id", Message: "required"}
	}
	if in.DestinationID.IsNil() {
		return nil, &ValidationError{Field: "destination_id", Message: "required"}
	}

	conn := &Connection{
		Entity:            entity.New(),
		ID:                id.NewConnectionID(),
		SourceID:          in.SourceID,
		DestinationID:     in.DestinationID,
		Priority:          in.Priority,
		Status:            StatusActive,
		Rules:             in.Rules,
		ForwardAllHeaders: in.ForwardAllHeaders,
		ForwardHeaders:    in.ForwardHeaders,
	}

	if err := svc.store.CreateConnection(ctx, conn); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "connection created",
		"connection_id", conn.ID,
		"source_id", conn.SourceID,
		"destination_id", conn.DestinationID)
	return conn, nil
}

// Get returns a connection by ID.
func (svc *Service) Get(ctx context.Context, connID id.ID) (*Connection, error) {
	return svc.store.GetConnection(ctx, connID)
}

// ListBySource returns connections for a source ordered by priority.
func (svc *Service) ListBySource(ctx context.Context, srcID id.ID, opts ListOpts) ([]*Connection, error) {
	return svc.store.ListBySource(ctx, srcID, opts)
}

// SetStatus changes fan-out participation for a connection.
func (svc *Service) SetStatus(ctx context.Context, connID id.ID, status Status) (*Connection, error) {
	conn, err := svc.store.GetConnection(ctx, connID)
	if err != nil {
		return nil, err
	}

	conn.Status = status
	if err := svc.store.UpdateConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// SetRules replaces a connection's rule set.
func (svc *Service) SetRules(ctx context.Context, connID id.ID, rules RuleSet) (*Connection, error) {
	conn, err := svc.store.GetConnection(ctx, connID)
	if err != nil {
		return nil, err
	}

	conn.Rules = rules
	if err := svc.store.UpdateConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "connection validation: " + e.Field + ": " + e.Message
}
