package destination

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

var allowedMethods = map[string]bool{
	"POST": true, "PUT": true, "PATCH": true, "GET": true, "DELETE": true,
}

// Service provides destination management operations.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new destination service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Input is the creation/update payload for destinations.
type Input struct {
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	AuthType       AuthType          `json:"auth_type"`
	AuthValue      string            `json:"auth_value"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Subscribers    []string          `json:"subscribers"`
}

// Create registers a new delivery destination.
func (svc *Service) Create(ctx context.Context, in Input) (*Destination, error) {
	if in.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "required"}
	}

	u, err := url.ParseRequestURI(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &ValidationError{Field: "url", Message: "must be a valid HTTP or HTTPS URL"}
	}

	method := strings.ToUpper(in.Method)
	if method == "" {
		method = "POST"
	}
	if !allowedMethods[method] {
		return nil, &ValidationError{Field: "method", Message: "unsupported HTTP method"}
	}

	authType := in.AuthType
	if authType == "" {
		authType = AuthNone
	}
	switch authType {
	case AuthNone, AuthBearer, AuthBasic, AuthAPIKey:
	default:
		return nil, &ValidationError{Field: "auth_type", Message: "unknown auth type"}
	}

	if in.TimeoutSeconds < 0 {
		return nil, &ValidationError{Field: "timeout_seconds", Message: "must not be negative"}
	}

	dst := &Destination{
		Entity:         entity.New(),
		ID:             id.NewDestinationID(),
		Name:           in.Name,
		URL:            in.URL,
		Method:         method,
		Headers:        in.Headers,
		AuthType:       authType,
		AuthValue:      in.AuthValue,
		TimeoutSeconds: in.TimeoutSeconds,
		Status:         StatusActive,
		Subscribers:    in.Subscribers,
	}

	if err := svc.store.CreateDestination(ctx, dst); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "destination created", "destination_id", dst.ID, "url", dst.URL)
	return dst, nil
}

// Get returns a destination by ID.
func (svc *Service) Get(ctx context.Context, dstID id.ID) (*Destination, error) {
	return svc.store.GetDestination(ctx, dstID)
}

// List returns destinations matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Destination, error) {
	return svc.store.ListDestinations(ctx, opts)
}

// SetStatus changes fan-out participation for a destination.
func (svc *Service) SetStatus(ctx context.Context, dstID id.ID, status Status) (*Destination, error) {
	dst, err := svc.store.GetDestination(ctx, dstID)
	if err != nil {
		return nil, err
	}

	dst.Status = status
	if err := svc.store.UpdateDestination(ctx, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// Subscribe adds an address to the failure notification list.
func (svc *Service) Subscribe(ctx context.Context, dstID id.ID, address string) (*Destination, error) {
	dst, err := svc.store.GetDestination(ctx, dstID)
	if err != nil {
		return nil, err
	}

	for _, s := range dst.Subscribers {
		if s == address {
			return dst, nil
		}
	}
	dst.Subscribers = append(dst.Subscribers, address)

	if err := svc.store.UpdateDestination(ctx, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "destination validation: " + e.Field + ": " + e.Message
}
