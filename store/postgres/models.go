package postgres

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/crypt"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/source"
	"github.com/hookline/hookline/verify"
)

// --- Source models ---

type sourceModel struct {
	grove.BaseModel `grove:"table:hookline_sources"`

	ID                    string    `grove:"id,pk"`
	Name                  string    `grove:"name"`
	Provider              string    `grove:"provider"`
	IngestToken           string    `grove:"ingest_token,unique"`
	Status                string    `grove:"status"`
	VerificationScheme    string    `grove:"verification_scheme"`
	VerificationSecret    string    `grove:"verification_secret"`
	SuccessStatus         int       `grove:"success_status"`
	DefaultForwardHeaders []string  `grove:"default_forward_headers,array"`
	CreatedAt             time.Time `grove:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"`
}

func toSourceModel(src *source.Source, cipher crypt.Cipher) (*sourceModel, error) {
	secret, err := sealString(cipher, src.VerificationSecret)
	if err != nil {
		return nil, fmt.Errorf("seal verification secret: %w", err)
	}
	return &sourceModel{
		ID:                    src.ID.String(),
		Name:                  src.Name,
		Provider:              src.Provider,
		IngestToken:           src.IngestToken,
		Status:                string(src.Status),
		VerificationScheme:    string(src.VerificationScheme),
		VerificationSecret:    secret,
		SuccessStatus:         src.SuccessStatus,
		DefaultForwardHeaders: src.DefaultForwardHeaders,
		CreatedAt:             src.CreatedAt,
		UpdatedAt:             src.UpdatedAt,
	}, nil
}

func fromSourceModel(m *sourceModel, cipher crypt.Cipher) (*source.Source, error) {
	srcID, err := id.ParseSourceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse source ID %q: %w", m.ID, err)
	}
	secret, err := openString(cipher, m.VerificationSecret)
	if err != nil {
		return nil, fmt.Errorf("open verification secret for %s: %w", m.ID, err)
	}
	return &source.Source{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                    srcID,
		Name:                  m.Name,
		Provider:              m.Provider,
		IngestToken:           m.IngestToken,
		Status:                source.Status(m.Status),
		VerificationScheme:    verify.Scheme(m.VerificationScheme),
		VerificationSecret:    secret,
		SuccessStatus:         m.SuccessStatus,
		DefaultForwardHeaders: m.DefaultForwardHeaders,
	}, nil
}

// --- Destination models ---

type destinationModel struct {
	grove.BaseModel `grove:"table:hookline_destinations"`

	ID             string            `grove:"id,pk"`
	Name           string            `grove:"name"`
	URL            string            `grove:"url"`
	Method         string            `grove:"method"`
	Headers        map[string]string `grove:"headers,type:jsonb"`
	AuthType       string            `grove:"auth_type"`
	AuthValue      string            `grove:"auth_value"`
	TimeoutSeconds int               `grove:"timeout_seconds"`
	Status         string            `grove:"status"`
	Subscribers    []string          `grove:"subscribers,array"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

func toDestinationModel(dst *destination.Destination, cipher crypt.Cipher) (*destinationModel, error) {
	auth, err := sealString(cipher, dst.AuthValue)
	if err != nil {
		return nil, fmt.Errorf("seal auth value: %w", err)
	}
	return &destinationModel{
		ID:             dst.ID.String(),
		Name:           dst.Name,
		URL:            dst.URL,
		Method:         dst.Method,
		Headers:        dst.Headers,
		AuthType:       string(dst.AuthType),
		AuthValue:      auth,
		TimeoutSeconds: dst.TimeoutSeconds,
		Status:         string(dst.Status),
		Subscribers:    dst.Subscribers,
		CreatedAt:      dst.CreatedAt,
		UpdatedAt:      dst.UpdatedAt,
	}, nil
}

func fromDestinationModel(m *destinationModel, cipher crypt.Cipher) (*destination.Destination, error) {
	dstID, err := id.ParseDestinationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse destination ID %q: %w", m.ID, err)
	}
	auth, err := openString(cipher, m.AuthValue)
	if err != nil {
		return nil, fmt.Errorf("open auth value for %s: %w", m.ID, err)
	}
	return &destination.Destination{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dstID,
		Name:           m.Name,
		URL:            m.URL,
		Method:         m.Method,
		Headers:        m.Headers,
		AuthType:       destination.AuthType(m.AuthType),
		AuthValue:      auth,
		TimeoutSeconds: m.TimeoutSeconds,
		Status:         destination.Status(m.Status),
		Subscribers:    m.Subscribers,
	}, nil
}

// --- Connection models ---

type connectionModel struct {
	grove.BaseModel `grove:"table:hookline_connections"`

	ID                string    `grove:"id,pk"`
	SourceID          string    `grove:"source_id"`
	DestinationID     string    `grove:"destination_id"`
	Priority          int       `grove:"priority"`
	Status            string    `grove:"status"`
	Rules             []byte    `grove:"rules,type:jsonb"`
	ForwardAllHeaders bool      `grove:"forward_all_headers"`
	ForwardHeaders    []string  `grove:"forward_headers,array"`
	CreatedAt         time.Time `grove:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"`
}

func toConnectionModel(conn *connection.Connection) (*connectionModel, error) {
	rules, err := conn.Rules.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}
	return &connectionModel{
		ID:                conn.ID.String(),
		SourceID:          conn.SourceID.String(),
		DestinationID:     conn.DestinationID.String(),
		Priority:          conn.Priority,
		Status:            string(conn.Status),
		Rules:             rules,
		ForwardAllHeaders: conn.ForwardAllHeaders,
		ForwardHeaders:    conn.ForwardHeaders,
		CreatedAt:         conn.CreatedAt,
		UpdatedAt:         conn.UpdatedAt,
	}, nil
}

func fromConnectionModel(m *connectionModel) (*connection.Connection, error) {
	connID, err := id.ParseConnectionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse connection ID %q: %w", m.ID, err)
	}
	srcID, err := id.ParseSourceID(m.SourceID)
	if err != nil {
		return nil, fmt.Errorf("parse source ID %q: %w", m.SourceID, err)
	}
	dstID, err := id.ParseDestinationID(m.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("parse destination ID %q: %w", m.DestinationID, err)
	}

	var rules connection.RuleSet
	if len(m.Rules) > 0 {
		if err := rules.UnmarshalJSON(m.Rules); err != nil {
			return nil, fmt.Errorf("unmarshal rules for %s: %w", m.ID, err)
		}
	}

	return &connection.Connection{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                connID,
		SourceID:          srcID,
		DestinationID:     dstID,
		Priority:          m.Priority,
		Status:            connection.Status(m.Status),
		Rules:             rules,
		ForwardAllHeaders: m.ForwardAllHeaders,
		ForwardHeaders:    m.ForwardHeaders,
	}, nil
}

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:hookline_events"`

	ID           string            `grove:"id,pk"`
	SourceID     string            `grove:"source_id"`
	Status       string            `grove:"status"`
	RawBody      []byte            `grove:"raw_body"`
	ContentType  string            `grove:"content_type"`
	BodyIsBinary bool              `grove:"body_is_binary"`
	BodySize     int               `grove:"body_size"`
	Headers      map[string]string `grove:"headers,type:jsonb"`
	QueryParams  map[string]string `grove:"query_params,type:jsonb"`
	SourceIP     string            `grove:"source_ip"`
	EventType    string            `grove:"event_type"`
	ReceivedAt   time.Time         `grove:"received_at"`
	CreatedAt    time.Time         `grove:"created_at"`
	UpdatedAt    time.Time         `grove:"updated_at"`
}

func toEventModel(evt *event.Event, cipher crypt.Cipher) (*eventModel, error) {
	var body []byte
	if len(evt.RawBody) > 0 {
		sealed, err := cipher.Seal(evt.RawBody)
		if err != nil {
			return nil, fmt.Errorf("seal event body: %w", err)
		}
		body = sealed
	}
	return &eventModel{
		ID:           evt.ID.String(),
		SourceID:     evt.SourceID.String(),
		Status:       string(evt.Status),
		RawBody:      body,
		ContentType:  evt.ContentType,
		BodyIsBinary: evt.BodyIsBinary,
		BodySize:     evt.BodySize,
		Headers:      evt.Headers,
		QueryParams:  evt.QueryParams,
		SourceIP:     evt.SourceIP,
		EventType:    evt.EventType,
		ReceivedAt:   evt.ReceivedAt,
		CreatedAt:    evt.CreatedAt,
		UpdatedAt:    evt.UpdatedAt,
	}, nil
}

func fromEventModel(m *eventModel, cipher crypt.Cipher) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	srcID, err := id.ParseSourceID(m.SourceID)
	if err != nil {
		return nil, fmt.Errorf("parse source ID %q: %w", m.SourceID, err)
	}

	var body []byte
	if len(m.RawBody) > 0 {
		body, err = cipher.Open(m.RawBody)
		if err != nil {
			return nil, fmt.Errorf("open event body for %s: %w", m.ID, err)
		}
	}

	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           evtID,
		SourceID:     srcID,
		Status:       event.Status(m.Status),
		RawBody:      body,
		ContentType:  m.ContentType,
		BodyIsBinary: m.BodyIsBinary,
		BodySize:     m.BodySize,
		Headers:      m.Headers,
		QueryParams:  m.QueryParams,
		SourceIP:     m.SourceIP,
		EventType:    m.EventType,
		ReceivedAt:   m.ReceivedAt,
	}, nil
}

// --- Delivery models ---

type deliveryModel struct {
	grove.BaseModel `grove:"table:hookline_deliveries"`

	ID                 string     `grove:"id,pk"`
	EventID            string     `grove:"event_id"`
	ConnectionID       string     `grove:"connection_id"`
	DestinationID      string     `grove:"destination_id"`
	Status             string     `grove:"status"`
	AttemptCount       int        `grove:"attempt_count"`
	MaxAttempts        int        `grove:"max_attempts"`
	NextAttemptAt      *time.Time `grove:"next_attempt_at"`
	LastErrorCode      string     `grove:"last_error_code"`
	LastResponseStatus int        `grove:"last_response_status"`
	CompletedAt        *time.Time `grove:"completed_at"`
	CreatedAt          time.Time  `grove:"created_at"`
	UpdatedAt          time.Time  `grove:"updated_at"`
}

func toDeliveryModel(d *delivery.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:                 d.ID.String(),
		EventID:            d.EventID.String(),
		ConnectionID:       d.ConnectionID.String(),
		DestinationID:      d.DestinationID.String(),
		Status:             string(d.Status),
		AttemptCount:       d.AttemptCount,
		MaxAttempts:        d.MaxAttempts,
		NextAttemptAt:      d.NextAttemptAt,
		LastErrorCode:      d.LastErrorCode,
		LastResponseStatus: d.LastResponseStatus,
		CompletedAt:        d.CompletedAt,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*delivery.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	connID, err := id.ParseConnectionID(m.ConnectionID)
	if err != nil {
		return nil, fmt.Errorf("parse connection ID %q: %w", m.ConnectionID, err)
	}
	dstID, err := id.ParseDestinationID(m.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("parse destination ID %q: %w", m.DestinationID, err)
	}
	return &delivery.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                 delID,
		EventID:            evtID,
		ConnectionID:       connID,
		DestinationID:      dstID,
		Status:             delivery.Status(m.Status),
		AttemptCount:       m.AttemptCount,
		MaxAttempts:        m.MaxAttempts,
		NextAttemptAt:      m.NextAttemptAt,
		LastErrorCode:      m.LastErrorCode,
		LastResponseStatus: m.LastResponseStatus,
		CompletedAt:        m.CompletedAt,
	}, nil
}

// --- Attempt models ---

type attemptModel struct {
	grove.BaseModel `grove:"table:hookline_attempts"`

	ID              string            `grove:"id,pk"`
	DeliveryID      string            `grove:"delivery_id"`
	Number          int               `grove:"number"`
	RequestURL      string            `grove:"request_url"`
	RequestMethod   string            `grove:"request_method"`
	RequestHeaders  map[string]string `grove:"request_headers,type:jsonb"`
	RequestBody     string            `grove:"request_body"`
	ResponseStatus  int               `grove:"response_status"`
	ResponseHeaders map[string]string `grove:"response_headers,type:jsonb"`
	ResponseBody    string            `grove:"response_body"`
	Success         bool              `grove:"success"`
	ErrorCode       string            `grove:"error_code"`
	ErrorMessage    string            `grove:"error_message"`
	LatencyMs       int64             `grove:"latency_ms"`
	StartedAt       time.Time         `grove:"started_at"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
}

func toAttemptModel(a *delivery.Attempt) *attemptModel {
	return &attemptModel{
		ID:              a.ID.String(),
		DeliveryID:      a.DeliveryID.String(),
		Number:          a.Number,
		RequestURL:      a.RequestURL,
		RequestMethod:   a.RequestMethod,
		RequestHeaders:  a.RequestHeaders,
		RequestBody:     a.RequestBody,
		ResponseStatus:  a.ResponseStatus,
		ResponseHeaders: a.ResponseHeaders,
		ResponseBody:    a.ResponseBody,
		Success:         a.Success,
		ErrorCode:       a.ErrorCode,
		ErrorMessage:    a.ErrorMessage,
		LatencyMs:       a.LatencyMs,
		StartedAt:       a.StartedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*delivery.Attempt, error) {
	attID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	return &delivery.Attempt{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              attID,
		DeliveryID:      delID,
		Number:          m.Number,
		RequestURL:      m.RequestURL,
		RequestMethod:   m.RequestMethod,
		RequestHeaders:  m.RequestHeaders,
		RequestBody:     m.RequestBody,
		ResponseStatus:  m.ResponseStatus,
		ResponseHeaders: m.ResponseHeaders,
		ResponseBody:    m.ResponseBody,
		Success:         m.Success,
		ErrorCode:       m.ErrorCode,
		ErrorMessage:    m.ErrorMessage,
		LatencyMs:       m.LatencyMs,
		StartedAt:       m.StartedAt,
	}, nil
}

// --- Helpers ---

// Sealed strings are stored base64 so text columns stay valid UTF-8.
func sealString(cipher crypt.Cipher, plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	sealed, err := cipher.Seal([]byte(plain))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func openString(cipher crypt.Cipher, encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	plain, err := cipher.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
