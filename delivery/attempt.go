package delivery

import (
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Error codes classifying failed attempts.
const (
	// ErrCodeTimeout means the attempt exceeded its deadline.
	ErrCodeTimeout = "timeout"

	// ErrCodeConnectionFailed means the destination was unreachable.
	ErrCodeConnectionFailed = "connection_failed"

	// ErrCodeTLS means the TLS handshake or certificate validation failed.
	ErrCodeTLS = "tls_error"

	// ErrCodeRequest covers all other request errors, including non-2xx
	// responses.
	ErrCodeRequest = "request_error"
)

// BodySnapshotLimit caps stored request and response bodies at 64 KiB.
// Larger bodies are truncated in the audit record, never in the request
// itself.
const BodySnapshotLimit = 65535

// Attempt is the immutable audit record of one delivery attempt.
type Attempt struct {
	entity.Entity

	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// DeliveryID references the parent delivery.
	DeliveryID id.ID `json:"delivery_id"`

	// Number is the 1-based position of this attempt within the delivery.
	Number int `json:"number"`

	// RequestURL is the URL the attempt targeted.
	RequestURL string `json:"request_url"`

	// RequestMethod is the HTTP method used.
	RequestMethod string `json:"request_method"`

	// RequestHeaders is the outbound header snapshot, sensitive values
	// redacted.
	RequestHeaders map[string]string `json:"request_headers,omitempty"`

	// RequestBody is the outbound body, truncated to BodySnapshotLimit.
	RequestBody string `json:"request_body,omitempty"`

	// ResponseStatus is the HTTP status code, zero when no response arrived.
	ResponseStatus int `json:"response_status,omitempty"`

	// ResponseHeaders is the response header snapshot.
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`

	// ResponseBody is the response body, truncated to BodySnapshotLimit.
	ResponseBody string `json:"response_body,omitempty"`

	// Success reports whether the destination acknowledged the attempt.
	Success bool `json:"success"`

	// ErrorCode classifies the failure, empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// ErrorMessage is the human-readable failure detail.
	ErrorMessage string `json:"error_message,omitempty"`

	// LatencyMs is the attempt duration in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// StartedAt is when the attempt began.
	StartedAt time.Time `json:"started_at"`
}

// Truncate clips a body snapshot to BodySnapshotLimit bytes.
func Truncate(body []byte) string {
	if len(body) > BodySnapshotLimit {
		return string(body[:BodySnapshotLimit])
	}
	return string(body)
}
