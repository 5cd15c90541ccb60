package delivery

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

// SendResult is the raw outcome of one HTTP delivery attempt.
type SendResult struct {
	// Status is the HTTP status code, zero when no response arrived.
	Status int

	// Headers are the response headers, nil when no response arrived.
	Headers http.Header

	// Body is the response body, truncated to BodySnapshotLimit.
	Body []byte

	// ErrorCode classifies the failure, empty when a response arrived.
	ErrorCode string

	// ErrorMessage is the transport error detail.
	ErrorMessage string

	// Latency is the total attempt duration.
	Latency time.Duration
}

// Succeeded reports whether the result counts as an acknowledged delivery:
// any 2xx response.
func (r SendResult) Succeeded() bool {
	return r.Status >= 200 && r.Status < 300
}

// Sender performs outbound HTTP attempts. All attempts share one
// transport so connection pooling works across deliveries.
type Sender struct {
	client         *http.Client
	defaultTimeout time.Duration
}

// NewSender creates a sender. connectTimeout bounds dial and TLS
// handshake; defaultTimeout bounds whole attempts when the destination
// does not configure its own.
func NewSender(connectTimeout, defaultTimeout time.Duration) *Sender {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Sender{
		client:         &http.Client{Transport: transport},
		defaultTimeout: defaultTimeout,
	}
}

// Send performs one HTTP attempt. The timeout falls back to the sender's
// default when zero. Transport failures are classified into error codes;
// a non-2xx response is not an error here, the caller decides.
func (s *Sender) Send(ctx context.Context, method, url string, headers http.Header, body []byte, timeout time.Duration) SendResult {
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return SendResult{
			ErrorCode:    ErrCodeRequest,
			ErrorMessage: err.Error(),
			Latency:      time.Since(start),
		}
	}
	for name, values := range headers {
		req.Header[name] = values
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{
			ErrorCode:    classifySendError(err),
			ErrorMessage: err.Error(),
			Latency:      time.Since(start),
		}
	}
	defer resp.Body.Close()

	// Read one byte past the cap so truncation is detectable without
	// buffering unbounded responses.
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, BodySnapshotLimit+1))
	if len(respBody) > BodySnapshotLimit {
		respBody = respBody[:BodySnapshotLimit]
	}

	result := SendResult{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    respBody,
		Latency: time.Since(start),
	}
	if readErr != nil {
		result.ErrorMessage = readErr.Error()
	}
	return result
}

func classifySendError(err error) string {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return ErrCodeTLS
	}
	var unknownAuth x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &unknownAuth) || errors.As(err, &hostnameErr) {
		return ErrCodeTLS
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return ErrCodeTLS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCodeTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrCodeConnectionFailed
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrCodeConnectionFailed
	}

	return ErrCodeRequest
}
