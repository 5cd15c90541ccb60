package ingest

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// eventTypeKeys are the JSON body keys probed for an event type, in order.
var eventTypeKeys = []string{"type", "event_type", "event"}

// eventTypeHeaders are provider headers probed when the body yields no
// event type.
var eventTypeHeaders = []string{"X-GitHub-Event", "X-Shopify-Topic"}

// strippedHeaders are reverse-proxy artifacts removed before storage and
// forwarding.
var strippedHeaders = []string{"Forwarded", "Via", "X-Real-Ip"}

// Classification is what ingestion learns about a payload before storing it.
type Classification struct {
	// ContentType is the normalized media type, empty when absent.
	ContentType string

	// Binary marks payloads that are not valid UTF-8 text.
	Binary bool

	// EventType is the extracted event type, empty when none was found.
	EventType string
}

// Classify inspects a payload and its headers, extracting the content
// type, binary flag, and best-effort event type.
func Classify(body []byte, contentType string, headers http.Header) Classification {
	c := Classification{
		Binary: !utf8.Valid(body),
	}
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			c.ContentType = mt
		} else {
			c.ContentType = contentType
		}
	}

	c.EventType = extractEventType(body, c, headers)
	return c
}

// extractEventType probes a small fixed set of JSON keys, then falls back
// to provider-specific headers. Extraction is best effort: a payload with
// no recognizable type routes with an empty event type.
func extractEventType(body []byte, c Classification, headers http.Header) string {
	if !c.Binary && looksLikeJSON(c.ContentType, body) {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(body, &doc); err == nil {
			for _, key := range eventTypeKeys {
				raw, ok := doc[key]
				if !ok {
					continue
				}
				var s string
				if err := json.Unmarshal(raw, &s); err == nil && s != "" {
					return s
				}
			}
		}
	}

	for _, name := range eventTypeHeaders {
		if v := headers.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(contentType, "json") {
		return true
	}
	trimmed := strings.TrimLeftFunc(string(body), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	return strings.HasPrefix(trimmed, "{")
}

// CaptureHeaders flattens inbound headers for storage, dropping
// reverse-proxy artifacts.
func CaptureHeaders(h http.Header) map[string]string {
	captured := make(map[string]string, len(h))
	for name, values := range h {
		if isProxyHeader(name) {
			continue
		}
		captured[name] = strings.Join(values, ", ")
	}
	return captured
}

func isProxyHeader(name string) bool {
	canon := http.CanonicalHeaderKey(name)
	if strings.HasPrefix(canon, "X-Forwarded-") {
		return true
	}
	for _, s := range strippedHeaders {
		if canon == s {
			return true
		}
	}
	return false
}
