package delivery

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/source"
)

// forwardBlocklist holds hop-by-hop and transport headers that are never
// forwarded to a destination, whatever the connection configures.
var forwardBlocklist = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Connection":        true,
	"Transfer-Encoding": true,
}

// sensitiveHeaders are redacted in attempt snapshots.
var sensitiveHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"X-Api-Key":           true,
	"Cookie":              true,
}

// HeaderLayer contributes headers to an outbound request. Layers are
// applied in order; later layers override earlier ones on key conflicts.
type HeaderLayer interface {
	Apply(h http.Header)
}

// HeaderLayerFunc adapts a function to HeaderLayer.
type HeaderLayerFunc func(h http.Header)

// Apply implements HeaderLayer.
func (f HeaderLayerFunc) Apply(h http.Header) { f(h) }

// ForwardedLayer copies captured inbound headers according to the
// forwarding policy, always honoring the blocklist. Exactly one policy
// applies: forward-all, else the connection's allow-list, else the
// source's provider-default list.
func ForwardedLayer(evt *event.Event, src *source.Source, conn *connection.Connection) HeaderLayer {
	return HeaderLayerFunc(func(h http.Header) {
		if conn.ForwardAllHeaders {
			for name, value := range evt.Headers {
				setForwarded(h, name, value)
			}
			return
		}

		allow := conn.ForwardHeaders
		if len(allow) == 0 {
			allow = src.DefaultForwardHeaders
		}
		allowed := make(map[string]bool, len(allow))
		for _, name := range allow {
			allowed[http.CanonicalHeaderKey(name)] = true
		}

		for name, value := range evt.Headers {
			if allowed[http.CanonicalHeaderKey(name)] {
				setForwarded(h, name, value)
			}
		}
	})
}

// IdentificationLayer stamps the event identity headers and the content
// type. The inbound Content-Type is mirrored when present, defaulting to
// application/json.
func IdentificationLayer(evt *event.Event) HeaderLayer {
	return HeaderLayerFunc(func(h http.Header) {
		h.Set("X-Webhook-Event-Id", evt.ID.String())
		if evt.EventType != "" {
			h.Set("X-Webhook-Event-Type", evt.EventType)
		}
		h.Set("X-Webhook-Timestamp", evt.ReceivedAt.UTC().Format(time.RFC3339))

		ct := evt.ContentType
		if ct == "" {
			ct = "application/json"
		}
		h.Set("Content-Type", ct)
	})
}

// CustomLayer applies the destination's configured static headers.
func CustomLayer(dst *destination.Destination) HeaderLayer {
	return HeaderLayerFunc(func(h http.Header) {
		for name, value := range dst.Headers {
			if !forwardBlocklist[http.CanonicalHeaderKey(name)] {
				h.Set(name, value)
			}
		}
	})
}

// AuthLayer applies the destination's authentication mode. It runs last
// so credentials always win over forwarded or custom headers.
func AuthLayer(dst *destination.Destination) HeaderLayer {
	return HeaderLayerFunc(func(h http.Header) {
		switch dst.AuthType {
		case destination.AuthBearer:
			h.Set("Authorization", "Bearer "+dst.AuthValue)
		case destination.AuthBasic:
			cred := base64.StdEncoding.EncodeToString([]byte(dst.AuthValue))
			h.Set("Authorization", "Basic "+cred)
		case destination.AuthAPIKey:
			if name, value, ok := strings.Cut(dst.AuthValue, ":"); ok && !forwardBlocklist[http.CanonicalHeaderKey(name)] {
				h.Set(name, value)
			} else {
				h.Set("X-API-Key", dst.AuthValue)
			}
		}
	})
}

// BuildHeaders composes the outbound header set from the standard layer
// stack: forwarded, identification, custom, auth.
func BuildHeaders(evt *event.Event, src *source.Source, conn *connection.Connection, dst *destination.Destination) http.Header {
	layers := []HeaderLayer{
		ForwardedLayer(evt, src, conn),
		IdentificationLayer(evt),
		CustomLayer(dst),
		AuthLayer(dst),
	}

	h := make(http.Header)
	for _, layer := range layers {
		layer.Apply(h)
	}
	return h
}

// SnapshotHeaders flattens headers for the attempt audit record with
// sensitive values redacted.
func SnapshotHeaders(h http.Header) map[string]string {
	snap := make(map[string]string, len(h))
	for name, values := range h {
		if sensitiveHeaders[http.CanonicalHeaderKey(name)] {
			snap[name] = "[redacted]"
			continue
		}
		snap[name] = strings.Join(values, ", ")
	}
	return snap
}

func setForwarded(h http.Header, name, value string) {
	if forwardBlocklist[http.CanonicalHeaderKey(name)] {
		return
	}
	h.Set(name, value)
}
