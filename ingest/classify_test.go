package ingest

import (
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		headers     http.Header
		want        Classification
	}{
		{
			name:        "json type key",
			body:        `{"type":"order.created"}`,
			contentType: "application/json",
			want:        Classification{ContentType: "application/json", EventType: "order.created"},
		},
		{
			name:        "json event_type key",
			body:        `{"event_type":"user.deleted"}`,
			contentType: "application/json",
			want:        Classification{ContentType: "application/json", EventType: "user.deleted"},
		},
		{
			name:        "json event key",
			body:        `{"event":"charge.refunded"}`,
			contentType: "application/json",
			want:        Classification{ContentType: "application/json", EventType: "charge.refunded"},
		},
		{
			name:        "type key wins over event key",
			body:        `{"event":"second","type":"first"}`,
			contentType: "application/json",
			want:        Classification{ContentType: "application/json", EventType: "first"},
		},
		{
			name:        "json without declared content type",
			body:        `  {"type":"ping"}`,
			contentType: "",
			want:        Classification{EventType: "ping"},
		},
		{
			name:        "charset parameter stripped",
			body:        `{}`,
			contentType: "application/json; charset=utf-8",
			want:        Classification{ContentType: "application/json"},
		},
		{
			name:        "github header fallback",
			body:        `[1,2,3]`,
			contentType: "application/json",
			headers:     http.Header{"X-Github-Event": []string{"push"}},
			want:        Classification{ContentType: "application/json", EventType: "push"},
		},
		{
			name:        "shopify header fallback",
			body:        `not json`,
			contentType: "text/plain",
			headers:     http.Header{"X-Shopify-Topic": []string{"orders/create"}},
			want:        Classification{ContentType: "text/plain", EventType: "orders/create"},
		},
		{
			name:        "body key wins over header",
			body:        `{"type":"from.body"}`,
			contentType: "application/json",
			headers:     http.Header{"X-Github-Event": []string{"push"}},
			want:        Classification{ContentType: "application/json", EventType: "from.body"},
		},
		{
			name:        "non-string type ignored",
			body:        `{"type":42}`,
			contentType: "application/json",
			want:        Classification{ContentType: "application/json"},
		},
		{
			name:        "binary payload",
			body:        "\xff\xfe\x00\x01",
			contentType: "application/octet-stream",
			want:        Classification{ContentType: "application/octet-stream", Binary: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify([]byte(tt.body), tt.contentType, tt.headers)
			if got != tt.want {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCaptureHeadersStripsProxyArtifacts(t *testing.T) {
	in := http.Header{
		"Content-Type":      []string{"application/json"},
		"X-Custom":          []string{"a", "b"},
		"X-Forwarded-For":   []string{"10.0.0.1"},
		"X-Forwarded-Proto": []string{"https"},
		"Forwarded":         []string{"for=10.0.0.1"},
		"Via":               []string{"1.1 proxy"},
		"X-Real-Ip":         []string{"10.0.0.1"},
	}

	got := CaptureHeaders(in)

	if got["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", got["Content-Type"])
	}
	if got["X-Custom"] != "a, b" {
		t.Errorf("X-Custom = %q, want joined values", got["X-Custom"])
	}
	for _, stripped := range []string{"X-Forwarded-For", "X-Forwarded-Proto", "Forwarded", "Via", "X-Real-Ip"} {
		if _, ok := got[stripped]; ok {
			t.Errorf("%s survived capture", stripped)
		}
	}
}
