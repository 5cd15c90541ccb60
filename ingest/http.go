package ingest

import (
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the gatekeeper as an HTTP endpoint:
// POST /ingest/{token} with a raw body of any content type.
type Handler struct {
	gatekeeper *Gatekeeper
}

// NewHandler creates the ingestion HTTP handler.
func NewHandler(g *Gatekeeper) *Handler {
	return &Handler{gatekeeper: g}
}

// Mount attaches the ingestion route to a chi router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/ingest/{token}", h.ServeIngest)
}

// ServeIngest handles one inbound webhook call.
func (h *Handler) ServeIngest(w http.ResponseWriter, r *http.Request) {
	g := h.gatekeeper

	// Read one byte past the cap so measured oversize is detectable
	// without buffering arbitrarily large bodies.
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(g.maxBytes)+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Unreadable body"})
		return
	}

	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	receipt := g.Receive(r.Context(), Request{
		Token:          chi.URLParam(r, "token"),
		Body:           body,
		DeclaredLength: r.ContentLength,
		Headers:        r.Header,
		QueryParams:    query,
		ContentType:    r.Header.Get("Content-Type"),
		RemoteIP:       remoteIP(r),
	})

	resp := make(map[string]any, 3)
	if receipt.Error != "" {
		resp["error"] = receipt.Error
	}
	if receipt.Message != "" {
		resp["message"] = receipt.Message
	}
	if !receipt.EventID.IsNil() {
		resp["event_id"] = receipt.EventID.String()
	}
	writeJSON(w, receipt.HTTPStatus, resp)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
