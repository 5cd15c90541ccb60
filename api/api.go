// Package api exposes the operator REST surface: inspection of events,
// deliveries, and attempts, plus the cancel, retry, and replay actions.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/connection"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/destination"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/source"
)

// Handler serves the operator API on top of a Hookline pipeline.
type Handler struct {
	hl     *hookline.Hookline
	logger *slog.Logger
}

// NewHandler creates the operator API handler.
func NewHandler(hl *hookline.Hookline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hl: hl, logger: logger}
}

// Mount attaches all operator routes to a chi router.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/sources", func(r chi.Router) {
		r.Post("/", h.createSource)
		r.Get("/", h.listSources)
		r.Get("/{id}", h.getSource)
		r.Post("/{id}/pause", h.setSourceStatus(source.StatusPaused))
		r.Post("/{id}/activate", h.setSourceStatus(source.StatusActive))
		r.Post("/{id}/rotate-secret", h.rotateSourceSecret)
	})

	r.Route("/destinations", func(r chi.Router) {
		r.Post("/", h.createDestination)
		r.Get("/", h.listDestinations)
		r.Get("/{id}", h.getDestination)
		r.Post("/{id}/pause", h.setDestinationStatus(destination.StatusPaused))
		r.Post("/{id}/activate", h.setDestinationStatus(destination.StatusActive))
		r.Post("/{id}/subscribers", h.subscribeDestination)
	})

	r.Route("/connections", func(r chi.Router) {
		r.Post("/", h.createConnection)
		r.Get("/{id}", h.getConnection)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.listEvents)
		r.Get("/{id}", h.getEvent)
		r.Get("/{id}/deliveries", h.listEventDeliveries)
		r.Post("/{id}/replay", h.replayEvent)
	})

	r.Route("/deliveries", func(r chi.Router) {
		r.Get("/", h.listDeliveries)
		r.Get("/{id}", h.getDelivery)
		r.Get("/{id}/attempts", h.listAttempts)
		r.Post("/{id}/cancel", h.cancelDelivery)
		r.Post("/{id}/retry", h.retryDelivery)
		r.Post("/{id}/replay", h.replayDelivery)
	})

	r.Get("/stats", h.getStats)
}

// --- Stats ---

type statsResponse struct {
	PendingDeliveries int `json:"pending_deliveries"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	pending, err := h.hl.Store().CountPending(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{PendingDeliveries: pending})
}

// --- Sources ---

func (h *Handler) createSource(w http.ResponseWriter, r *http.Request) {
	var in source.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	src, err := h.hl.Sources().Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	// The ingest token is returned exactly once, at creation.
	writeJSON(w, http.StatusCreated, map[string]any{
		"source":       src,
		"ingest_token": src.IngestToken,
	})
}

func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	srcs, err := h.hl.Sources().List(r.Context(), source.ListOpts{
		Offset: queryInt(r, "offset"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, srcs)
}

func (h *Handler) getSource(w http.ResponseWriter, r *http.Request) {
	srcID, ok := pathID(w, r)
	if !ok {
		return
	}
	src, err := h.hl.Sources().Get(r.Context(), srcID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (h *Handler) setSourceStatus(status source.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		srcID, ok := pathID(w, r)
		if !ok {
			return
		}
		src, err := h.hl.Sources().SetStatus(r.Context(), srcID, status)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, src)
	}
}

func (h *Handler) rotateSourceSecret(w http.ResponseWriter, r *http.Request) {
	srcID, ok := pathID(w, r)
	if !ok {
		return
	}
	secret, err := h.hl.Sources().RotateSecret(r.Context(), srcID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

// --- Destinations ---

func (h *Handler) createDestination(w http.ResponseWriter, r *http.Request) {
	var in destination.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	dst, err := h.hl.Destinations().Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dst)
}

func (h *Handler) listDestinations(w http.ResponseWriter, r *http.Request) {
	dsts, err := h.hl.Destinations().List(r.Context(), destination.ListOpts{
		Offset: queryInt(r, "offset"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dsts)
}

func (h *Handler) getDestination(w http.ResponseWriter, r *http.Request) {
	dstID, ok := pathID(w, r)
	if !ok {
		return
	}
	dst, err := h.hl.Destinations().Get(r.Context(), dstID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dst)
}

func (h *Handler) setDestinationStatus(status destination.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dstID, ok := pathID(w, r)
		if !ok {
			return
		}
		dst, err := h.hl.Destinations().SetStatus(r.Context(), dstID, status)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, dst)
	}
}

func (h *Handler) subscribeDestination(w http.ResponseWriter, r *http.Request) {
	dstID, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	dst, err := h.hl.Destinations().Subscribe(r.Context(), dstID, body.Address)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dst)
}

// --- Connections ---

func (h *Handler) createConnection(w http.ResponseWriter, r *http.Request) {
	var in connection.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	conn, err := h.hl.Connections().Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

func (h *Handler) getConnection(w http.ResponseWriter, r *http.Request) {
	connID, ok := pathID(w, r)
	if !ok {
		return
	}
	conn, err := h.hl.Connections().Get(r.Context(), connID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// --- Events ---

// eventView is the inspection shape for events: the body is rendered via
// DisplayableBody so binary payloads never leak raw bytes into JSON.
type eventView struct {
	*event.Event
	Body string `json:"body"`
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	opts := event.ListOpts{
		Offset: queryInt(r, "offset"),
		Limit:  queryInt(r, "limit"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := event.Status(s)
		opts.Status = &status
	}
	evts, err := h.hl.Store().ListEvents(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evts)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	evtID, ok := pathID(w, r)
	if !ok {
		return
	}
	evt, err := h.hl.Store().GetEvent(r.Context(), evtID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eventView{Event: evt, Body: evt.DisplayableBody()})
}

func (h *Handler) listEventDeliveries(w http.ResponseWriter, r *http.Request) {
	evtID, ok := pathID(w, r)
	if !ok {
		return
	}
	ds, err := h.hl.Deliveries().List(r.Context(), delivery.ListOpts{EventID: &evtID})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) replayEvent(w http.ResponseWriter, r *http.Request) {
	evtID, ok := pathID(w, r)
	if !ok {
		return
	}
	created, err := h.hl.ReplayEvent(r.Context(), evtID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"deliveries_created": created})
}

// --- Deliveries ---

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	opts := delivery.ListOpts{
		Offset: queryInt(r, "offset"),
		Limit:  queryInt(r, "limit"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := delivery.Status(s)
		opts.Status = &status
	}
	ds, err := h.hl.Deliveries().List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	delID, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.hl.Deliveries().Get(r.Context(), delID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	delID, ok := pathID(w, r)
	if !ok {
		return
	}
	attempts, err := h.hl.Deliveries().Attempts(r.Context(), delID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) cancelDelivery(w http.ResponseWriter, r *http.Request) {
	delID, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.hl.Deliveries().Cancel(r.Context(), delID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) retryDelivery(w http.ResponseWriter, r *http.Request) {
	delID, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.hl.Deliveries().Retry(r.Context(), delID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, d)
}

func (h *Handler) replayDelivery(w http.ResponseWriter, r *http.Request) {
	delID, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := h.hl.Deliveries().Replay(r.Context(), delID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// --- Helpers ---

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, hookline.ErrSourceNotFound),
		errors.Is(err, hookline.ErrDestinationNotFound),
		errors.Is(err, hookline.ErrConnectionNotFound),
		errors.Is(err, hookline.ErrEventNotFound),
		errors.Is(err, hookline.ErrDeliveryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, delivery.ErrNotCancellable),
		errors.Is(err, delivery.ErrNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "api request failed",
			"path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isValidationError(err error) bool {
	var srcErr *source.ValidationError
	var dstErr *destination.ValidationError
	var connErr *connection.ValidationError
	return errors.As(err, &srcErr) || errors.As(err, &dstErr) || errors.As(err, &connErr)
}

func pathID(w http.ResponseWriter, r *http.Request) (id.ID, bool) {
	parsed, err := id.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return id.ID{}, false
	}
	return parsed, true
}

func queryInt(r *http.Request, key string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(key))
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
