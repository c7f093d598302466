package reputation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/errorhandler"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
	"github.com/citywatch/citywatch-api/internal/pkg/validator"
)

// Handler handles reputation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates reputation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func actorParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, ActorClass, bool) {
	class := ActorClass(chi.URLParam(r, "class"))
	if !class.Valid() {
		response.BadRequest(w, "Unknown actor class")
		return uuid.Nil, "", false
	}
	actorID, err := uuid.Parse(chi.URLParam(r, "actorId"))
	if err != nil {
		response.BadRequest(w, "Invalid actor ID")
		return uuid.Nil, "", false
	}
	return actorID, class, true
}

// Get returns a reputation record
// GET /reputation/{class}/{actorId}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, class, ok := actorParams(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), middleware.GetPrincipal(r.Context()), actorID, class)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, rec)
}

// ListEvents returns score history
// GET /reputation/{class}/{actorId}/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	actorID, class, ok := actorParams(w, r)
	if !ok {
		return
	}
	limit, offset := response.ParsePage(r, 20, maxEventsPage)

	events, total, err := h.service.ListEvents(r.Context(), middleware.GetPrincipal(r.Context()), actorID, class, limit, offset)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	if events == nil {
		events = []*Event{}
	}

	response.WithMeta(w, events, response.Page(total, limit, offset))
}

// Adjust applies a manual override
// POST /moderation/reputation/{class}/{actorId}/adjust
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	actorID, class, ok := actorParams(w, r)
	if !ok {
		return
	}

	var req AdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	rec, err := h.service.ManualAdjust(r.Context(), middleware.GetPrincipal(r.Context()), actorID, class, req.Delta, req.Reason)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, rec)
}

// RecordEvent applies an outcome reported by another service
// POST /moderation/reputation/{class}/{actorId}/events
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	actorID, class, ok := actorParams(w, r)
	if !ok {
		return
	}

	var req EventRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	rec, err := h.service.RecordEvent(r.Context(), middleware.GetPrincipal(r.Context()), actorID, class, EventType(req.EventType), req.Delta, req.Reason, req.ReferenceID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, rec)
}
