package escalation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/errorhandler"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
)

// Handler handles escalation HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates escalation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Evaluate previews the matrix decision for an actor
// GET /moderation/escalation/evaluate?actor_id=&violation_type=&as_of=
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	actorID, err := uuid.Parse(q.Get("actor_id"))
	if err != nil {
		response.BadRequest(w, "Invalid actor_id")
		return
	}
	violationType := q.Get("violation_type")
	if violationType == "" {
		response.ValidationError(w, map[string]string{"violation_type": "This field is required"})
		return
	}

	var asOf time.Time
	if raw := q.Get("as_of"); raw != "" {
		asOf, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid as_of, expected RFC3339")
			return
		}
	}

	decision, err := h.service.Evaluate(r.Context(), middleware.GetPrincipal(r.Context()), actorID, violationType, asOf)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, decision)
}

// ListRules lists escalation rules
// GET /moderation/escalation/rules?violation_type=&active=true
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	filter := RuleFilter{
		ViolationType: r.URL.Query().Get("violation_type"),
		ActiveOnly:    r.URL.Query().Get("active") == "true",
	}

	rules, err := h.service.ListRules(r.Context(), middleware.GetPrincipal(r.Context()), filter)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	if rules == nil {
		rules = []*Rule{}
	}

	response.OK(w, rules)
}

// GetRule returns one rule
// GET /moderation/escalation/rules/{id}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid rule ID")
		return
	}

	rule, err := h.service.GetRule(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, rule)
}

// CreateRule adds a rule
// POST /moderation/escalation/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	rule, err := h.service.CreateRule(r.Context(), middleware.GetPrincipal(r.Context()), &req)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, rule)
}

// UpdateRule replaces a rule
// PUT /moderation/escalation/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid rule ID")
		return
	}

	var req RuleRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	rule, err := h.service.UpdateRule(r.Context(), middleware.GetPrincipal(r.Context()), id, &req)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, rule)
}

// DeleteRule removes a rule
// DELETE /moderation/escalation/rules/{id}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid rule ID")
		return
	}

	if err := h.service.DeleteRule(r.Context(), middleware.GetPrincipal(r.Context()), id); err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.NoContent(w)
}
