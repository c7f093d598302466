package court

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/errorhandler"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
	"github.com/citywatch/citywatch-api/internal/pkg/validator"
)

// Handler handles court referral HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates court handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListPending lists pending referrals for staff
// GET /moderation/referrals/pending?actor_id=
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.listPending(w, r, middleware.GetPrincipal(r.Context()))
}

// CourtPending lists pending referrals for the court
// GET /court/referrals/pending?actor_id=
func (h *Handler) CourtPending(w http.ResponseWriter, r *http.Request) {
	h.listPending(w, r, access.System())
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request, p access.Principal) {
	var actorID *uuid.UUID
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid actor_id")
			return
		}
		actorID = &id
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	referrals, err := h.service.GetPendingReferrals(r.Context(), p, actorID, limit)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, referrals)
}

// Get returns one referral
// GET /moderation/referrals/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid referral ID")
		return
	}

	referral, err := h.service.Get(r.Context(), middleware.GetPrincipal(r.Context()), id)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, referral)
}

// SubmitVerdict resumes a parked case
// POST /court/referrals/{id}/verdict
func (h *Handler) SubmitVerdict(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid referral ID")
		return
	}

	var req VerdictRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	referral, err := h.service.SubmitVerdict(r.Context(), id, req.toVerdict())
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, referral)
}
