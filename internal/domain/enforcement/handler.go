package enforcement

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/errorhandler"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
	"github.com/citywatch/citywatch-api/internal/pkg/validator"
)

const (
	defaultPageSize = 20
	maxPageSize     = maxActionsPage
)

// Handler handles action executor HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates enforcement handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ApplyAction applies a manual action
// POST /moderation/actions
func (h *Handler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	var req ApplyActionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	action, err := h.service.ApplyAction(r.Context(), middleware.GetPrincipal(r.Context()), req.toInput())
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, action)
}

// ListActions lists actions
// GET /moderation/actions?target_user_id=&action_type=&active=true
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r, defaultPageSize, maxPageSize)
	q := r.URL.Query()
	filter := &ActionFilter{
		ActionType: ActionType(q.Get("action_type")),
		Limit:      limit,
		Offset:     offset,
	}
	if target := q.Get("target_user_id"); target != "" {
		id, err := uuid.Parse(target)
		if err != nil {
			response.BadRequest(w, "Invalid target_user_id")
			return
		}
		filter.TargetUserID = &id
	}
	if report := q.Get("report_id"); report != "" {
		id, err := uuid.Parse(report)
		if err != nil {
			response.BadRequest(w, "Invalid report_id")
			return
		}
		filter.ReportID = &id
	}
	if q.Get("active") == "true" {
		now := h.service.now().UTC()
		filter.ActiveAt = &now
	}

	actions, total, err := h.service.ListActions(r.Context(), middleware.GetPrincipal(r.Context()), filter)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	if actions == nil {
		actions = []*Action{}
	}

	response.WithMeta(w, actions, response.Page(total, filter.Limit, offset))
}

// GetAction returns one action
// GET /moderation/actions/{id}
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	actionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid action ID")
		return
	}

	action, err := h.service.GetAction(r.Context(), middleware.GetPrincipal(r.Context()), actionID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, action)
}

// Rollback reverses an action by its audit entry
// POST /moderation/rollbacks
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	entry, err := h.service.Rollback(r.Context(), middleware.GetPrincipal(r.Context()), req.LogID, req.Reason)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, entry)
}

// EscalateReport runs the escalation matrix for a report
// POST /moderation/reports/{id}/escalate
func (h *Handler) EscalateReport(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	var req EscalateRequest
	if r.ContentLength > 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "Invalid request body")
			return
		}
	}

	result, err := h.service.EscalateReport(r.Context(), middleware.GetPrincipal(r.Context()), reportID, req.ActorID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, result)
}

// ListJobs lists outbox jobs
// GET /moderation/enforcement/jobs?status=failed
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r, defaultPageSize, maxPageSize)

	jobs, err := h.service.ListJobs(r.Context(), middleware.GetPrincipal(r.Context()), JobStatus(r.URL.Query().Get("status")), limit, offset)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	if jobs == nil {
		jobs = []*Job{}
	}

	response.OK(w, jobs)
}

// RedriveJob requeues a failed job
// POST /moderation/enforcement/jobs/{id}/redrive
func (h *Handler) RedriveJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid job ID")
		return
	}

	job, err := h.service.Redrive(r.Context(), middleware.GetPrincipal(r.Context()), jobID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, job)
}
