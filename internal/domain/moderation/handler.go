package moderation

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
	"github.com/citywatch/citywatch-api/internal/pkg/errorhandler"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
	"github.com/citywatch/citywatch-api/internal/pkg/validator"
)

// Handler handles report HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates moderation handler
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// CreateReport submits a new report
// POST /reports
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errors := validator.Validate(&req); errors != nil {
		response.ValidationError(w, errors)
		return
	}

	report, err := h.service.Submit(r.Context(), middleware.GetPrincipal(r.Context()), req.toInput())
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, CreateReportResponse{ID: report.ID, Status: report.Status})
}

// ListMyReports lists reports created by current user
// GET /reports/mine
func (h *Handler) ListMyReports(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r, defaultPageSize, maxPageSize)

	reports, total, err := h.service.ListMine(r.Context(), middleware.GetPrincipal(r.Context()), limit, offset)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.WithMeta(w, nonNil(reports), response.Page(total, limit, offset))
}

// ListReports lists reports for staff
// GET /moderation/reports?status=
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, offset := response.ParsePage(r, defaultPageSize, maxPageSize)
	filter := &ListFilter{
		Status: ReportStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if target := r.URL.Query().Get("target_user_id"); target != "" {
		id, err := uuid.Parse(target)
		if err != nil {
			response.BadRequest(w, "Invalid target_user_id")
			return
		}
		filter.TargetUserID = &id
	}

	reports, total, err := h.service.List(r.Context(), middleware.GetPrincipal(r.Context()), filter)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.WithMeta(w, nonNil(reports), response.Page(total, limit, offset))
}

// GetReport returns one report
// GET /moderation/reports/{id}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, r, h.service.Get)
}

// BeginReview claims a pending report
// POST /moderation/reports/{id}/review
func (h *Handler) BeginReview(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, r, h.service.BeginReview)
}

// RejectReport closes a report without action
// POST /moderation/reports/{id}/reject
func (h *Handler) RejectReport(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, r, h.service.Reject)
}

// ResolveReport closes a reviewed report without action
// POST /moderation/reports/{id}/resolve
func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	h.withReport(w, r, h.service.ResolveWithoutAction)
}

func (h *Handler) withReport(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, p access.Principal, id uuid.UUID) (*Report, error)) {
	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	report, err := op(r.Context(), middleware.GetPrincipal(r.Context()), reportID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, report)
}

func nonNil(reports []*Report) []*Report {
	if reports == nil {
		return []*Report{}
	}
	return reports
}
