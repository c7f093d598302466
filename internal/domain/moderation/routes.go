package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citywatch/citywatch-api/internal/middleware"
)

// Routes returns reporter routes, mounted under /reports
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler, limiter *middleware.PerUserLimiter) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.With(middleware.RateLimit(limiter)).Post("/", h.CreateReport)
	r.Get("/mine", h.ListMyReports)

	return r
}

// AdminRoutes returns staff routes, mounted under /moderation/reports.
// extra lets other domains attach report sub-routes such as escalation.
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler, extra ...func(r chi.Router)) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequireStaff())

	r.Get("/", h.ListReports)
	r.Get("/{id}", h.GetReport)
	r.Post("/{id}/review", h.BeginReview)
	r.Post("/{id}/reject", h.RejectReport)
	r.Post("/{id}/resolve", h.ResolveReport)

	for _, attach := range extra {
		attach(r)
	}

	return r
}
