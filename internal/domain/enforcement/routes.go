package enforcement

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
)

// Routes returns action routes, mounted under /moderation
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequireStaff())

	r.Route("/actions", func(r chi.Router) {
		r.Get("/", h.ListActions)
		r.Post("/", h.ApplyAction)
		r.Get("/{id}", h.GetAction)
	})
	r.Post("/rollbacks", h.Rollback)

	r.Route("/enforcement/jobs", func(r chi.Router) {
		r.Use(middleware.RequirePermission(access.PermRedriveJobs))
		r.Get("/", h.ListJobs)
		r.Post("/{id}/redrive", h.RedriveJob)
	})

	return r
}

// AttachReportRoutes adds the escalate endpoint to the staff report router
func (h *Handler) AttachReportRoutes(r chi.Router) {
	r.Post("/{id}/escalate", h.EscalateReport)
}
