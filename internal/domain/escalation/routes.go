package escalation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citywatch/citywatch-api/internal/middleware"
)

// Routes returns escalation routes, mounted under /moderation/escalation
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequireStaff())

	r.Get("/evaluate", h.Evaluate)

	r.Get("/rules", h.ListRules)
	r.Get("/rules/{id}", h.GetRule)

	// Rule edits need lead officer or above; the service enforces it
	r.Post("/rules", h.CreateRule)
	r.Put("/rules/{id}", h.UpdateRule)
	r.Delete("/rules/{id}", h.DeleteRule)

	return r
}
