package reputation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
)

// Routes returns reputation read routes, mounted under /reputation
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/{class}/{actorId}", h.Get)
	r.Get("/{class}/{actorId}/events", h.ListEvents)

	return r
}

// AdminRoutes returns staff override routes, mounted under /moderation/reputation
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequirePermission(access.PermAdjustReputation))

	r.Post("/{class}/{actorId}/adjust", h.Adjust)
	r.Post("/{class}/{actorId}/events", h.RecordEvent)

	return r
}
