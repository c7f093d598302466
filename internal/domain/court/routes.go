package court

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
)

// AdminRoutes returns staff routes, mounted under /moderation/referrals
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequirePermission(access.PermViewReferrals))

	r.Get("/pending", h.ListPending)
	r.Get("/{id}", h.Get)

	return r
}

// CourtRoutes returns the court callback routes, mounted under /court/referrals
func (h *Handler) CourtRoutes(courtKey func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(courtKey)

	r.Get("/pending", h.CourtPending)
	r.Post("/{id}/verdict", h.SubmitVerdict)

	return r
}
