package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/access"
)

// Routes returns ledger routes, mounted under /moderation/audit
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequirePermission(access.PermViewAudit))

	r.Get("/", h.List)
	r.Get("/changes", h.Changes)
	r.With(middleware.RequirePermission(access.PermExportAudit)).Post("/export", h.Export)
	r.Get("/{id}", h.Get)

	return r
}
