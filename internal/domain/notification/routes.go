package notification

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns feed routes, mounted under /ws
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Get("/moderation", h.Feed)

	return r
}
