package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/citywatch/citywatch-api/internal/domain/audit"
	"github.com/citywatch/citywatch-api/internal/domain/court"
	"github.com/citywatch/citywatch-api/internal/domain/enforcement"
	"github.com/citywatch/citywatch-api/internal/domain/escalation"
	"github.com/citywatch/citywatch-api/internal/domain/moderation"
	"github.com/citywatch/citywatch-api/internal/domain/notification"
	"github.com/citywatch/citywatch-api/internal/domain/reputation"
	"github.com/citywatch/citywatch-api/internal/middleware"
	"github.com/citywatch/citywatch-api/internal/pkg/metrics"
	"github.com/citywatch/citywatch-api/internal/pkg/response"
)

const courtCallbackTimeout = 30 * time.Second

// Router builds the HTTP surface
func (a *App) Router() http.Handler {
	reportHandler := moderation.NewHandler(a.Reports)
	escalationHandler := escalation.NewHandler(a.Escalation)
	reputationHandler := reputation.NewHandler(a.Reputation)
	auditHandler := audit.NewHandler(a.Audit)
	actionHandler := enforcement.NewHandler(a.Actions)
	courtHandler := court.NewHandler(a.Court)
	feedHandler := notification.NewHandler(a.Hub, a.Config.AllowedOrigins)

	authMiddleware := middleware.Auth(a.JWT)
	reportLimiter := middleware.NewPerUserLimiter(a.Config.ReportRatePerMinute)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(a.Config.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, ok := a.Health(r.Context())
		status["storage"] = a.Config.StorageDriver
		status["bus"] = a.Config.EventBus
		if !ok {
			status["status"] = "degraded"
			response.JSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["status"] = "ok"
		response.OK(w, status)
	})
	if a.Config.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	// Staff live feed
	r.Mount("/ws", feedHandler.Routes(authMiddleware))

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/reports", reportHandler.Routes(authMiddleware, reportLimiter))
		r.Mount("/reputation", reputationHandler.Routes(authMiddleware))

		r.Route("/moderation", func(r chi.Router) {
			r.Mount("/reports", reportHandler.AdminRoutes(authMiddleware, actionHandler.AttachReportRoutes))
			r.Mount("/escalation", escalationHandler.Routes(authMiddleware))
			r.Mount("/reputation", reputationHandler.AdminRoutes(authMiddleware))
			r.Mount("/audit", auditHandler.Routes(authMiddleware))
			r.Mount("/referrals", courtHandler.AdminRoutes(authMiddleware))
			// actions, rollbacks and enforcement jobs
			r.Mount("/", actionHandler.Routes(authMiddleware))
		})

		r.With(middleware.Timeout(courtCallbackTimeout)).
			Mount("/court/referrals", courtHandler.CourtRoutes(middleware.CourtKey(a.Config.CourtCallbackKeyHash)))
	})

	return r
}
