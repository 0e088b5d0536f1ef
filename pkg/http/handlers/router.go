package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pulseboard/pkg/errors"
	"pulseboard/pkg/http/middleware"
	"pulseboard/pkg/logging"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Analytics  *AnalyticsHandlers
	Activity   *ActivityHandlers
	Export     *ExportHandlers
	Health     *HealthHandler
	LiveFeed   http.HandlerFunc
	ErrHandler *errors.Handler
	Logger     *logging.Logger
	Registry   *prometheus.Registry
}

// NewRouter builds the service's chi router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.TraceID)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer(deps.ErrHandler))

	r.Get("/healthz", deps.Health.Health)
	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", deps.Analytics.GetSummary)
			r.Get("/engagement", deps.Analytics.GetEngagement)
			r.Get("/feature-usage", deps.Analytics.GetFeatureUsage)
			r.Get("/sessions", deps.Analytics.GetSessions)
			r.Get("/journey", deps.Analytics.GetJourney)
			r.Get("/segments", deps.Analytics.GetSegments)
			r.Get("/daily-active-users", deps.Analytics.GetDailyActiveUsers)
			r.Post("/refresh", deps.Analytics.Refresh)
		})

		r.Route("/activity", func(r chi.Router) {
			r.Get("/", deps.Activity.GetFiltered)
			r.Get("/recent", deps.Activity.GetRecent)
		})

		r.Get("/export/{report}", deps.Export.Export)
	})

	if deps.LiveFeed != nil {
		r.Get("/ws/activity", deps.LiveFeed)
	}

	return r
}
