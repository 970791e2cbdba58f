// Package api provides the HTTP API of the OpenKPI portal.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/api/handler"
	"github.com/openkpi/portal/internal/api/middleware"
	"github.com/openkpi/portal/internal/api/response"
	"github.com/openkpi/portal/internal/status"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	ServiceName string
	Logger      zerolog.Logger
	RequireTLS  bool

	// Metrics records HTTP server metrics when set.
	Metrics *middleware.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	Sweeper   handler.Sweeper
	Catalog   handler.Catalog
	Documents handler.Documents
	Providers handler.Providers
	Clock     handler.Clock
}

// NewRouter creates a chi router with all portal routes. Every route is
// served both at the root and under /api.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "portal-api"
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	routes := portalRoutes(cfg, serviceName)
	r.Group(routes)
	r.Route("/api", routes)

	return r
}

func portalRoutes(cfg RouterConfig, serviceName string) func(chi.Router) {
	ops := handler.NewOpsHandler(serviceName, cfg.Version, cfg.Providers, cfg.Clock)
	st := handler.NewStatusHandler(cfg.Sweeper, cfg.Catalog, cfg.Logger, cfg.Clock)
	cat := handler.NewCatalogHandler(cfg.Catalog, cfg.Documents, cfg.Logger, cfg.Clock)

	sweepLimit := middleware.RateLimitByIP(middleware.SweepRateLimit)
	searchLimit := middleware.RateLimitByIP(middleware.SearchRateLimit)

	return func(r chi.Router) {
		r.Get("/health", ops.Health)
		r.Get("/ops/providers", ops.Providers)

		r.Group(func(r chi.Router) {
			r.Use(sweepLimit)
			r.Get("/services", st.Services)
			r.Get("/summary", st.Summary)

			r.Get("/k8s/summary", st.Detail(status.ServiceKubernetes))
			r.Get("/storage/minio", st.Detail(status.ServiceMinIO))
			r.Get("/ingestion/airbyte", st.Detail(status.ServiceAirbyte))
			r.Get("/transform/dbt", st.Detail(status.ServiceDBT))
			r.Get("/ops/n8n", st.Detail(status.ServiceN8N))
			r.Get("/itsm/zammad", st.Detail(status.ServiceZammad))
			r.Get("/analytics/metabase", st.Detail(status.ServiceMetabase))
		})

		r.Get("/catalog/tables", cat.Tables)
		r.Get("/catalog/dbt/projects", cat.DBTProjects)
		r.Get("/catalog/dbt/assets", cat.DBTAssets)

		r.Group(func(r chi.Router) {
			r.Use(searchLimit)
			r.Get("/catalog/search", cat.CatalogSearch)
			r.Get("/search", cat.Search)
		})
	}
}
