package worker

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/api/middleware"
	"github.com/openkpi/portal/internal/api/models"
	"github.com/openkpi/portal/internal/api/response"
)

// Health is the worker's liveness response with the job statistics.
type Health struct {
	models.Health
	Jobs map[string]interface{} `json:"jobs"`
}

// NewHealthRouter serves GET /health for the worker process.
func NewHealthRouter(job *SweepJob, service, version string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, r, Health{
			Health: models.Health{
				Status:      models.HealthStatusOK,
				GeneratedAt: time.Now().UTC().Format(time.RFC3339),
				Service:     service,
				Version:     version,
			},
			Jobs: job.MetricsSnapshot(),
		})
	})
	return r
}
