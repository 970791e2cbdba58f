package handler

import (
	"net/http"
	"time"

	"github.com/openkpi/portal/internal/api/models"
	"github.com/openkpi/portal/internal/api/response"
	"github.com/openkpi/portal/internal/provider/resilience"
	"github.com/openkpi/portal/internal/status"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	service   string
	version   string
	providers Providers
	now       Clock
}

// NewOpsHandler creates a new OpsHandler. providers may be nil.
func NewOpsHandler(service, version string, providers Providers, now Clock) *OpsHandler {
	return &OpsHandler{
		service:   service,
		version:   version,
		providers: providers,
		now:       now,
	}
}

// Health handles GET /health. It never touches a backend.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, models.Health{
		Status:      models.HealthStatusOK,
		GeneratedAt: h.now.stamp(),
		Service:     h.service,
		Version:     h.version,
	})
}

// Providers handles GET /ops/providers.
func (h *OpsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	out := models.Providers{
		GeneratedAt: h.now.stamp(),
		Providers:   []models.ProviderStatus{},
	}
	if h.providers != nil {
		for _, th := range h.providers.GetAllHealth() {
			out.Providers = append(out.Providers, models.ProviderStatus{
				Provider:            th.Name,
				State:               resilience.StateName(th.CircuitState),
				Healthy:             th.IsHealthy(),
				Requests:            th.Counts.Requests,
				ConsecutiveFailures: th.Counts.ConsecutiveFailures,
				LastSuccessAt:       stampPtr(th.LastSuccessAt),
				LastFailureAt:       stampPtr(th.LastFailureAt),
				LastError:           th.LastError,
			})
		}
	}
	response.OK(w, r, out)
}

func stampPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := status.FormatTime(*t)
	return &s
}
