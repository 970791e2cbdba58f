package handler

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/api/models"
	"github.com/openkpi/portal/internal/api/response"
	"github.com/openkpi/portal/internal/catalog"
	"github.com/openkpi/portal/internal/platform"
	"github.com/openkpi/portal/internal/probe"
	"github.com/openkpi/portal/internal/status"
)

// StatusHandler serves the platform status endpoints. Every response is
// HTTP 200; failures are carried in the body.
type StatusHandler struct {
	sweeper Sweeper
	catalog Catalog
	logger  zerolog.Logger
	now     Clock
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(sweeper Sweeper, cat Catalog, logger zerolog.Logger, now Clock) *StatusHandler {
	return &StatusHandler{
		sweeper: sweeper,
		catalog: cat,
		logger:  logger,
		now:     now,
	}
}

// Services handles GET /services.
func (h *StatusHandler) Services(w http.ResponseWriter, r *http.Request) {
	snap := h.sweeper.Sweep(r.Context())
	policy := h.sweeper.Policy()

	response.OK(w, r, models.Services{
		GeneratedAt:         status.FormatTime(snap.GeneratedAt),
		Status:              snap.Status,
		OperationalFraction: snap.Operational,
		RequiredOrder:       policy.Required,
		Services:            snap.ServiceMap(),
	})
}

// Summary handles GET /summary. A panic while assembling it yields a DOWN
// summary with empty collections and the error.
func (h *StatusHandler) Summary(w http.ResponseWriter, r *http.Request) {
	out, err := h.summary(r)
	if err != nil {
		h.logger.Error().Err(err).Msg("summary failed")
		out = models.EmptySummary(h.now.stamp(), err.Error())
	}
	response.OK(w, r, out)
}

func (h *StatusHandler) summary(r *http.Request) (out models.Summary, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("summary panicked: %v", rec)
		}
	}()

	ctx := r.Context()
	snap := h.sweeper.Sweep(ctx)

	out = models.Summary{
		GeneratedAt:    status.FormatTime(snap.GeneratedAt),
		PlatformStatus: snap.Status,
		Operational:    snap.Operational,
		Links:          snap.Links,
		Services:       snap.Services,
		K8s: models.K8sOverview{
			Workloads:     snap.Kubernetes.Summary.Workloads,
			RestartsTotal: snap.Kubernetes.Summary.RestartsTotal,
			Ingresses:     snap.Ingress.Routes,
		},
		Postgres: snap.Postgres.Summary,
		Proof:    snap.Proof(),
	}
	if out.Services == nil {
		out.Services = []status.ServiceStatus{}
	}
	if out.K8s.Ingresses == nil {
		out.K8s.Ingresses = []probe.IngressRoute{}
	}

	assets, aerr := h.catalog.ListTables(ctx, 1, catalog.DefaultPageSize)
	if aerr != nil {
		h.logger.Warn().Err(aerr).Msg("summary assets unavailable")
		out.AssetsError = aerr.Error()
	}
	out.Assets = assets
	if out.Assets.Tables == nil {
		out.Assets.Tables = []catalog.Entry{}
	}
	return out, nil
}

// Detail returns the handler of a per-application endpoint. It runs only
// the named probe and the probes it depends on.
func (h *StatusHandler) Detail(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := h.sweeper.SweepOnly(r.Context(), service)
		response.OK(w, r, detail(service, snap))
	}
}

func detail(service string, snap platform.Snapshot) models.ServiceDetail {
	out := models.ServiceDetail{GeneratedAt: status.FormatTime(snap.GeneratedAt)}
	switch service {
	case status.ServiceKubernetes:
		out.Service = snap.Kubernetes.Service
		out.Summary = snap.Kubernetes.Summary
	case status.ServiceIngressTLS:
		out.Service = snap.Ingress.Service
		out.Summary = snap.Ingress.Routes
	case status.ServicePostgres:
		out.Service = snap.Postgres.Service
		out.Summary = snap.Postgres.Summary
	case status.ServiceMinIO:
		out.Service = snap.MinIO.Service
		out.Summary = snap.MinIO.Summary
	case status.ServiceAirbyte:
		out.Service = snap.Airbyte.Service
		out.LastSync = snap.Airbyte.LastSync
	case status.ServiceDBT:
		out.Service = snap.DBT.Service
		out.Summary = snap.DBT.Summary
		out.LastRun = snap.DBT.LastRun
	case status.ServiceN8N:
		out.Service = snap.N8N.Service
		out.Summary = snap.N8N.Summary
	case status.ServiceZammad:
		out.Service = snap.Zammad.Service
		out.Summary = snap.Zammad.Summary
	case status.ServiceMetabase:
		out.Service = snap.Metabase.Service
	}
	return out
}
