// Package models provides the response models of the portal API.
package models

import (
	"github.com/openkpi/portal/internal/catalog"
	"github.com/openkpi/portal/internal/platform"
	"github.com/openkpi/portal/internal/probe"
	"github.com/openkpi/portal/internal/status"
)

// HealthStatusOK is the only liveness answer.
const HealthStatusOK = "ok"

// Health is the liveness response.
type Health struct {
	Status      string `json:"status"`
	GeneratedAt string `json:"generated_at"`
	Service     string `json:"service"`
	Version     string `json:"version"`
}

// Services is the response of GET /services.
type Services struct {
	GeneratedAt         string                          `json:"generated_at"`
	Status              status.Status                   `json:"status"`
	OperationalFraction status.Fraction                 `json:"operational_fraction"`
	RequiredOrder       []string                        `json:"required_order"`
	Services            map[string]status.ServiceStatus `json:"services"`
}

// K8sOverview is the cluster part of the summary.
type K8sOverview struct {
	Workloads     probe.Workloads      `json:"workloads"`
	RestartsTotal int                  `json:"restarts_total"`
	Ingresses     []probe.IngressRoute `json:"ingresses"`
}

// Summary is the response of GET /summary. Error is set when the summary
// could not be assembled; the collections are then empty.
type Summary struct {
	GeneratedAt    string                 `json:"generated_at"`
	PlatformStatus status.Status          `json:"platform_status"`
	Operational    status.Fraction        `json:"operational"`
	Links          probe.LinkTable        `json:"links"`
	Services       []status.ServiceStatus `json:"services"`
	K8s            K8sOverview            `json:"k8s"`
	Postgres       probe.PostgresSummary  `json:"postgres"`
	Assets         catalog.Page           `json:"assets"`
	Proof          platform.Proof         `json:"proof"`
	AssetsError    string                 `json:"assets_error,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// EmptySummary is the summary returned when assembling one failed.
func EmptySummary(generatedAt string, err string) Summary {
	return Summary{
		GeneratedAt:    generatedAt,
		PlatformStatus: status.Down,
		Services:       []status.ServiceStatus{},
		K8s:            K8sOverview{Ingresses: []probe.IngressRoute{}},
		Assets: catalog.Page{
			Tables:     []catalog.Entry{},
			Pagination: catalog.Pagination{Page: 1, PageSize: catalog.DefaultPageSize},
		},
		Error: err,
	}
}

// Tables is a catalog listing.
type Tables struct {
	catalog.Page
	Error string `json:"error,omitempty"`
}

// Search is a catalog search. A blank query carries the first page of the
// listing instead of matches.
type Search struct {
	Query   string          `json:"query"`
	Matches []catalog.Match `json:"matches"`
	*catalog.Page
	Error string `json:"error,omitempty"`
}

// ServiceDetail is the response of the per-application endpoints.
type ServiceDetail struct {
	GeneratedAt string               `json:"generated_at"`
	Service     status.ServiceStatus `json:"service"`
	Summary     any                  `json:"summary,omitempty"`
	LastSync    *probe.AirbyteJob    `json:"last_sync,omitempty"`
	LastRun     *probe.DBTRun        `json:"last_run,omitempty"`
}

// DBTProjects is the response of GET /catalog/dbt/projects.
type DBTProjects struct {
	GeneratedAt string `json:"generated_at"`
	catalog.ProjectList
	Error string `json:"error,omitempty"`
}

// DBTAssets is the response of GET /catalog/dbt/assets.
type DBTAssets struct {
	GeneratedAt string `json:"generated_at"`
	catalog.AssetsResult
	Error string `json:"error,omitempty"`
}

// ProviderStatus is the circuit breaker view of one probe target.
type ProviderStatus struct {
	Provider            string  `json:"provider"`
	State               string  `json:"state"`
	Healthy             bool    `json:"healthy"`
	Requests            uint32  `json:"requests"`
	ConsecutiveFailures uint32  `json:"consecutive_failures"`
	LastSuccessAt       *string `json:"last_success_at,omitempty"`
	LastFailureAt       *string `json:"last_failure_at,omitempty"`
	LastError           string  `json:"last_error,omitempty"`
}

// Providers is the response of GET /ops/providers.
type Providers struct {
	GeneratedAt string           `json:"generated_at"`
	Providers   []ProviderStatus `json:"providers"`
}
