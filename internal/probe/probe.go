// Package probe contains one adapter per monitored system. Every adapter is
// built from immutable configuration, bounds each outbound call with its own
// timeout and always returns a result carrying a canonical ServiceStatus;
// failures become data, never errors.
package probe

import (
	"fmt"

	"github.com/openkpi/portal/internal/status"
)

// Evidence types used by the adapters.
const (
	EvidenceKubernetes = "k8s"
	EvidenceDatabase   = "db"
	EvidenceAPI        = "api"
	EvidenceHTTP       = "http"
)

// LinkTable holds the external URLs of the platform applications as
// published through ingress. Empty means not published.
type LinkTable struct {
	Portal     string `json:"portal"`
	Airbyte    string `json:"airbyte"`
	MinIO      string `json:"minio"`
	Metabase   string `json:"metabase"`
	DBTDocs    string `json:"dbt_docs"`
	DBTLineage string `json:"dbt_lineage"`
	N8N        string `json:"n8n"`
	Zammad     string `json:"zammad"`
}

// ReadyTotal counts ready objects out of a total.
type ReadyTotal struct {
	Ready int `json:"ready"`
	Total int `json:"total"`
}

// IngressRoute is one host/path rule of an Ingress.
type IngressRoute struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Host        string `json:"host"`
	Path        string `json:"path"`
	Service     string `json:"service"`
	ServicePort string `json:"service_port"`
}

// PanicStatus converts a value recovered from a panicking adapter into a
// DOWN record for that adapter alone.
func PanicStatus(name string, recovered any) status.ServiceStatus {
	return status.New(name, status.Down, "Probe failed",
		status.WithEvidenceParts(status.DefaultEvidenceType, map[string]any{
			"error": fmt.Sprint(recovered),
			"panic": true,
		}),
	)
}
