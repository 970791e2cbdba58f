package probe

import (
	"context"
	"fmt"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/kube"
	"github.com/openkpi/portal/internal/status"
)

const sampleRoutes = 30

// IngressResult is the outcome of ingress discovery.
type IngressResult struct {
	Service status.ServiceStatus
	Routes  []IngressRoute
	Links   LinkTable
}

// Ingress discovers ingress routes and builds the link table the
// application probes use as their targets.
type Ingress struct {
	cfg  config.Config
	conn kube.Connection
}

// NewIngress creates the probe.
func NewIngress(cfg config.Config, conn kube.Connection) *Ingress {
	return &Ingress{cfg: cfg, conn: conn}
}

// Probe lists ingresses in all namespaces. Configured hosts take precedence;
// an application without a configured host is linked to the first route
// whose backend service carries its name.
func (p *Ingress) Probe(ctx context.Context) IngressResult {
	routes, ingresses, err := p.list(ctx)
	if err != nil {
		return IngressResult{
			Service: status.New(status.ServiceIngressTLS, status.Down, "Ingress discovery failed",
				status.WithEvidenceParts(EvidenceKubernetes, map[string]any{"error": err.Error()}),
			),
			Routes: []IngressRoute{},
		}
	}

	links, discovered := p.links(routes)

	sample := routes
	if len(sample) > sampleRoutes {
		sample = sample[:sampleRoutes]
	}

	st, reason := status.Operational, ""
	if ingresses == 0 {
		st, reason = status.Degraded, "No ingresses discovered"
	}

	return IngressResult{
		Service: status.New(status.ServiceIngressTLS, st, reason,
			status.WithLinks(links.Portal, p.portalAPI(links.Portal)),
			status.WithEvidenceParts(EvidenceKubernetes, map[string]any{
				"scheme":           p.cfg.URLScheme,
				"routes_found":     len(routes),
				"ingresses_found":  ingresses,
				"sample_routes":    sample,
				"discovered_links": discovered,
			}),
		),
		Routes: routes,
		Links:  links,
	}
}

func (p *Ingress) list(ctx context.Context) ([]IngressRoute, int, error) {
	if !p.conn.Ready() {
		return nil, 0, p.conn.Error()
	}
	list, err := p.conn.Clientset.NetworkingV1().Ingresses(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("list ingresses: %w", err)
	}
	return RoutesFromIngresses(list.Items), len(list.Items), nil
}

func (p *Ingress) links(routes []IngressRoute) (LinkTable, []string) {
	var discovered []string
	resolve := func(key, configured string) string {
		if configured != "" {
			return p.cfg.HostURL(configured)
		}
		if host := hostForService(routes, key); host != "" {
			discovered = append(discovered, key)
			return p.cfg.HostURL(host)
		}
		return ""
	}

	h := p.cfg.Hosts
	links := LinkTable{
		Airbyte:  resolve("airbyte", h.Airbyte),
		MinIO:    resolve("minio", h.MinIO),
		Metabase: resolve("metabase", h.Metabase),
		N8N:      resolve("n8n", h.N8N),
		Zammad:   resolve("zammad", h.Zammad),
	}

	links.Portal = p.cfg.PortalUIURL()
	if links.Portal == "" {
		links.Portal = resolve("portal", "")
	}

	if dbt := resolve("dbt", h.DBT); dbt != "" {
		links.DBTDocs = dbt + "/docs"
		links.DBTLineage = dbt + "/#!/overview"
	}

	if discovered == nil {
		discovered = []string{}
	}
	return links, discovered
}

func (p *Ingress) portalAPI(portal string) string {
	if portal == "" {
		return ""
	}
	if p.cfg.PortalAPIBase != "" {
		return p.cfg.PortalAPIBase
	}
	return portal + "/api"
}

func hostForService(routes []IngressRoute, key string) string {
	for _, r := range routes {
		if r.Host != "" && strings.Contains(strings.ToLower(r.Service), key) {
			return r.Host
		}
	}
	return ""
}
