package probe

import (
	"context"
	"fmt"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/openkpi/portal/internal/kube"
	"github.com/openkpi/portal/internal/status"
)

// MinReadyPodRatio is the share of ready pods below which the cluster is
// reported as degraded.
const MinReadyPodRatio = 0.70

// Workloads counts ready workloads by kind.
type Workloads struct {
	Pods         ReadyTotal `json:"pods"`
	Deployments  ReadyTotal `json:"deployments"`
	StatefulSets ReadyTotal `json:"statefulsets"`
}

// KubernetesSummary is the cluster inventory shown on the portal.
type KubernetesSummary struct {
	Namespaces    []string       `json:"namespaces"`
	Workloads     Workloads      `json:"workloads"`
	RestartsTotal int            `json:"restarts_total"`
	Ingresses     []IngressRoute `json:"ingresses"`
}

// KubernetesResult is the outcome of the Kubernetes probe.
type KubernetesResult struct {
	Service status.ServiceStatus
	Summary KubernetesSummary
}

// Kubernetes probes the orchestrator API.
type Kubernetes struct {
	conn kube.Connection
}

// NewKubernetes creates the probe.
func NewKubernetes(conn kube.Connection) *Kubernetes {
	return &Kubernetes{conn: conn}
}

// Probe lists namespaces, pods, deployments, statefulsets and ingresses.
func (p *Kubernetes) Probe(ctx context.Context) KubernetesResult {
	summary, err := p.collect(ctx)
	if err != nil {
		return KubernetesResult{
			Service: status.New(status.ServiceKubernetes, status.Down, "Kubernetes API unreachable",
				status.WithEvidenceParts(EvidenceKubernetes, map[string]any{
					"error":       err.Error(),
					"config_mode": p.conn.Mode,
				}),
			),
			Summary: KubernetesSummary{Namespaces: []string{}, Ingresses: []IngressRoute{}},
		}
	}

	w := summary.Workloads
	st, reason := status.Operational, ""
	if w.Pods.Total > 0 && w.Pods.Ready < max(1, int(float64(w.Pods.Total)*MinReadyPodRatio)) {
		st, reason = status.Degraded, "Low ready pod ratio"
	}

	return KubernetesResult{
		Service: status.New(status.ServiceKubernetes, st, reason,
			status.WithEvidenceParts(EvidenceKubernetes, map[string]any{
				"config_mode":      p.conn.Mode,
				"namespaces_count": len(summary.Namespaces),
				"pods":             w.Pods,
				"deployments":      w.Deployments,
				"statefulsets":     w.StatefulSets,
				"restarts_total":   summary.RestartsTotal,
				"ingresses_count":  len(summary.Ingresses),
			}),
		),
		Summary: summary,
	}
}

func (p *Kubernetes) collect(ctx context.Context) (KubernetesSummary, error) {
	if !p.conn.Ready() {
		return KubernetesSummary{}, p.conn.Error()
	}
	cs := p.conn.Clientset
	opts := metav1.ListOptions{}

	nsList, err := cs.CoreV1().Namespaces().List(ctx, opts)
	if err != nil {
		return KubernetesSummary{}, fmt.Errorf("list namespaces: %w", err)
	}
	pods, err := cs.CoreV1().Pods(metav1.NamespaceAll).List(ctx, opts)
	if err != nil {
		return KubernetesSummary{}, fmt.Errorf("list pods: %w", err)
	}
	deployments, err := cs.AppsV1().Deployments(metav1.NamespaceAll).List(ctx, opts)
	if err != nil {
		return KubernetesSummary{}, fmt.Errorf("list deployments: %w", err)
	}
	statefulsets, err := cs.AppsV1().StatefulSets(metav1.NamespaceAll).List(ctx, opts)
	if err != nil {
		return KubernetesSummary{}, fmt.Errorf("list statefulsets: %w", err)
	}
	ingresses, err := cs.NetworkingV1().Ingresses(metav1.NamespaceAll).List(ctx, opts)
	if err != nil {
		return KubernetesSummary{}, fmt.Errorf("list ingresses: %w", err)
	}

	summary := KubernetesSummary{
		Namespaces: make([]string, 0, len(nsList.Items)),
		Ingresses:  RoutesFromIngresses(ingresses.Items),
	}
	for i := range nsList.Items {
		summary.Namespaces = append(summary.Namespaces, nsList.Items[i].Name)
	}

	summary.Workloads.Pods.Total = len(pods.Items)
	for i := range pods.Items {
		if podReady(&pods.Items[i]) {
			summary.Workloads.Pods.Ready++
		}
		for _, c := range pods.Items[i].Status.ContainerStatuses {
			summary.RestartsTotal += int(c.RestartCount)
		}
	}

	summary.Workloads.Deployments.Total = len(deployments.Items)
	for i := range deployments.Items {
		if deployments.Items[i].Status.AvailableReplicas >= 1 {
			summary.Workloads.Deployments.Ready++
		}
	}

	summary.Workloads.StatefulSets.Total = len(statefulsets.Items)
	for i := range statefulsets.Items {
		if statefulsets.Items[i].Status.ReadyReplicas >= 1 {
			summary.Workloads.StatefulSets.Ready++
		}
	}

	return summary, nil
}

// podReady is true when the pod has containers and all of them are ready.
func podReady(p *corev1.Pod) bool {
	if len(p.Status.ContainerStatuses) == 0 {
		return false
	}
	for _, c := range p.Status.ContainerStatuses {
		if !c.Ready {
			return false
		}
	}
	return true
}

// RoutesFromIngresses flattens ingress rules into one row per host/path
// pointing at a backend service.
func RoutesFromIngresses(items []networkingv1.Ingress) []IngressRoute {
	routes := []IngressRoute{}
	for i := range items {
		ing := &items[i]
		for _, rule := range ing.Spec.Rules {
			if rule.HTTP == nil {
				continue
			}
			for _, path := range rule.HTTP.Paths {
				svc := path.Backend.Service
				if svc == nil {
					continue
				}
				p := path.Path
				if p == "" {
					p = "/"
				}
				port := svc.Port.Name
				if svc.Port.Number != 0 {
					port = strconv.Itoa(int(svc.Port.Number))
				}
				routes = append(routes, IngressRoute{
					Namespace:   ing.Namespace,
					Name:        ing.Name,
					Host:        rule.Host,
					Path:        p,
					Service:     svc.Name,
					ServicePort: port,
				})
			}
		}
	}
	return routes
}
