package probe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/openkpi/portal/internal/kube"
	"github.com/openkpi/portal/internal/probe"
	"github.com/openkpi/portal/internal/status"
)

func pod(ns, name string, ready bool, restarts int32) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{{Name: "main", Ready: ready, RestartCount: restarts}},
		},
	}
}

func ingress(ns, name, host, service string) *networkingv1.Ingress {
	return &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{
				Host: host,
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: service,
									Port: networkingv1.ServiceBackendPort{Number: 80},
								},
							},
						}},
					},
				},
			}},
		},
	}
}

func namespace(name string) *corev1.Namespace {
	return &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
}

func fakeConn(objects ...runtime.Object) kube.Connection {
	return kube.FromClientset(fake.NewClientset(objects...), kube.ModeKubeconfig)
}

func TestKubernetes_Operational(t *testing.T) {
	conn := fakeConn(
		namespace("platform"),
		namespace("airbyte"),
		pod("platform", "api", true, 1),
		pod("airbyte", "server", true, 2),
		&appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Namespace: "platform", Name: "api"},
			Status:     appsv1.DeploymentStatus{AvailableReplicas: 1},
		},
		&appsv1.StatefulSet{
			ObjectMeta: metav1.ObjectMeta{Namespace: "open-kpi", Name: "postgres"},
		},
		ingress("platform", "portal", "portal.example.org", "portal-web"),
	)

	res := probe.NewKubernetes(conn).Probe(context.Background())

	assert.Equal(t, status.Operational, res.Service.Status)
	assert.Equal(t, probe.EvidenceKubernetes, res.Service.Evidence.Type)
	assert.ElementsMatch(t, []string{"platform", "airbyte"}, res.Summary.Namespaces)
	assert.Equal(t, probe.ReadyTotal{Ready: 2, Total: 2}, res.Summary.Workloads.Pods)
	assert.Equal(t, probe.ReadyTotal{Ready: 1, Total: 1}, res.Summary.Workloads.Deployments)
	assert.Equal(t, probe.ReadyTotal{Ready: 0, Total: 1}, res.Summary.Workloads.StatefulSets)
	assert.Equal(t, 3, res.Summary.RestartsTotal)
	require.Len(t, res.Summary.Ingresses, 1)
	assert.Equal(t, "/", res.Summary.Ingresses[0].Path)
	assert.Equal(t, "80", res.Summary.Ingresses[0].ServicePort)
}

func TestKubernetes_LowReadyRatio(t *testing.T) {
	conn := fakeConn(
		pod("a", "p1", true, 0),
		pod("a", "p2", false, 0),
		pod("a", "p3", false, 0),
		pod("a", "p4", false, 0),
	)

	res := probe.NewKubernetes(conn).Probe(context.Background())

	assert.Equal(t, status.Degraded, res.Service.Status)
	assert.Equal(t, "Low ready pod ratio", res.Service.Reason)
}

func TestKubernetes_NotConnected(t *testing.T) {
	conn := kube.Connection{Mode: kube.ModeKubeconfig, Err: errors.New("no kubeconfig")}

	res := probe.NewKubernetes(conn).Probe(context.Background())

	assert.Equal(t, status.Down, res.Service.Status)
	assert.Equal(t, "Kubernetes API unreachable", res.Service.Reason)
	assert.Equal(t, "no kubeconfig", res.Service.Evidence.Details["error"])
	assert.Equal(t, kube.ModeKubeconfig, res.Service.Evidence.Details["config_mode"])
	assert.NotNil(t, res.Summary.Namespaces)
}

func TestIngress_DiscoversLinks(t *testing.T) {
	conn := fakeConn(
		ingress("airbyte", "airbyte", "airbyte.example.org", "airbyte-webapp"),
		ingress("transform", "dbt", "dbt.example.org", "dbt-docs"),
		ingress("platform", "portal", "portal.example.org", "portal-web"),
	)

	cfg := testConfig()
	cfg.Hosts.Metabase = "bi.example.org"

	res := probe.NewIngress(cfg, conn).Probe(context.Background())

	assert.Equal(t, status.Operational, res.Service.Status)
	assert.Len(t, res.Routes, 3)
	assert.Equal(t, "https://airbyte.example.org", res.Links.Airbyte)
	assert.Equal(t, "https://bi.example.org", res.Links.Metabase)
	assert.Equal(t, "https://dbt.example.org/docs", res.Links.DBTDocs)
	assert.Equal(t, "https://dbt.example.org/#!/overview", res.Links.DBTLineage)
	assert.Equal(t, "https://portal.example.org", res.Links.Portal)
	assert.Empty(t, res.Links.Zammad)
	assert.Equal(t, "https://portal.example.org", res.Service.Links.UI)
	assert.Equal(t, "https://portal.example.org/api", res.Service.Links.API)
}

func TestIngress_PortalBaseWins(t *testing.T) {
	conn := fakeConn(ingress("platform", "portal", "portal.example.org", "portal-web"))

	cfg := testConfig()
	cfg.PortalUIBase = "https://kpi.example.org"
	cfg.PortalAPIBase = "https://kpi.example.org/backend"

	res := probe.NewIngress(cfg, conn).Probe(context.Background())

	assert.Equal(t, "https://kpi.example.org", res.Links.Portal)
	assert.Equal(t, "https://kpi.example.org/backend", res.Service.Links.API)
}

func TestIngress_NoneFound(t *testing.T) {
	res := probe.NewIngress(testConfig(), fakeConn()).Probe(context.Background())

	assert.Equal(t, status.Degraded, res.Service.Status)
	assert.Equal(t, "No ingresses discovered", res.Service.Reason)
}

func TestIngress_NotConnected(t *testing.T) {
	res := probe.NewIngress(testConfig(), kube.Connection{}).Probe(context.Background())

	assert.Equal(t, status.Down, res.Service.Status)
	assert.Equal(t, "Ingress discovery failed", res.Service.Reason)
	assert.Equal(t, probe.LinkTable{}, res.Links)
}
