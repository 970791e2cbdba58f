// Package kube loads a read-only Kubernetes clientset for the probes.
package kube

import (
	"errors"
	"fmt"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Config modes reported in probe evidence.
const (
	ModeInCluster  = "incluster"
	ModeKubeconfig = "kubeconfig"
)

// DefaultTimeout bounds every API call made through the clientset.
const DefaultTimeout = 5 * time.Second

// ErrNotConnected is reported when no clientset could be built.
var ErrNotConnected = errors.New("kubernetes client not configured")

// Connection is the outcome of loading cluster credentials. A failed load is
// kept rather than returned so the Kubernetes probe can report it as DOWN.
type Connection struct {
	Clientset kubernetes.Interface
	Mode      string
	Err       error
}

// Ready reports whether the clientset can be used.
func (c Connection) Ready() bool {
	return c.Clientset != nil && c.Err == nil
}

// Error returns the load error, or ErrNotConnected when no clientset exists.
func (c Connection) Error() error {
	if c.Err != nil {
		return c.Err
	}
	if c.Clientset == nil {
		return ErrNotConnected
	}
	return nil
}

// Connect tries the in-cluster service account first, then kubeconfig
// (the KUBECONFIG path, or the default loading rules when empty).
func Connect(kubeconfig string) Connection {
	restCfg, err := rest.InClusterConfig()
	mode := ModeInCluster
	if err != nil {
		mode = ModeKubeconfig
		restCfg, err = loadKubeconfig(kubeconfig)
		if err != nil {
			return Connection{Mode: mode, Err: fmt.Errorf("load kubeconfig: %w", err)}
		}
	}

	restCfg.Timeout = DefaultTimeout

	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return Connection{Mode: mode, Err: fmt.Errorf("create clientset: %w", err)}
	}
	return Connection{Clientset: cs, Mode: mode}
}

// FromClientset wraps an existing clientset, typically a fake in tests.
func FromClientset(cs kubernetes.Interface, mode string) Connection {
	return Connection{Clientset: cs, Mode: mode}
}

func loadKubeconfig(path string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		rules.ExplicitPath = path
	}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
}
