package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openkpi/portal/internal/status"
)

func allOperational() []status.ServiceStatus {
	out := make([]status.ServiceStatus, 0, len(status.RequiredOrder()))
	for _, name := range status.RequiredOrder() {
		out = append(out, status.New(name, status.Operational, ""))
	}
	return out
}

func withStatus(services []status.ServiceStatus, name string, st status.Status) []status.ServiceStatus {
	out := make([]status.ServiceStatus, len(services))
	copy(out, services)
	for i := range out {
		if out[i].Name == name {
			out[i].Status = st
		}
	}
	return out
}

func TestPlatformStatus(t *testing.T) {
	tests := []struct {
		name     string
		services []status.ServiceStatus
		want     status.Status
	}{
		{"empty", nil, status.Operational},
		{"all operational", allOperational(), status.Operational},
		{"single critical down", []status.ServiceStatus{status.New("postgres", status.Down, "")}, status.Down},
		{"critical down among healthy", withStatus(allOperational(), "kubernetes", status.Down), status.Down},
		{"non-critical degraded", withStatus(allOperational(), "n8n", status.Degraded), status.Degraded},
		{"non-critical down", withStatus(allOperational(), "minio", status.Down), status.Degraded},
		{"critical degraded", withStatus(allOperational(), "ingress_tls", status.Degraded), status.Degraded},
		{"info does not degrade", withStatus(allOperational(), "dbt", status.Info), status.Operational},
		{
			"unknown service ignored",
			append(allOperational(), status.New("portal", status.Down, "")),
			status.Operational,
		},
		{
			"first duplicate wins",
			append(allOperational(), status.New("postgres", status.Down, "")),
			status.Operational,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.PlatformStatus(tt.services))
		})
	}
}

func TestOperationalFraction(t *testing.T) {
	y := len(status.RequiredOrder())

	assert.Equal(t, status.Fraction{X: 0, Y: y}, status.OperationalFraction(nil))
	assert.Equal(t, status.Fraction{X: y, Y: y}, status.OperationalFraction(allOperational()))
	assert.Equal(t, status.Fraction{X: y - 1, Y: y},
		status.OperationalFraction(withStatus(allOperational(), "dbt", status.Info)))

	dupes := []status.ServiceStatus{
		status.New("postgres", status.Operational, ""),
		status.New("postgres", status.Operational, ""),
		status.New("portal", status.Operational, ""),
	}
	assert.Equal(t, status.Fraction{X: 1, Y: y}, status.OperationalFraction(dupes))
}

func TestPolicy_Custom(t *testing.T) {
	p := status.Policy{Required: []string{"a", "b"}, Critical: []string{"a"}}

	assert.Equal(t, status.Down, p.PlatformStatus([]status.ServiceStatus{status.New("a", status.Down, "")}))
	assert.Equal(t, status.Degraded, p.PlatformStatus([]status.ServiceStatus{status.New("b", status.Down, "")}))
	assert.Equal(t, status.Fraction{X: 1, Y: 2}, p.OperationalFraction([]status.ServiceStatus{status.New("b", status.Operational, "")}))
	assert.True(t, p.IsCritical("a"))
	assert.False(t, p.IsRequired("c"))
}
