package telemetry_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkpi/portal/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
	})

	require.NoError(t, err)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.Nil(t, provider.MetricsHandler())

	assert.NoError(t, provider.Shutdown(ctx))
}

func TestInit_PrometheusOnly(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:       "portal-test",
		ServiceVersion:    "1.0.0",
		Environment:       "test",
		PrometheusEnabled: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	assert.Nil(t, provider.TracerProvider)
	require.NotNil(t, provider.MeterProvider)

	metrics, err := telemetry.NewProbeMetrics(provider.Meter)
	require.NoError(t, err)
	metrics.RecordProbe(ctx, "postgres", "OPERATIONAL", 25*time.Millisecond)
	metrics.RecordSweep(ctx, "DEGRADED", 8)

	handler := provider.MetricsHandler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "portal_probe_results")
	assert.Contains(t, string(body), `service="postgres"`)
	assert.Contains(t, string(body), "portal_platform_status")
}

func TestProbeMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.ProbeMetrics

	assert.NotPanics(t, func() {
		m.RecordProbe(context.Background(), "minio", "DOWN", time.Second)
		m.RecordSweep(context.Background(), "DOWN", 0)
	})
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestTracer_ReturnsGlobalTracer(t *testing.T) {
	assert.NotNil(t, telemetry.Tracer("test-tracer"))
}

func TestMeter_ReturnsGlobalMeter(t *testing.T) {
	assert.NotNil(t, telemetry.Meter("test-meter"))
}
