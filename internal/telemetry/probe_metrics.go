package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// platformStatusValue maps verdicts onto a gauge value.
var platformStatusValue = map[string]int64{
	"OPERATIONAL": 0,
	"DEGRADED":    1,
	"DOWN":        2,
}

// ProbeMetrics records the outcome of every probe run and of every sweep.
type ProbeMetrics struct {
	duration       metric.Float64Histogram
	results        metric.Int64Counter
	platformStatus metric.Int64Gauge
	operational    metric.Int64Gauge
}

// NewProbeMetrics creates the probe instruments on meter.
func NewProbeMetrics(meter metric.Meter) (*ProbeMetrics, error) {
	duration, err := meter.Float64Histogram(
		"portal.probe.duration",
		metric.WithDescription("Duration of a single probe run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	results, err := meter.Int64Counter(
		"portal.probe.results",
		metric.WithDescription("Probe runs by service and resulting status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	platformStatus, err := meter.Int64Gauge(
		"portal.platform.status",
		metric.WithDescription("Platform verdict of the last sweep: 0 operational, 1 degraded, 2 down"),
	)
	if err != nil {
		return nil, err
	}

	operational, err := meter.Int64Gauge(
		"portal.platform.operational_services",
		metric.WithDescription("Required services reported operational by the last sweep"),
		metric.WithUnit("{service}"),
	)
	if err != nil {
		return nil, err
	}

	return &ProbeMetrics{
		duration:       duration,
		results:        results,
		platformStatus: platformStatus,
		operational:    operational,
	}, nil
}

// RecordProbe records one probe run. A nil receiver is a no-op.
func (m *ProbeMetrics) RecordProbe(ctx context.Context, service, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("status", status),
	)
	m.duration.Record(ctx, d.Seconds(), attrs)
	m.results.Add(ctx, 1, attrs)
}

// RecordSweep records the platform verdict. A nil receiver is a no-op.
func (m *ProbeMetrics) RecordSweep(ctx context.Context, status string, operational int) {
	if m == nil {
		return
	}
	if v, ok := platformStatusValue[status]; ok {
		m.platformStatus.Record(ctx, v)
	}
	m.operational.Record(ctx, int64(operational))
}
