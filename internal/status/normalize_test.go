package status_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkpi/portal/internal/status"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		raw   any
		shape status.Shape
	}{
		{"wrapped", map[string]any{"service": map[string]any{"name": "postgres"}}, status.ShapeWrapped},
		{"direct", map[string]any{"name": "postgres", "status": "DOWN"}, status.ShapeDirect},
		{"legacy", map[string]any{"service": "postgres", "status": "DOWN"}, status.ShapeLegacy},
		{"json bytes", []byte(`{"service":{"name":"minio"}}`), status.ShapeWrapped},
		{"not an object", []int{1, 2}, status.ShapeUnknown},
		{"invalid json", []byte(`{`), status.ShapeUnknown},
		{"nil", nil, status.ShapeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shape, status.Classify(tt.raw).Shape)
		})
	}
}

func TestNormalize_NameResolution(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"explicit name wins", map[string]any{"name": "postgres", "service": "other"}, "postgres"},
		{"legacy service string", map[string]any{"service": "minio"}, "minio"},
		{"wrapped name", map[string]any{"service": map[string]any{"name": "dbt"}}, "dbt"},
		{"wrapped legacy", map[string]any{"service": map[string]any{"service": "n8n"}}, "n8n"},
		{"fallback", map[string]any{"status": "OPERATIONAL"}, "fallback"},
		{"garbage", 17, "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Normalize(tt.raw, "fallback").Name)
		})
	}
}

func TestNormalize_StatusFailsClosed(t *testing.T) {
	assert.Equal(t, status.Down, status.Normalize(map[string]any{"name": "x"}, "x").Status)
	assert.Equal(t, status.Down, status.Normalize(nil, "x").Status)
	assert.Equal(t, status.Info, status.Normalize(map[string]any{"status": "weird"}, "x").Status)
	assert.Equal(t, status.Degraded, status.Normalize(map[string]any{"status": "DEGRADED"}, "x").Status)
}

func TestNormalize_LastChecked(t *testing.T) {
	ts := "2026-03-04T05:06:07Z"
	s := status.Normalize(map[string]any{"last_checked": ts}, "x")
	assert.Equal(t, time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC), s.LastChecked)

	before := time.Now().Add(-time.Second)
	s = status.Normalize(map[string]any{"last_checked": 12345}, "x")
	assert.True(t, s.LastChecked.After(before))
}

func TestNormalize_SubObjects(t *testing.T) {
	s := status.Normalize(map[string]any{
		"service": map[string]any{
			"name":     "zammad",
			"status":   "DEGRADED",
			"reason":   "API token not configured",
			"links":    map[string]any{"ui": "https://zammad.example", "extra": "x"},
			"evidence": map[string]any{"type": "http", "details": "not a map"},
		},
	}, "fallback")

	assert.Equal(t, "zammad", s.Name)
	assert.Equal(t, status.Degraded, s.Status)
	assert.Equal(t, "API token not configured", s.Reason)
	assert.Equal(t, status.Links{UI: "https://zammad.example"}, s.Links)
	assert.Equal(t, "http", s.Evidence.Type)
	assert.Equal(t, map[string]any{}, s.Evidence.Details)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []any{
		map[string]any{"service": map[string]any{"name": "postgres", "status": "OPERATIONAL"}},
		map[string]any{"service": "minio", "status": "bogus", "last_checked": "2026-01-01T00:00:00Z"},
		map[string]any{"links": map[string]any{"ui": "u"}, "evidence": map[string]any{"details": map[string]any{"a": 1.0}}},
		[]byte(`{"name":"dbt","status":"INFO"}`),
		"not json",
		nil,
	}

	for _, in := range inputs {
		once := status.Normalize(in, "fallback")
		twice := status.Normalize(once, "other")
		assert.Equal(t, once, twice)

		// Round-tripping through JSON must also be stable.
		data, err := json.Marshal(once)
		require.NoError(t, err)
		fromJSON := status.Normalize(data, "other")
		assert.Equal(t, once.Name, fromJSON.Name)
		assert.Equal(t, once.Status, fromJSON.Status)
		assert.True(t, once.LastChecked.Equal(fromJSON.LastChecked))
		assert.Equal(t, once.Links, fromJSON.Links)
	}
}
