package status_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkpi/portal/internal/status"
)

func TestNew_PreservesValidStatuses(t *testing.T) {
	for _, st := range []status.Status{status.Operational, status.Degraded, status.Down, status.Info} {
		t.Run(string(st), func(t *testing.T) {
			s := status.New("postgres", st, "")
			assert.Equal(t, st, s.Status)
		})
	}
}

func TestNew_CoercesUnknownStatusToInfo(t *testing.T) {
	for _, raw := range []string{"", "operational", "UP", "FAIL", "💥"} {
		t.Run(raw, func(t *testing.T) {
			s := status.New("postgres", status.Status(raw), "")
			assert.Equal(t, status.Info, s.Status)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	before := time.Now().Add(-time.Second)
	s := status.New("minio", status.Operational, "")

	assert.Equal(t, "minio", s.Name)
	assert.Equal(t, status.DefaultEvidenceType, s.Evidence.Type)
	assert.NotNil(t, s.Evidence.Details)
	assert.Empty(t, s.Evidence.Details)
	assert.Equal(t, status.Links{}, s.Links)
	assert.True(t, s.LastChecked.After(before))
	assert.Equal(t, time.UTC, s.LastChecked.Location())
}

func TestNew_EvidenceFormsAreEquivalent(t *testing.T) {
	details := map[string]any{"rows": 3}
	checked := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	a := status.New("dbt", status.Operational, "",
		status.WithLastChecked(checked),
		status.WithEvidence(status.Evidence{Type: "api", Details: details}))
	b := status.New("dbt", status.Operational, "",
		status.WithLastChecked(checked),
		status.WithEvidenceParts("api", details))

	assert.Equal(t, a, b)
}

func TestNew_LinkMapDropsExtraKeys(t *testing.T) {
	s := status.New("n8n", status.Operational, "",
		status.WithLinkMap(map[string]any{"ui": "https://n8n.example", "host": "x", "api": nil}))

	assert.Equal(t, status.Links{UI: "https://n8n.example"}, s.Links)
}

func TestServiceStatus_JSONShape(t *testing.T) {
	inputs := []status.ServiceStatus{
		status.New("kubernetes", status.Operational, ""),
		status.New("", status.Status("garbage"), "reason", status.WithEvidence(status.Evidence{})),
		status.Normalize(map[string]any{"links": "nope", "evidence": 42}, "x"),
	}

	for _, in := range inputs {
		data, err := json.Marshal(in)
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(data, &out))

		assert.ElementsMatch(t,
			[]string{"service", "name", "status", "reason", "last_checked", "links", "evidence"},
			keys(out))
		assert.ElementsMatch(t, []string{"ui", "api"}, keys(out["links"].(map[string]any)))
		assert.ElementsMatch(t, []string{"type", "details"}, keys(out["evidence"].(map[string]any)))
		assert.Equal(t, out["name"], out["service"])
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
