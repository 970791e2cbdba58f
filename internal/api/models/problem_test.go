package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkpi/portal/internal/api/models"
	"github.com/openkpi/portal/internal/catalog"
	"github.com/openkpi/portal/internal/status"
)

func TestProblem_NewProblem(t *testing.T) {
	p := models.NewProblem(
		models.ProblemTypeNotFound,
		"Not found",
		http.StatusNotFound,
		"req_test123",
	)

	assert.Equal(t, models.ProblemTypeNotFound, p.Type)
	assert.Equal(t, "Not found", p.Title)
	assert.Equal(t, http.StatusNotFound, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Empty(t, p.Detail)
	assert.Empty(t, p.Instance)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewTooManyRequests("req_test123", "Rate limit exceeded").WithInstance("/catalog/search")

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeTooManyRequests, result.Type)
	assert.Equal(t, "Too many requests", result.Title)
	assert.Equal(t, "Rate limit exceeded", result.Detail)
	assert.Equal(t, "/catalog/search", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		title   string
		status  int
	}{
		{"not found", models.NewNotFound("req", "no route"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"method not allowed", models.NewMethodNotAllowed("req", "POST"), models.ProblemTypeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed},
		{"too many requests", models.NewTooManyRequests("req", "slow down"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"tls required", models.NewTLSRequired("req"), models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden},
		{"internal", models.NewInternalError("req", "boom"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "req", tt.problem.TraceID)
		})
	}
}

func TestEmptySummary(t *testing.T) {
	s := models.EmptySummary("2024-05-01T10:00:00Z", "sweep failed")

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, string(status.Down), out["platform_status"])
	assert.Equal(t, "sweep failed", out["error"])
	assert.Equal(t, []any{}, out["services"])

	assets := out["assets"].(map[string]any)
	assert.Equal(t, []any{}, assets["tables"])
	k8s := out["k8s"].(map[string]any)
	assert.Equal(t, []any{}, k8s["ingresses"])
}

func TestSearch_BlankQueryCarriesListing(t *testing.T) {
	tests := []struct {
		name      string
		search    models.Search
		wantTable bool
	}{
		{
			name:   "matches only",
			search: models.Search{Query: "orders", Matches: []catalog.Match{}},
		},
		{
			name: "blank query with listing",
			search: models.Search{
				Matches: []catalog.Match{},
				Page: &catalog.Page{
					Tables:     []catalog.Entry{},
					Pagination: catalog.Pagination{Page: 1, PageSize: 50},
				},
			},
			wantTable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.search)
			require.NoError(t, err)

			var out map[string]any
			require.NoError(t, json.Unmarshal(data, &out))
			assert.Equal(t, []any{}, out["matches"])
			_, hasTables := out["tables"]
			_, hasPagination := out["pagination"]
			assert.Equal(t, tt.wantTable, hasTables)
			assert.Equal(t, tt.wantTable, hasPagination)
		})
	}
}
