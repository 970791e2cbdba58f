package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openkpi/portal/internal/api/middleware"
)

func serveRequestID(t *testing.T, inbound string) (ctxID, headerID string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/services", http.NoBody)
	if inbound != "" {
		req.Header.Set(middleware.RequestIDHeader, inbound)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return ctxID, w.Header().Get(middleware.RequestIDHeader)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "generated when absent", inbound: ""},
		{name: "inbound kept", inbound: "ingress-7f3a", keep: true},
		{name: "too long replaced", inbound: strings.Repeat("a", 65)},
		{name: "whitespace replaced", inbound: "bad id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctxID, headerID := serveRequestID(t, tt.inbound)

			assert.Equal(t, ctxID, headerID)
			if tt.keep {
				assert.Equal(t, tt.inbound, headerID)
				return
			}
			assert.True(t, strings.HasPrefix(headerID, "req_"), headerID)
		})
	}
}

func TestGetRequestID_MissingContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_Unique(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, id := serveRequestID(t, "")
		assert.False(t, ids[id], "duplicate request ID generated: %s", id)
		ids[id] = true
	}
}
