// Package handler provides the HTTP handlers of the portal API.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/openkpi/portal/internal/catalog"
	"github.com/openkpi/portal/internal/platform"
	"github.com/openkpi/portal/internal/provider/resilience"
	"github.com/openkpi/portal/internal/status"
)

// Sweeper runs probes for a request.
type Sweeper interface {
	Sweep(ctx context.Context) platform.Snapshot
	SweepOnly(ctx context.Context, names ...string) platform.Snapshot
	Policy() status.Policy
}

// Catalog is the live warehouse catalog.
type Catalog interface {
	ListTables(ctx context.Context, page, pageSize int) (catalog.Page, error)
	Search(ctx context.Context, q string) (catalog.SearchResult, error)
}

// Documents is the dbt catalog document backing.
type Documents interface {
	Projects(ctx context.Context) (catalog.ProjectList, error)
	Assets(ctx context.Context, project, q string, page, pageSize int) (catalog.AssetsResult, error)
}

// Providers reports circuit breaker state per probe target.
type Providers interface {
	GetAllHealth() []*resilience.TargetHealth
}

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) stamp() string {
	if c == nil {
		return status.FormatTime(time.Now())
	}
	return status.FormatTime(c())
}

// intQuery reads an integer query parameter. Missing or malformed values
// read as zero and are clamped by the catalog.
func intQuery(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}
