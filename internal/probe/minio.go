package probe

import (
	"context"
	"time"

	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/objectstore"
	"github.com/openkpi/portal/internal/status"
)

const sampleBuckets = 20

// MinIOSummary lists the buckets found.
type MinIOSummary struct {
	Buckets     []objectstore.Bucket `json:"buckets"`
	BucketCount int                  `json:"bucket_count"`
	Endpoint    string               `json:"endpoint,omitempty"`
}

// MinIOResult is the outcome of the MinIO probe.
type MinIOResult struct {
	Service status.ServiceStatus
	Summary MinIOSummary
}

// Operational reports whether the object store answered.
func (r MinIOResult) Operational() bool {
	return r.Service.Status == status.Operational
}

// MinIO probes the object store.
type MinIO struct {
	cfg     config.Config
	store   objectstore.Store
	timeout time.Duration
}

// NewMinIO creates the probe. store is nil when credentials are missing.
func NewMinIO(cfg config.Config, store objectstore.Store) *MinIO {
	return &MinIO{cfg: cfg, store: store, timeout: cfg.APITimeout}
}

// Probe lists buckets.
func (p *MinIO) Probe(ctx context.Context) MinIOResult {
	ui := p.cfg.HostURL(p.cfg.Hosts.MinIO)

	if p.store == nil {
		m := p.cfg.MinIO
		return MinIOResult{
			Service: status.New(status.ServiceMinIO, status.Degraded, "MinIO credentials not configured",
				status.WithLinks(ui, ""),
				status.WithEvidenceParts(EvidenceAPI, map[string]any{
					"configured":          false,
					"minio_service":       m.Service != "",
					"minio_root_user":     m.User != "",
					"minio_root_password": m.Password != "",
				}),
			),
			Summary: MinIOSummary{Buckets: []objectstore.Bucket{}},
		}
	}

	endpoint := p.store.Endpoint()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	buckets, err := p.store.ListBuckets(ctx)
	if err != nil {
		return MinIOResult{
			Service: status.New(status.ServiceMinIO, status.Down, "MinIO unreachable",
				status.WithLinks(ui, endpoint),
				status.WithEvidenceParts(EvidenceAPI, map[string]any{
					"endpoint": endpoint,
					"error":    err.Error(),
				}),
			),
			Summary: MinIOSummary{Buckets: []objectstore.Bucket{}, Endpoint: endpoint},
		}
	}

	sample := buckets
	if len(sample) > sampleBuckets {
		sample = sample[:sampleBuckets]
	}

	return MinIOResult{
		Service: status.New(status.ServiceMinIO, status.Operational, "",
			status.WithLinks(ui, endpoint),
			status.WithEvidenceParts(EvidenceAPI, map[string]any{
				"endpoint":     endpoint,
				"bucket_count": len(buckets),
				"sample":       sample,
			}),
		),
		Summary: MinIOSummary{Buckets: buckets, BucketCount: len(buckets), Endpoint: endpoint},
	}
}
