// Package objectstore gives probes and catalogs read access to the platform's
// S3-compatible object store.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a bucket or object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrNotConfigured is returned by NewMinIO when credentials are missing.
var ErrNotConfigured = errors.New("object store not configured")

// Bucket describes a bucket returned by ListBuckets.
type Bucket struct {
	Name         string    `json:"name"`
	CreationDate time.Time `json:"creation_date"`
}

// Store is the read-only object store contract.
type Store interface {
	// ListBuckets returns every bucket visible to the credentials.
	ListBuckets(ctx context.Context) ([]Bucket, error)

	// GetObject returns the full object body.
	// Returns ErrNotFound if the bucket or key does not exist.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	// Exists reports whether key is present in bucket.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// ListPrefixes returns the top-level "directories" of bucket, without
	// the trailing slash.
	ListPrefixes(ctx context.Context, bucket string) ([]string, error)

	// Endpoint returns the URL of the store, for evidence.
	Endpoint() string
}
