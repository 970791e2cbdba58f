package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openkpi/portal/internal/config"
)

// MinIOStore implements Store on top of minio-go.
type MinIOStore struct {
	client   *minio.Client
	endpoint string
}

// NewMinIO creates a client for the configured MinIO service. It does not
// contact the server.
func NewMinIO(cfg config.MinIO) (*MinIOStore, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	client, err := minio.New(cfg.Endpoint(), &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.User, cfg.Password, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{client: client, endpoint: cfg.EndpointURL()}, nil
}

// Endpoint returns the S3 endpoint URL.
func (s *MinIOStore) Endpoint() string {
	return s.endpoint
}

// ListBuckets lists all buckets ordered by name.
func (s *MinIOStore) ListBuckets(ctx context.Context) ([]Bucket, error) {
	infos, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	buckets := make([]Bucket, 0, len(infos))
	for _, b := range infos {
		buckets = append(buckets, Bucket{Name: b.Name, CreationDate: b.CreationDate.UTC()})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

// GetObject reads the whole object into memory.
func (s *MinIOStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, bucket, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, bucket, key)
	}
	return data, nil
}

// Exists stats the object.
func (s *MinIOStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if err = mapError(err, bucket, key); errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// ListPrefixes lists the common prefixes at the root of bucket.
func (s *MinIOStore) ListPrefixes(ctx context.Context, bucket string) ([]string, error) {
	var prefixes []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: false}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, bucket, "")
		}
		if strings.HasSuffix(obj.Key, "/") {
			prefixes = append(prefixes, strings.TrimSuffix(obj.Key, "/"))
		}
	}
	sort.Strings(prefixes)
	return prefixes, nil
}

func mapError(err error, bucket, key string) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	default:
		return fmt.Errorf("%s/%s: %w", bucket, key, err)
	}
}

var _ Store = (*MinIOStore)(nil)
