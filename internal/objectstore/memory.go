package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. This is intended for testing and local
// development without a MinIO server.
type MemoryStore struct {
	mu       sync.RWMutex
	buckets  map[string]map[string][]byte
	created  time.Time
	endpoint string
	err      error
	gets     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets:  make(map[string]map[string][]byte),
		created:  time.Now().UTC(),
		endpoint: "memory://",
	}
}

// Put stores an object, creating the bucket if needed.
func (m *MemoryStore) Put(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.buckets[bucket] = b
	}
	b[key] = append([]byte(nil), data...)
}

// CreateBucket creates an empty bucket.
func (m *MemoryStore) CreateBucket(bucket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string][]byte)
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Gets returns how many GetObject calls reached the store.
func (m *MemoryStore) Gets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gets
}

// Endpoint implements Store.
func (m *MemoryStore) Endpoint() string {
	return m.endpoint
}

// ListBuckets implements Store.
func (m *MemoryStore) ListBuckets(_ context.Context) ([]Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	out := make([]Bucket, 0, len(m.buckets))
	for name := range m.buckets {
		out = append(out, Bucket{Name: name, CreationDate: m.created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetObject implements Store.
func (m *MemoryStore) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, m.err
	}

	data, ok := m.buckets[bucket][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Exists implements Store.
func (m *MemoryStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.buckets[bucket][key]
	return ok, nil
}

// ListPrefixes implements Store.
func (m *MemoryStore) ListPrefixes(_ context.Context, bucket string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}

	b, ok := m.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%s: %w", bucket, ErrNotFound)
	}

	seen := make(map[string]struct{})
	for key := range b {
		if i := strings.Index(key, "/"); i > 0 {
			seen[key[:i]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
