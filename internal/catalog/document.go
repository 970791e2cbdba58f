package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openkpi/portal/internal/cache"
	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/objectstore"
)

// ErrNoObjectStore is returned when the object store is not configured.
var ErrNoObjectStore = errors.New("catalog: object store not configured")

const (
	catalogFile  = "catalog.json"
	manifestFile = "manifest.json"
	sourceOwner  = "source"
	nodeOwner    = "node"
)

// Project is a dbt project published to the docs bucket.
type Project struct {
	ID          string `json:"id"`
	CatalogKey  string `json:"catalog_key"`
	ManifestKey string `json:"manifest_key"`
}

// ProjectList is the result of project discovery.
type ProjectList struct {
	Bucket   string    `json:"bucket"`
	Endpoint string    `json:"endpoint"`
	Projects []Project `json:"projects"`
}

// DocumentEvidence describes where a document page came from.
type DocumentEvidence struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	Project     string `json:"project"`
	Total       int    `json:"total"`
	Returned    int    `json:"returned"`
	CacheTTLSec int    `json:"cache_ttl_sec"`
	Cached      bool   `json:"cached"`
}

// AssetsResult is one page of a dbt catalog document.
type AssetsResult struct {
	Assets   Page             `json:"assets"`
	Evidence DocumentEvidence `json:"evidence"`
}

type dbtCatalog struct {
	Metadata struct {
		GeneratedAt string `json:"generated_at"`
	} `json:"metadata"`
	Nodes   map[string]dbtCatalogNode `json:"nodes"`
	Sources map[string]dbtCatalogNode `json:"sources"`
}

type dbtCatalogNode struct {
	Metadata struct {
		Type   string `json:"type"`
		Schema string `json:"schema"`
		Name   string `json:"name"`
	} `json:"metadata"`
	Stats map[string]struct {
		Value any `json:"value"`
	} `json:"stats"`
}

// DocumentCatalog serves the dbt catalog.json documents stored in the docs
// bucket. Documents are read through a TTL cache keyed by bucket:key.
type DocumentCatalog struct {
	store          objectstore.Store
	cache          cache.Store
	ttl            int
	bucket         string
	defaultProject string
}

// NewDocumentCatalog creates a document catalog. store may be nil, in which
// case every call fails with ErrNoObjectStore.
func NewDocumentCatalog(store objectstore.Store, c *cache.TTLCache, cfg config.DBT) *DocumentCatalog {
	return &DocumentCatalog{
		store:          store,
		cache:          c,
		ttl:            int(c.TTL().Seconds()),
		bucket:         cfg.DocsBucket,
		defaultProject: cfg.DefaultProject,
	}
}

// Bucket returns the docs bucket name.
func (d *DocumentCatalog) Bucket() string {
	return d.bucket
}

// Project resolves an empty project name to the default one.
func (d *DocumentCatalog) Project(project string) string {
	project = strings.Trim(strings.TrimSpace(project), "/")
	if project == "" {
		return d.defaultProject
	}
	return project
}

// Entries loads and flattens a project's catalog document. The boolean
// reports whether the document came from the cache.
func (d *DocumentCatalog) Entries(ctx context.Context, project string) ([]Entry, bool, error) {
	if d.store == nil {
		return nil, false, ErrNoObjectStore
	}
	key := d.Project(project) + "/" + catalogFile

	data, cached, err := d.cache.GetOrFetch(ctx, d.bucket+":"+key, func(ctx context.Context) ([]byte, error) {
		return d.store.GetObject(ctx, d.bucket, key)
	})
	if err != nil {
		return nil, false, fmt.Errorf("load %s/%s: %w", d.bucket, key, err)
	}

	var doc dbtCatalog
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cached, fmt.Errorf("decode %s/%s: %w", d.bucket, key, err)
	}
	return flatten(doc), cached, nil
}

// Warm loads a project's document into the cache.
func (d *DocumentCatalog) Warm(ctx context.Context, project string) error {
	_, _, err := d.Entries(ctx, project)
	return err
}

// Assets filters a project's entries by q on schema, table and owner, then
// returns the requested page.
func (d *DocumentCatalog) Assets(ctx context.Context, project, q string, page, pageSize int) (AssetsResult, error) {
	project = d.Project(project)
	page, pageSize = ClampPage(page, pageSize)

	res := AssetsResult{
		Assets: Page{Tables: []Entry{}, Pagination: Pagination{Page: page, PageSize: pageSize}},
		Evidence: DocumentEvidence{
			Bucket:      d.bucket,
			Key:         project + "/" + catalogFile,
			Project:     project,
			CacheTTLSec: d.ttl,
		},
	}

	entries, cached, err := d.Entries(ctx, project)
	if err != nil {
		return res, err
	}
	entries = filter(entries, q)

	start, ok := pageOffset(page, pageSize, len(entries))
	if !ok {
		start = len(entries)
	}
	end := min(start+pageSize, len(entries))

	res.Assets.Tables = append(res.Assets.Tables, entries[start:end]...)
	res.Assets.Pagination.Total = len(entries)
	res.Evidence.Total = len(entries)
	res.Evidence.Returned = end - start
	res.Evidence.Cached = cached
	return res, nil
}

// Search returns table matches for q in a project's document.
func (d *DocumentCatalog) Search(ctx context.Context, project, q string) (SearchResult, error) {
	q = strings.TrimSpace(q)
	out := SearchResult{Query: q, Matches: []Match{}}
	if q == "" {
		return out, nil
	}

	entries, _, err := d.Entries(ctx, project)
	if err != nil {
		return out, err
	}
	for _, e := range filter(entries, q) {
		if len(out.Matches) == MaxTableMatches {
			break
		}
		out.Matches = append(out.Matches, Match{Type: MatchTable, Schema: e.Schema, Table: e.Table})
	}
	return out, nil
}

// Projects lists the top-level prefixes of the docs bucket that hold a
// catalog.json.
func (d *DocumentCatalog) Projects(ctx context.Context) (ProjectList, error) {
	out := ProjectList{Bucket: d.bucket, Projects: []Project{}}
	if d.store == nil {
		return out, ErrNoObjectStore
	}
	out.Endpoint = d.store.Endpoint()

	prefixes, err := d.store.ListPrefixes(ctx, d.bucket)
	if err != nil {
		return out, fmt.Errorf("list %s: %w", d.bucket, err)
	}

	for _, id := range prefixes {
		p := Project{
			ID:          id,
			CatalogKey:  id + "/" + catalogFile,
			ManifestKey: id + "/" + manifestFile,
		}
		ok, err := d.store.Exists(ctx, d.bucket, p.CatalogKey)
		if err != nil || !ok {
			continue
		}
		out.Projects = append(out.Projects, p)
	}
	sort.Slice(out.Projects, func(i, j int) bool { return out.Projects[i].ID < out.Projects[j].ID })
	return out, nil
}

// flatten turns nodes and sources into entries, drops duplicates by
// (schema, table, owner) and sorts by the same key.
func flatten(doc dbtCatalog) []Entry {
	generatedAt := doc.Metadata.GeneratedAt
	seen := make(map[[3]string]struct{})
	out := []Entry{}

	push := func(n dbtCatalogNode, owner string) {
		schema, name := n.Metadata.Schema, n.Metadata.Name
		if schema == "" || name == "" {
			return
		}
		k := [3]string{schema, name, owner}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}

		e := Entry{Schema: schema, Table: name, Owner: &owner, RowsEstimate: numRows(n)}
		if generatedAt != "" {
			e.LastUpdate = &generatedAt
		}
		out = append(out, e)
	}

	for _, id := range sortedKeys(doc.Nodes) {
		n := doc.Nodes[id]
		owner := n.Metadata.Type
		if owner == "" {
			owner = nodeOwner
		}
		push(n, owner)
	}
	for _, id := range sortedKeys(doc.Sources) {
		push(doc.Sources[id], sourceOwner)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return *a.Owner < *b.Owner
	})
	return out
}

func numRows(n dbtCatalogNode) *int64 {
	stat, ok := n.Stats["num_rows"]
	if !ok {
		return nil
	}
	if v, ok := stat.Value.(float64); ok {
		rows := int64(v)
		return &rows
	}
	return nil
}

func filter(entries []Entry, q string) []Entry {
	term := strings.ToLower(strings.TrimSpace(q))
	if term == "" {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		owner := ""
		if e.Owner != nil {
			owner = *e.Owner
		}
		if strings.Contains(strings.ToLower(e.Schema), term) ||
			strings.Contains(strings.ToLower(e.Table), term) ||
			strings.Contains(strings.ToLower(owner), term) {
			out = append(out, e)
		}
	}
	return out
}

func sortedKeys(m map[string]dbtCatalogNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
