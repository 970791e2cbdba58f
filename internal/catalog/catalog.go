// Package catalog exposes the platform's data catalog: a live listing of the
// warehouse tables read from Postgres, and the dbt catalog document published
// to the object store.
package catalog

import (
	"context"
	"fmt"
	"strings"
)

// Paging and search limits.
const (
	DefaultPageSize  = 50
	MaxPageSize      = 200
	MaxListed        = 2000
	MaxTableMatches  = 200
	MaxColumnMatches = 300
)

// Match types.
const (
	MatchTable  = "table"
	MatchColumn = "column"
)

// Entry is one table in the catalog. Optional fields are null when unknown.
type Entry struct {
	Schema       string  `json:"schema"`
	Table        string  `json:"table"`
	RowsEstimate *int64  `json:"rows_estimate"`
	LastUpdate   *string `json:"last_update"`
	Owner        *string `json:"owner"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// Page is a page of catalog entries.
type Page struct {
	Tables     []Entry    `json:"tables"`
	Pagination Pagination `json:"pagination"`
}

// Match is one search hit. Column is empty for table matches.
type Match struct {
	Type   string `json:"type"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
}

// SearchResult holds the matches for a query.
type SearchResult struct {
	Query   string  `json:"query"`
	Matches []Match `json:"matches"`
}

// Store reads the catalog from the warehouse. Patterns are lower-case LIKE
// patterns with wildcards already escaped.
type Store interface {
	CountTables(ctx context.Context) (int, error)
	ListTables(ctx context.Context, offset, limit int) ([]Entry, error)
	SearchTables(ctx context.Context, pattern string, limit int) ([]Match, error)
	SearchColumns(ctx context.Context, pattern string, limit int) ([]Match, error)
}

// ClampPage forces page to at least 1 and pageSize into [1, MaxPageSize].
// A zero pageSize means DefaultPageSize.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	pageSize = max(1, min(MaxPageSize, pageSize))
	return page, pageSize
}

// pageOffset returns the first row of page, or false when the page starts
// at or past limit. Pages beyond limit are rejected before multiplying.
func pageOffset(page, pageSize, limit int) (int, bool) {
	if page-1 >= limit/pageSize+1 {
		return 0, false
	}
	offset := (page - 1) * pageSize
	if offset >= limit {
		return 0, false
	}
	return offset, true
}

// Service serves the live catalog.
type Service struct {
	store Store
}

// NewService creates a catalog service over store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// ListTables returns one page of base tables ordered by schema and name.
// The total and the listing are both capped at MaxListed.
func (s *Service) ListTables(ctx context.Context, page, pageSize int) (Page, error) {
	page, pageSize = ClampPage(page, pageSize)
	out := Page{
		Tables:     []Entry{},
		Pagination: Pagination{Page: page, PageSize: pageSize},
	}

	total, err := s.store.CountTables(ctx)
	if err != nil {
		return out, fmt.Errorf("count tables: %w", err)
	}
	out.Pagination.Total = min(total, MaxListed)

	offset, ok := pageOffset(page, pageSize, MaxListed)
	if !ok {
		return out, nil
	}
	limit := min(pageSize, MaxListed-offset)

	tables, err := s.store.ListTables(ctx, offset, limit)
	if err != nil {
		return out, fmt.Errorf("list tables: %w", err)
	}
	if tables != nil {
		out.Tables = tables
	}
	return out, nil
}

// Search finds tables and columns whose names contain q, ignoring case.
// A blank query returns no matches without touching the store.
func (s *Service) Search(ctx context.Context, q string) (SearchResult, error) {
	q = strings.TrimSpace(q)
	out := SearchResult{Query: q, Matches: []Match{}}
	if q == "" {
		return out, nil
	}

	pattern := LikePattern(q)

	tables, err := s.store.SearchTables(ctx, pattern, MaxTableMatches)
	if err != nil {
		return out, fmt.Errorf("search tables: %w", err)
	}
	columns, err := s.store.SearchColumns(ctx, pattern, MaxColumnMatches)
	if err != nil {
		return out, fmt.Errorf("search columns: %w", err)
	}

	out.Matches = make([]Match, 0, len(tables)+len(columns))
	out.Matches = append(out.Matches, tables...)
	out.Matches = append(out.Matches, columns...)
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern builds a case-insensitive substring pattern for q with LIKE
// wildcards escaped.
func LikePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}
