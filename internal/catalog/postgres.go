package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openkpi/portal/internal/database"
)

const (
	countTablesSQL = `
		select count(*)::int
		from information_schema.tables
		where table_schema not like 'pg\_%'
		  and table_schema <> 'information_schema'
		  and table_type = 'BASE TABLE'`

	listTablesSQL = `
		with t as (
		  select table_schema, table_name
		  from information_schema.tables
		  where table_schema not like 'pg\_%'
		    and table_schema <> 'information_schema'
		    and table_type = 'BASE TABLE'
		  order by table_schema, table_name
		  limit 2000
		)
		select t.table_schema, t.table_name, coalesce(pc.reltuples::bigint, 0)::bigint
		from t
		left join pg_namespace pn on pn.nspname = t.table_schema
		left join pg_class pc on pc.relname = t.table_name and pc.relnamespace = pn.oid
		order by t.table_schema, t.table_name
		offset $1 limit $2`

	searchTablesSQL = `
		select table_schema, table_name
		from information_schema.tables
		where table_type = 'BASE TABLE'
		  and table_schema not like 'pg\_%'
		  and table_schema <> 'information_schema'
		  and (lower(table_schema) like $1 or lower(table_name) like $1)
		order by table_schema, table_name
		limit $2`

	searchColumnsSQL = `
		select table_schema, table_name, column_name
		from information_schema.columns
		where table_schema not like 'pg\_%'
		  and table_schema <> 'information_schema'
		  and (lower(column_name) like $1 or lower(table_name) like $1 or lower(table_schema) like $1)
		order by table_schema, table_name, column_name
		limit $2`
)

// ErrNoDatabase is returned by a PostgresStore without a connection.
var ErrNoDatabase = errors.New("postgres not configured")

// PostgresStore reads the catalog from information_schema. A store over a
// nil Querier answers every call with ErrNoDatabase.
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore creates a store over db.
func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// CountTables implements Store.
func (s *PostgresStore) CountTables(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrNoDatabase
	}
	var total int
	if err := s.db.QueryRow(ctx, countTablesSQL).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// ListTables implements Store.
func (s *PostgresStore) ListTables(ctx context.Context, offset, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, listTablesSQL, offset, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var (
			e        Entry
			estimate int64
		)
		if err := row.Scan(&e.Schema, &e.Table, &estimate); err != nil {
			return Entry{}, fmt.Errorf("scan table: %w", err)
		}
		e.RowsEstimate = &estimate
		return e, nil
	})
}

// SearchTables implements Store.
func (s *PostgresStore) SearchTables(ctx context.Context, pattern string, limit int) ([]Match, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, searchTablesSQL, pattern, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		m := Match{Type: MatchTable}
		err := row.Scan(&m.Schema, &m.Table)
		return m, err
	})
}

// SearchColumns implements Store.
func (s *PostgresStore) SearchColumns(ctx context.Context, pattern string, limit int) ([]Match, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, searchColumnsSQL, pattern, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		m := Match{Type: MatchColumn}
		err := row.Scan(&m.Schema, &m.Table, &m.Column)
		return m, err
	})
}

var _ Store = (*PostgresStore)(nil)
