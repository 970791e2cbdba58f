package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openkpi/portal/internal/database"
	"github.com/openkpi/portal/internal/status"
)

// ErrPostgresNotConfigured is reported when credentials are missing.
var ErrPostgresNotConfigured = errors.New("postgres not configured: POSTGRES_SERVICE, POSTGRES_USER and POSTGRES_PASSWORD are required")

const (
	identitySQL = `select current_database(), current_user`

	schemasCountSQL = `
		select count(*)::int
		from information_schema.schemata
		where schema_name not like 'pg\_%' and schema_name <> 'information_schema'`

	tablesCountSQL = `
		select count(*)::int
		from information_schema.tables
		where table_schema not like 'pg\_%'
		  and table_schema <> 'information_schema'
		  and table_type = 'BASE TABLE'`
)

// PostgresSummary is the data availability shown on the portal.
type PostgresSummary struct {
	SchemasCount int `json:"schemas_count"`
	TablesCount  int `json:"tables_count"`
}

// PostgresResult is the outcome of the Postgres probe.
type PostgresResult struct {
	Service status.ServiceStatus
	Summary PostgresSummary
}

// Postgres probes the platform database.
type Postgres struct {
	cfg     database.Config
	db      database.Querier
	timeout time.Duration
}

// NewPostgres creates the probe. db may be nil when the pool could not be
// configured; the probe then reports DOWN.
func NewPostgres(cfg database.Config, db database.Querier, timeout time.Duration) *Postgres {
	return &Postgres{cfg: cfg, db: db, timeout: timeout}
}

// Probe reads identity and counts schemas and base tables.
func (p *Postgres) Probe(ctx context.Context) PostgresResult {
	var (
		dbName, user string
		summary      PostgresSummary
	)

	err := p.query(ctx, func(ctx context.Context) error {
		if err := p.db.QueryRow(ctx, identitySQL).Scan(&dbName, &user); err != nil {
			return fmt.Errorf("identity: %w", err)
		}
		if err := p.db.QueryRow(ctx, schemasCountSQL).Scan(&summary.SchemasCount); err != nil {
			return fmt.Errorf("count schemas: %w", err)
		}
		if err := p.db.QueryRow(ctx, tablesCountSQL).Scan(&summary.TablesCount); err != nil {
			return fmt.Errorf("count tables: %w", err)
		}
		return nil
	})
	if err != nil {
		reason := "Postgres unreachable"
		if errors.Is(err, ErrPostgresNotConfigured) {
			reason = "Postgres not configured"
		}
		return PostgresResult{
			Service: status.New(status.ServicePostgres, status.Down, reason,
				status.WithEvidenceParts(EvidenceDatabase, map[string]any{
					"error": err.Error(),
					"host":  p.cfg.Host,
					"port":  p.cfg.Port,
				}),
			),
		}
	}

	return PostgresResult{
		Service: status.New(status.ServicePostgres, status.Operational, "",
			status.WithEvidenceParts(EvidenceDatabase, map[string]any{
				"connectivity":  "ok",
				"identity":      map[string]string{"db": dbName, "usr": user},
				"schemas_count": summary.SchemasCount,
				"tables_count":  summary.TablesCount,
				"host":          p.cfg.Host,
				"port":          p.cfg.Port,
			}),
		),
		Summary: summary,
	}
}

func (p *Postgres) query(ctx context.Context, fn func(context.Context) error) error {
	if p.db == nil || !p.cfg.Configured() {
		return ErrPostgresNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return fn(ctx)
}
