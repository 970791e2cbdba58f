package platform

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/database"
	"github.com/openkpi/portal/internal/kube"
	"github.com/openkpi/portal/internal/objectstore"
	"github.com/openkpi/portal/internal/probe"
	"github.com/openkpi/portal/internal/provider/resilience"
	"github.com/openkpi/portal/internal/status"
)

// Backends are the process-wide clients the probes share. DB and Store are
// nil interfaces when the backend is not configured.
type Backends struct {
	Kube     kube.Connection
	DB       database.Querier
	Store    objectstore.Store
	Registry *resilience.Registry

	pool *pgxpool.Pool
}

// Close releases the database pool.
func (b Backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// OpenBackends connects to the cluster, the database and the object store.
// A backend that is unconfigured or fails to initialise is left out; the
// probes report it instead of failing startup.
func OpenBackends(ctx context.Context, cfg config.Config, log zerolog.Logger) Backends {
	b := Backends{
		Kube:     kube.Connect(cfg.Kubeconfig),
		Registry: resilience.NewRegistry(),
	}
	if err := b.Kube.Error(); err != nil {
		log.Warn().Err(err).Str("mode", b.Kube.Mode).Msg("kubernetes client unavailable")
	} else {
		log.Info().Str("mode", b.Kube.Mode).Msg("kubernetes client ready")
	}

	if cfg.Postgres.Configured() {
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			log.Warn().Err(err).Str("host", cfg.Postgres.Host).Msg("postgres pool unavailable")
		} else {
			b.pool = pool
			b.DB = pool
			log.Info().
				Str("host", cfg.Postgres.Host).
				Int("port", cfg.Postgres.Port).
				Str("database", cfg.Postgres.Database).
				Msg("postgres pool created")
		}
	}

	if cfg.MinIO.Configured() {
		store, err := objectstore.NewMinIO(cfg.MinIO)
		if err != nil {
			log.Warn().Err(err).Msg("minio client unavailable")
		} else {
			b.Store = store
			log.Info().Str("endpoint", store.Endpoint()).Msg("minio client ready")
		}
	}

	return b
}

// NewProbes builds every probe. Each HTTP application gets its own
// resilient client registered under its service name.
func NewProbes(cfg config.Config, b Backends) Probes {
	client := func(name string) *resilience.Client {
		cc := resilience.DefaultClientConfig(name)
		cc.Timeout = max(cfg.APITimeout, cfg.ReachTimeout)
		cc.Registry = b.Registry
		return resilience.NewClient(cc)
	}

	return Probes{
		Kubernetes: probe.NewKubernetes(b.Kube),
		Ingress:    probe.NewIngress(cfg, b.Kube),
		Postgres:   probe.NewPostgres(cfg.Postgres, b.DB, cfg.APITimeout),
		MinIO:      probe.NewMinIO(cfg, b.Store),
		Airbyte:    probe.NewAirbyte(cfg, client(status.ServiceAirbyte)),
		DBT:        probe.NewDBT(cfg, b.Store),
		N8N:        probe.NewN8N(cfg, client(status.ServiceN8N)),
		Zammad:     probe.NewZammad(cfg, client(status.ServiceZammad)),
		Metabase:   probe.NewMetabase(cfg, client(status.ServiceMetabase)),
	}
}
