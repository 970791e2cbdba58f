// Package main provides the entrypoint for the portal API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/api"
	"github.com/openkpi/portal/internal/api/middleware"
	"github.com/openkpi/portal/internal/cache"
	"github.com/openkpi/portal/internal/catalog"
	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/platform"
	"github.com/openkpi/portal/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "portal-api"

	cfg := config.FromEnv()
	if Version != "dev" {
		cfg.Version = Version
	}

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", cfg.Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Str("url_scheme", cfg.URLScheme).
		Msg("starting portal API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:       serviceName,
		ServiceVersion:    cfg.Version,
		Environment:       cfg.Env,
		OTLPEndpoint:      cfg.Telemetry.OTLPEndpoint,
		Enabled:           cfg.Telemetry.Enabled,
		PrometheusEnabled: cfg.Telemetry.MetricsEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	probeMetrics, err := telemetry.NewProbeMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize probe metrics")
	}

	backends := platform.OpenBackends(ctx, cfg, log)
	defer backends.Close()

	sweeper := platform.NewSweeper(
		platform.NewProbes(cfg, backends),
		platform.WithLogger(log),
		platform.WithMetrics(probeMetrics),
	)

	documents := catalog.NewDocumentCatalog(backends.Store, cache.NewTTLCache(cache.DefaultTTL), cfg.DBT)
	live := catalog.NewService(catalog.NewPostgresStore(backends.DB))

	router := api.NewRouter(api.RouterConfig{
		Version:        cfg.Version,
		ServiceName:    serviceName,
		Logger:         log,
		RequireTLS:     cfg.RequireTLS,
		Metrics:        httpMetrics,
		MetricsHandler: tp.MetricsHandler(),
		Sweeper:        sweeper,
		Catalog:        live,
		Documents:      documents,
		Providers:      backends.Registry,
		Clock:          time.Now,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
