// Package main provides the entrypoint for the portal sweep worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openkpi/portal/internal/cache"
	"github.com/openkpi/portal/internal/catalog"
	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/platform"
	"github.com/openkpi/portal/internal/telemetry"
	"github.com/openkpi/portal/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "portal-worker"

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
		Dur("sweep_interval", cfg.Worker.SweepInterval).
		Msg("starting portal worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
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

	jobCfg := worker.SweepJobConfig{
		Config: worker.JobConfig{
			Interval: cfg.Worker.SweepInterval,
			Project:  cfg.DBT.DefaultProject,
		},
		Logger:  log,
		Sweeper: sweeper,
	}
	if backends.Store != nil {
		docCache := cache.NewTTLCache(cache.DefaultTTL)
		jobCfg.Warmer = catalog.NewDocumentCatalog(backends.Store, docCache, cfg.DBT)
		jobCfg.Cache = docCache
	}
	job := worker.NewSweepJob(jobCfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           worker.NewHealthRouter(job, serviceName, cfg.Version, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		job.Loop(gctx)
		return nil
	})

	if cfg.Worker.PubSubProjectID != "" && cfg.Worker.PubSubSubscription != "" {
		handler, err := worker.NewPubSubHandler(gctx, worker.PubSubConfig{
			ProjectID:        cfg.Worker.PubSubProjectID,
			SubscriptionName: cfg.Worker.PubSubSubscription,
			Job:              job,
			Logger:           log,
		})
		if err != nil {
			log.Error().Err(err).Msg("pubsub unavailable, running scheduled sweeps only")
		} else {
			defer func() {
				if err := handler.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close pubsub client")
				}
			}()
			g.Go(func() error {
				return handler.Start(gctx)
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down worker")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
		return
	}
	log.Info().Msg("worker stopped")
}
