package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openkpi/portal/internal/platform"
	"github.com/openkpi/portal/internal/status"
)

// Sweeper runs a full platform sweep.
type Sweeper interface {
	Sweep(ctx context.Context) platform.Snapshot
}

// Warmer pre-loads a dbt catalog document.
type Warmer interface {
	Warm(ctx context.Context, project string) error
}

// Purger evicts expired cache entries.
type Purger interface {
	Purge() int
	Len() int
}

// SweepJob runs sweeps and catalog warm-ups and remembers the last verdict.
type SweepJob struct {
	config  JobConfig
	logger  zerolog.Logger
	sweeper Sweeper
	warmer  Warmer
	cache   Purger

	metrics *JobMetrics
}

// JobMetrics tracks job statistics.
type JobMetrics struct {
	mu sync.RWMutex

	TotalSweeps  int64
	Transitions  int64
	Warmups      int64
	FailedWarmup int64
	Purged       int64

	LastSweepAt       time.Time
	LastSweepDuration time.Duration
	LastStatus        status.Status
	LastOperational   status.Fraction
}

// SweepJobConfig holds configuration for creating a SweepJob.
type SweepJobConfig struct {
	Config  JobConfig
	Logger  zerolog.Logger
	Sweeper Sweeper
	// Warmer is optional; catalog warm-ups are skipped without it.
	Warmer Warmer
	// Cache is the document cache purged after each scheduled sweep.
	Cache Purger
}

// NewSweepJob creates a new sweep job.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	return &SweepJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		sweeper: cfg.Sweeper,
		warmer:  cfg.Warmer,
		cache:   cfg.Cache,
		metrics: &JobMetrics{},
	}
}

// SweepResult is the outcome of one scheduled or requested sweep.
type SweepResult struct {
	StartTime   time.Time
	Duration    time.Duration
	Status      status.Status
	Previous    status.Status
	Operational status.Fraction
	// Changed is true when the verdict differs from the previous sweep's.
	// The first sweep is never a change.
	Changed bool
	// Down lists the services reported DOWN.
	Down []string
}

// Run executes one sweep and logs the verdict.
func (j *SweepJob) Run(ctx context.Context) *SweepResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	snap := j.sweeper.Sweep(ctx)

	result := &SweepResult{
		StartTime:   start,
		Duration:    time.Since(start),
		Status:      snap.Status,
		Operational: snap.Operational,
	}
	for _, svc := range snap.Services {
		if svc.Status == status.Down {
			result.Down = append(result.Down, svc.Name)
		}
	}

	j.record(result)

	event := j.logger.Info()
	if result.Status == status.Down {
		event = j.logger.Warn()
	}
	event.
		Str("platform_status", string(result.Status)).
		Int("operational", result.Operational.X).
		Int("required", result.Operational.Y).
		Strs("down", result.Down).
		Dur("duration", result.Duration).
		Msg("sweep completed")

	if result.Changed {
		j.logger.Warn().
			Str("from", string(result.Previous)).
			Str("to", string(result.Status)).
			Msg("platform status changed")
	}

	return result
}

// WarmCatalog loads a project's catalog document into the cache. A blank
// project falls back to the configured one.
func (j *SweepJob) WarmCatalog(ctx context.Context, project string) error {
	if j.warmer == nil {
		j.logger.Debug().Msg("catalog warm-up skipped: no document catalog")
		return nil
	}
	if project == "" {
		project = j.config.Project
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	err := j.warmer.Warm(ctx, project)

	j.metrics.mu.Lock()
	j.metrics.Warmups++
	if err != nil {
		j.metrics.FailedWarmup++
	}
	j.metrics.mu.Unlock()

	if err != nil {
		j.logger.Error().Err(err).Str("project", project).Msg("catalog warm-up failed")
		return err
	}
	j.logger.Info().Str("project", project).Msg("catalog warmed")
	return nil
}

// Loop sweeps immediately and then every interval until ctx is done.
func (j *SweepJob) Loop(ctx context.Context) {
	j.logger.Info().
		Dur("interval", j.config.Interval).
		Msg("starting sweep loop")

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("sweep loop stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
			j.PurgeCache()
		}
	}
}

// PurgeCache drops expired document cache entries. It returns the number
// removed.
func (j *SweepJob) PurgeCache() int {
	if j.cache == nil {
		return 0
	}
	removed := j.cache.Purge()

	j.metrics.mu.Lock()
	j.metrics.Purged += int64(removed)
	j.metrics.mu.Unlock()

	if removed > 0 {
		j.logger.Debug().
			Int("removed", removed).
			Int("remaining", j.cache.Len()).
			Msg("document cache purged")
	}
	return removed
}

func (j *SweepJob) record(result *SweepResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	result.Previous = j.metrics.LastStatus
	result.Changed = j.metrics.LastStatus != "" && j.metrics.LastStatus != result.Status

	j.metrics.TotalSweeps++
	if result.Changed {
		j.metrics.Transitions++
	}
	j.metrics.LastSweepAt = result.StartTime.Add(result.Duration)
	j.metrics.LastSweepDuration = result.Duration
	j.metrics.LastStatus = result.Status
	j.metrics.LastOperational = result.Operational
}

// GetMetrics returns a copy of the current metrics.
func (j *SweepJob) GetMetrics() JobMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return JobMetrics{
		TotalSweeps:       j.metrics.TotalSweeps,
		Transitions:       j.metrics.Transitions,
		Warmups:           j.metrics.Warmups,
		FailedWarmup:      j.metrics.FailedWarmup,
		Purged:            j.metrics.Purged,
		LastSweepAt:       j.metrics.LastSweepAt,
		LastSweepDuration: j.metrics.LastSweepDuration,
		LastStatus:        j.metrics.LastStatus,
		LastOperational:   j.metrics.LastOperational,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *SweepJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	out := map[string]interface{}{
		"total_sweeps":        m.TotalSweeps,
		"transitions":         m.Transitions,
		"catalog_warmups":     m.Warmups,
		"failed_warmups":      m.FailedWarmup,
		"cache_purged":        m.Purged,
		"last_sweep_duration": m.LastSweepDuration.String(),
		"last_status":         string(m.LastStatus),
		"last_operational":    m.LastOperational,
	}
	if !m.LastSweepAt.IsZero() {
		out["last_sweep_at"] = m.LastSweepAt.UTC().Format(time.RFC3339)
	}
	return out
}
