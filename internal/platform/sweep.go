// Package platform runs the probes for one request and folds their results
// into a snapshot of the whole platform.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/openkpi/portal/internal/probe"
	"github.com/openkpi/portal/internal/status"
	"github.com/openkpi/portal/internal/telemetry"
)

// Probes is the set of adapters a sweep runs.
type Probes struct {
	Kubernetes *probe.Kubernetes
	Ingress    *probe.Ingress
	Postgres   *probe.Postgres
	MinIO      *probe.MinIO
	Airbyte    *probe.Airbyte
	DBT        *probe.DBT
	N8N        *probe.N8N
	Zammad     *probe.Zammad
	Metabase   *probe.Metabase
}

// DataAvailability counts what the warehouse holds.
type DataAvailability struct {
	Schemas int `json:"schemas"`
	Tables  int `json:"tables"`
}

// Proof is the evidence that data is actually flowing.
type Proof struct {
	AirbyteLastSync  *probe.AirbyteJob `json:"airbyte_last_sync"`
	DBTLastRun       *probe.DBTRun     `json:"dbt_last_run"`
	DataAvailability DataAvailability  `json:"data_availability"`
}

// Snapshot is the outcome of one sweep. Results of probes that were not
// part of the sweep are zero.
type Snapshot struct {
	GeneratedAt time.Time
	Status      status.Status
	Operational status.Fraction
	Services    []status.ServiceStatus
	Links       probe.LinkTable

	Kubernetes probe.KubernetesResult
	Ingress    probe.IngressResult
	Postgres   probe.PostgresResult
	MinIO      probe.MinIOResult
	Airbyte    probe.AirbyteResult
	DBT        probe.DBTResult
	N8N        probe.N8NResult
	Zammad     probe.ZammadResult
	Metabase   probe.MetabaseResult
}

// ServiceMap indexes the snapshot's services by name.
func (s Snapshot) ServiceMap() map[string]status.ServiceStatus {
	out := make(map[string]status.ServiceStatus, len(s.Services))
	for _, svc := range s.Services {
		out[svc.Name] = svc
	}
	return out
}

// Proof collects the last Airbyte sync, the last dbt run and the warehouse
// counts.
func (s Snapshot) Proof() Proof {
	return Proof{
		AirbyteLastSync: s.Airbyte.LastSync,
		DBTLastRun:      s.DBT.LastRun,
		DataAvailability: DataAvailability{
			Schemas: s.Postgres.Summary.SchemasCount,
			Tables:  s.Postgres.Summary.TablesCount,
		},
	}
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger used for probe failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithMetrics records every probe run.
func WithMetrics(m *telemetry.ProbeMetrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithPolicy replaces the aggregation policy.
func WithPolicy(p status.Policy) Option {
	return func(s *Sweeper) {
		s.policy = p
	}
}

// Sweeper runs probes. Phase one probes the cluster, the ingress, Postgres
// and MinIO concurrently; phase two probes the applications concurrently
// once the ingress link table and the MinIO result are known.
type Sweeper struct {
	probes  Probes
	policy  status.Policy
	logger  zerolog.Logger
	metrics *telemetry.ProbeMetrics
	now     func() time.Time
}

// NewSweeper creates a sweeper over probes.
func NewSweeper(probes Probes, opts ...Option) *Sweeper {
	s := &Sweeper{
		probes: probes,
		policy: status.DefaultPolicy(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the aggregation policy in use.
func (s *Sweeper) Policy() status.Policy {
	return s.policy
}

// Sweep runs every probe.
func (s *Sweeper) Sweep(ctx context.Context) Snapshot {
	snap := s.run(ctx, status.RequiredOrder())
	s.metrics.RecordSweep(ctx, string(snap.Status), snap.Operational.X)
	return snap
}

// SweepOnly runs the named probes and the probes they depend on. It backs
// the per-application endpoints.
func (s *Sweeper) SweepOnly(ctx context.Context, names ...string) Snapshot {
	return s.run(ctx, names)
}

func (s *Sweeper) run(ctx context.Context, names []string) Snapshot {
	want := expand(names)
	snap := Snapshot{GeneratedAt: s.now().UTC()}

	var g errgroup.Group
	if want[status.ServiceKubernetes] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceKubernetes, func() status.ServiceStatus {
				snap.Kubernetes = s.probes.Kubernetes.Probe(ctx)
				return snap.Kubernetes.Service
			}, func(st status.ServiceStatus) {
				snap.Kubernetes = probe.KubernetesResult{
					Service: st,
					Summary: probe.KubernetesSummary{Namespaces: []string{}, Ingresses: []probe.IngressRoute{}},
				}
			})
			return nil
		})
	}
	if want[status.ServiceIngressTLS] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceIngressTLS, func() status.ServiceStatus {
				snap.Ingress = s.probes.Ingress.Probe(ctx)
				return snap.Ingress.Service
			}, func(st status.ServiceStatus) {
				snap.Ingress = probe.IngressResult{Service: st, Routes: []probe.IngressRoute{}}
			})
			return nil
		})
	}
	if want[status.ServicePostgres] {
		g.Go(func() error {
			s.guard(ctx, status.ServicePostgres, func() status.ServiceStatus {
				snap.Postgres = s.probes.Postgres.Probe(ctx)
				return snap.Postgres.Service
			}, func(st status.ServiceStatus) {
				snap.Postgres = probe.PostgresResult{Service: st}
			})
			return nil
		})
	}
	if want[status.ServiceMinIO] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceMinIO, func() status.ServiceStatus {
				snap.MinIO = s.probes.MinIO.Probe(ctx)
				return snap.MinIO.Service
			}, func(st status.ServiceStatus) {
				snap.MinIO = probe.MinIOResult{Service: st}
			})
			return nil
		})
	}
	_ = g.Wait()

	links := snap.Ingress.Links
	snap.Links = links

	if want[status.ServiceAirbyte] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceAirbyte, func() status.ServiceStatus {
				snap.Airbyte = s.probes.Airbyte.Probe(ctx, links)
				return snap.Airbyte.Service
			}, func(st status.ServiceStatus) {
				snap.Airbyte = probe.AirbyteResult{Service: st}
			})
			return nil
		})
	}
	if want[status.ServiceDBT] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceDBT, func() status.ServiceStatus {
				snap.DBT = s.probes.DBT.Probe(ctx, links, snap.MinIO)
				return snap.DBT.Service
			}, func(st status.ServiceStatus) {
				snap.DBT = probe.DBTResult{Service: st}
			})
			return nil
		})
	}
	if want[status.ServiceN8N] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceN8N, func() status.ServiceStatus {
				snap.N8N = s.probes.N8N.Probe(ctx, links)
				return snap.N8N.Service
			}, func(st status.ServiceStatus) {
				snap.N8N = probe.N8NResult{Service: st}
			})
			return nil
		})
	}
	if want[status.ServiceZammad] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceZammad, func() status.ServiceStatus {
				snap.Zammad = s.probes.Zammad.Probe(ctx, links)
				return snap.Zammad.Service
			}, func(st status.ServiceStatus) {
				snap.Zammad = probe.ZammadResult{Service: st}
			})
			return nil
		})
	}
	if want[status.ServiceMetabase] {
		g.Go(func() error {
			s.guard(ctx, status.ServiceMetabase, func() status.ServiceStatus {
				snap.Metabase = s.probes.Metabase.Probe(ctx, links)
				return snap.Metabase.Service
			}, func(st status.ServiceStatus) {
				snap.Metabase = probe.MetabaseResult{Service: st}
			})
			return nil
		})
	}
	_ = g.Wait()

	byName := map[string]status.ServiceStatus{
		status.ServiceKubernetes: snap.Kubernetes.Service,
		status.ServicePostgres:   snap.Postgres.Service,
		status.ServiceMinIO:      snap.MinIO.Service,
		status.ServiceIngressTLS: snap.Ingress.Service,
		status.ServiceAirbyte:    snap.Airbyte.Service,
		status.ServiceDBT:        snap.DBT.Service,
		status.ServiceN8N:        snap.N8N.Service,
		status.ServiceZammad:     snap.Zammad.Service,
		status.ServiceMetabase:   snap.Metabase.Service,
	}
	for _, name := range status.RequiredOrder() {
		if want[name] {
			snap.Services = append(snap.Services, status.Normalize(byName[name], name))
		}
	}

	snap.Status = s.policy.PlatformStatus(snap.Services)
	snap.Operational = s.policy.OperationalFraction(snap.Services)
	return snap
}

// guard runs one probe, converting a panic into a DOWN record for that
// probe alone, then logs and records the outcome.
func (s *Sweeper) guard(ctx context.Context, name string, run func() status.ServiceStatus, fail func(status.ServiceStatus)) {
	start := time.Now()
	var st status.ServiceStatus

	func() {
		defer func() {
			if r := recover(); r != nil {
				st = probe.PanicStatus(name, r)
				fail(st)
				s.logger.Error().
					Str("probe", name).
					Str("panic", fmt.Sprint(r)).
					Msg("probe panicked")
			}
		}()
		st = run()
	}()

	s.metrics.RecordProbe(ctx, name, string(st.Status), time.Since(start))

	if st.Status != status.Operational {
		s.logger.Warn().
			Str("probe", name).
			Str("status", string(st.Status)).
			Str("reason", st.Reason).
			Dur("duration", time.Since(start)).
			Msg("probe not operational")
	}
}

// expand adds the probes the named ones depend on: applications need the
// ingress link table and dbt needs MinIO.
func expand(names []string) map[string]bool {
	want := make(map[string]bool, len(names)+2)
	for _, n := range names {
		want[n] = true
		switch n {
		case status.ServiceAirbyte, status.ServiceN8N, status.ServiceZammad, status.ServiceMetabase:
			want[status.ServiceIngressTLS] = true
		case status.ServiceDBT:
			want[status.ServiceIngressTLS] = true
			want[status.ServiceMinIO] = true
		}
	}
	return want
}
