package probe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/database"
	"github.com/openkpi/portal/internal/objectstore"
	"github.com/openkpi/portal/internal/probe"
	"github.com/openkpi/portal/internal/status"
)

func testConfig() config.Config {
	return config.Config{
		URLScheme:          "https",
		AirbyteInternalURL: "http://127.0.0.1:1",
		ReachTimeout:       time.Second,
		APITimeout:         time.Second,
		DBT:                config.DBT{ArtifactBuckets: []string{"dbt", "dbt-docs"}},
		MinIO:              config.MinIO{Service: "minio", APIPort: 9000},
	}
}

func TestPanicStatus(t *testing.T) {
	s := probe.PanicStatus("airbyte", "boom")

	assert.Equal(t, "airbyte", s.Name)
	assert.Equal(t, status.Down, s.Status)
	assert.Equal(t, "Probe failed", s.Reason)
	assert.Equal(t, "boom", s.Evidence.Details["error"])
	assert.Equal(t, true, s.Evidence.Details["panic"])
}

// fakeRow scans a fixed set of values.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		}
	}
	return nil
}

// fakeDB answers QueryRow calls in order.
type fakeDB struct {
	rows  []fakeRow
	calls int
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	r := f.rows[f.calls]
	f.calls++
	return r
}

var _ database.Querier = (*fakeDB)(nil)

func pgConfig() database.Config {
	return database.Config{Host: "pg", Port: 5432, User: "u", Password: "p"}
}

func TestPostgres_Operational(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{
		{values: []any{"postgres", "portal"}},
		{values: []any{4}},
		{values: []any{17}},
	}}

	res := probe.NewPostgres(pgConfig(), db, time.Second).Probe(context.Background())

	assert.Equal(t, status.Operational, res.Service.Status)
	assert.Equal(t, probe.PostgresSummary{SchemasCount: 4, TablesCount: 17}, res.Summary)
	assert.Equal(t, probe.EvidenceDatabase, res.Service.Evidence.Type)
	assert.Equal(t, "ok", res.Service.Evidence.Details["connectivity"])
}

func TestPostgres_QueryFailure(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{err: errors.New("connection refused")}}}

	res := probe.NewPostgres(pgConfig(), db, time.Second).Probe(context.Background())

	assert.Equal(t, status.Down, res.Service.Status)
	assert.Equal(t, "Postgres unreachable", res.Service.Reason)
	assert.Contains(t, res.Service.Evidence.Details["error"], "connection refused")
}

func TestPostgres_NotConfigured(t *testing.T) {
	res := probe.NewPostgres(database.Config{Host: "pg"}, nil, time.Second).Probe(context.Background())

	assert.Equal(t, status.Down, res.Service.Status)
	assert.Equal(t, "Postgres not configured", res.Service.Reason)
	assert.Equal(t, probe.ErrPostgresNotConfigured.Error(), res.Service.Evidence.Details["error"])
}

func TestMinIO_NotConfigured(t *testing.T) {
	res := probe.NewMinIO(testConfig(), nil).Probe(context.Background())

	assert.Equal(t, status.Degraded, res.Service.Status)
	assert.Equal(t, "MinIO credentials not configured", res.Service.Reason)
	assert.False(t, res.Operational())
	assert.NotNil(t, res.Summary.Buckets)
}

func TestMinIO_Operational(t *testing.T) {
	store := objectstore.NewMemoryStore()
	store.CreateBucket("raw")
	store.CreateBucket("dbt")

	cfg := testConfig()
	cfg.Hosts.MinIO = "minio.example.org"

	res := probe.NewMinIO(cfg, store).Probe(context.Background())

	require.True(t, res.Operational())
	assert.Equal(t, 2, res.Summary.BucketCount)
	assert.Equal(t, "dbt", res.Summary.Buckets[0].Name)
	assert.Equal(t, "https://minio.example.org", res.Service.Links.UI)
	assert.Equal(t, "memory://", res.Service.Links.API)
}

func TestMinIO_Unreachable(t *testing.T) {
	store := objectstore.NewMemoryStore()
	store.FailWith(errors.New("dial tcp: connection refused"))

	res := probe.NewMinIO(testConfig(), store).Probe(context.Background())

	assert.Equal(t, status.Down, res.Service.Status)
	assert.Equal(t, "MinIO unreachable", res.Service.Reason)
}

func operationalMinIO(t *testing.T, store objectstore.Store) probe.MinIOResult {
	t.Helper()
	res := probe.NewMinIO(testConfig(), store).Probe(context.Background())
	require.True(t, res.Operational())
	return res
}

func TestDBT_MinIOUnavailable(t *testing.T) {
	links := probe.LinkTable{DBTDocs: "https://dbt.example.org/docs"}
	minio := probe.NewMinIO(testConfig(), nil).Probe(context.Background())

	res := probe.NewDBT(testConfig(), nil).Probe(context.Background(), links, minio)

	assert.Equal(t, status.Degraded, res.Service.Status)
	assert.Equal(t, "MinIO not configured; cannot verify dbt artifacts", res.Service.Reason)
	assert.Equal(t, probe.EvidenceHTTP, res.Service.Evidence.Type)
	assert.Equal(t, "https://dbt.example.org/docs", res.Service.Links.UI)
	assert.Nil(t, res.LastRun)
}

func TestDBT_ArtifactsFound(t *testing.T) {
	store := objectstore.NewMemoryStore()
	store.Put("dbt-docs", probe.ManifestKey, []byte(`{"nodes":{
		"model.a":{"resource_type":"model"},
		"model.b":{"resource_type":"model"},
		"test.c":{"resource_type":"test"},
		"seed.d":{"resource_type":"seed"}}}`))
	store.Put("dbt", probe.RunResultsKey, []byte(`{
		"metadata":{"generated_at":"2024-05-01T10:00:00Z"},
		"elapsed_time":12.5,
		"results":[{},{},{}]}`))

	res := probe.NewDBT(testConfig(), store).Probe(context.Background(), probe.LinkTable{}, operationalMinIO(t, store))

	assert.Equal(t, status.Operational, res.Service.Status)
	assert.Equal(t, probe.EvidenceAPI, res.Service.Evidence.Type)
	require.NotNil(t, res.Summary.Artifacts.Manifest)
	assert.Equal(t, "dbt-docs", res.Summary.Artifacts.Manifest.Bucket)
	assert.Equal(t, 2, *res.Summary.Counts.Models)
	assert.Equal(t, 1, *res.Summary.Counts.Tests)

	require.NotNil(t, res.LastRun)
	assert.Equal(t, "2024-05-01T10:00:00Z", res.LastRun.GeneratedAt)
	assert.Equal(t, 3, res.LastRun.ResultsCount)
	assert.InDelta(t, 12.5, *res.LastRun.ElapsedTime, 0.001)
}

func TestDBT_NoArtifacts(t *testing.T) {
	store := objectstore.NewMemoryStore()
	store.CreateBucket("dbt")

	res := probe.NewDBT(testConfig(), store).Probe(context.Background(), probe.LinkTable{}, operationalMinIO(t, store))

	assert.Equal(t, status.Info, res.Service.Status)
	assert.Equal(t, "dbt artifacts not available", res.Service.Reason)
	assert.Equal(t, false, res.Service.Evidence.Details["manifest_found"])
	assert.Len(t, res.Service.Evidence.Details["artifacts_try"], 4)
}
