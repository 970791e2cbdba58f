package probe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/objectstore"
	"github.com/openkpi/portal/internal/status"
)

// Artifact keys looked up in each dbt bucket.
const (
	ManifestKey   = "artifacts/manifest.json"
	RunResultsKey = "artifacts/run_results.json"
)

// ObjectRef locates an artifact.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// DBTArtifacts records which artifacts were found.
type DBTArtifacts struct {
	Manifest   *ObjectRef `json:"manifest"`
	RunResults *ObjectRef `json:"run_results"`
}

// DBTCounts counts manifest nodes by resource type.
type DBTCounts struct {
	Models *int `json:"models"`
	Tests  *int `json:"tests"`
}

// DBTRun summarizes run_results.json.
type DBTRun struct {
	GeneratedAt  string   `json:"generated_at"`
	ElapsedTime  *float64 `json:"elapsed_time"`
	ResultsCount int      `json:"results_count"`
}

// DBTSummary is the transform view shown on the portal.
type DBTSummary struct {
	DocsURL    string       `json:"docs_url"`
	LineageURL string       `json:"lineage_url"`
	Artifacts  DBTArtifacts `json:"artifacts"`
	Counts     DBTCounts    `json:"counts"`
}

// DBTResult is the outcome of the dbt probe.
type DBTResult struct {
	Service status.ServiceStatus
	Summary DBTSummary
	LastRun *DBTRun
}

type dbtManifest struct {
	Nodes map[string]struct {
		ResourceType string `json:"resource_type"`
	} `json:"nodes"`
}

type dbtRunResults struct {
	Metadata struct {
		GeneratedAt string `json:"generated_at"`
	} `json:"metadata"`
	ElapsedTime *float64          `json:"elapsed_time"`
	Results     []json.RawMessage `json:"results"`
}

// DBT verifies dbt build artifacts stored in the object store.
type DBT struct {
	cfg   config.Config
	store objectstore.Store
}

// NewDBT creates the probe. store may be nil.
func NewDBT(cfg config.Config, store objectstore.Store) *DBT {
	return &DBT{cfg: cfg, store: store}
}

// Probe needs the object store to be operational; it then reads the manifest
// and run results from the first artifact bucket that has them.
func (p *DBT) Probe(ctx context.Context, links LinkTable, minio MinIOResult) DBTResult {
	summary := DBTSummary{DocsURL: links.DBTDocs, LineageURL: links.DBTLineage}
	ui := links.DBTDocs
	if ui == "" {
		ui = links.DBTLineage
	}

	minioOK := minio.Operational() && p.store != nil
	evidence := map[string]any{
		"docs_url":          summary.DocsURL,
		"lineage_url":       summary.LineageURL,
		"minio_operational": minioOK,
	}

	if !minioOK {
		evidence["artifacts_try"] = []ObjectRef{}
		return DBTResult{
			Service: status.New(status.ServiceDBT, status.Degraded, "MinIO not configured; cannot verify dbt artifacts",
				status.WithLinks(ui, ""),
				status.WithEvidenceParts(EvidenceHTTP, evidence),
			),
			Summary: summary,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.APITimeout)
	defer cancel()

	var tried []ObjectRef

	var manifest dbtManifest
	if ref, err := p.loadFirst(ctx, ManifestKey, &manifest, &tried); err == nil {
		summary.Artifacts.Manifest = ref
		models, tests := 0, 0
		for _, n := range manifest.Nodes {
			switch n.ResourceType {
			case "model":
				models++
			case "test":
				tests++
			}
		}
		summary.Counts = DBTCounts{Models: &models, Tests: &tests}
	} else {
		evidence["manifest_error"] = err.Error()
	}

	var lastRun *DBTRun
	var runResults dbtRunResults
	if ref, err := p.loadFirst(ctx, RunResultsKey, &runResults, &tried); err == nil {
		summary.Artifacts.RunResults = ref
		lastRun = &DBTRun{
			GeneratedAt:  runResults.Metadata.GeneratedAt,
			ElapsedTime:  runResults.ElapsedTime,
			ResultsCount: len(runResults.Results),
		}
	} else {
		evidence["run_results_error"] = err.Error()
	}

	evidence["artifacts_try"] = tried
	evidence["manifest_found"] = summary.Artifacts.Manifest != nil
	evidence["run_results_found"] = summary.Artifacts.RunResults != nil

	st, reason := status.Operational, ""
	if summary.Artifacts.Manifest == nil && summary.Artifacts.RunResults == nil {
		st, reason = status.Info, "dbt artifacts not available"
	}

	return DBTResult{
		Service: status.New(status.ServiceDBT, st, reason,
			status.WithLinks(ui, ""),
			status.WithEvidenceParts(EvidenceAPI, evidence),
		),
		Summary: summary,
		LastRun: lastRun,
	}
}

// loadFirst tries key in each artifact bucket and decodes the first hit.
func (p *DBT) loadFirst(ctx context.Context, key string, out any, tried *[]ObjectRef) (*ObjectRef, error) {
	var lastErr error
	for _, bucket := range p.cfg.DBT.ArtifactBuckets {
		ref := ObjectRef{Bucket: bucket, Key: key}
		*tried = append(*tried, ref)

		data, err := p.store.GetObject(ctx, bucket, key)
		if err != nil {
			lastErr = err
			continue
		}
		if err := json.Unmarshal(data, out); err != nil {
			lastErr = fmt.Errorf("%s/%s: invalid json: %w", bucket, key, err)
			continue
		}
		return &ref, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s: %w", key, objectstore.ErrNotFound)
	}
	return nil, lastErr
}
