package probe

import (
	"context"
	"sort"

	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/status"
)

// AirbyteJob is the subset of an Airbyte job the portal reports.
type AirbyteJob struct {
	ID            int64  `json:"id"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
	BytesSynced   *int64 `json:"bytesSynced,omitempty"`
	RecordsSynced *int64 `json:"recordsSynced,omitempty"`
}

// airbyteJobItem accepts both the flat job shape and the
// {"job": {...}, "attempts": [...]} shape of the config API.
type airbyteJobItem struct {
	AirbyteJob
	Job *AirbyteJob `json:"job"`
}

func (i airbyteJobItem) job() AirbyteJob {
	if i.Job != nil {
		return *i.Job
	}
	return i.AirbyteJob
}

type airbyteJobsResponse struct {
	Jobs []airbyteJobItem `json:"jobs"`
}

// AirbyteResult is the outcome of the Airbyte probe.
type AirbyteResult struct {
	Service  status.ServiceStatus
	APIBase  string
	LastSync *AirbyteJob
}

// Airbyte probes the Airbyte server API.
type Airbyte struct {
	cfg  config.Config
	http HTTPDoer
}

// NewAirbyte creates the probe.
func NewAirbyte(cfg config.Config, doer HTTPDoer) *Airbyte {
	return &Airbyte{cfg: cfg, http: doer}
}

// Probe checks /api/v1/health on the in-cluster address, falling back to the
// external one, then reads the latest sync jobs.
func (p *Airbyte) Probe(ctx context.Context, links LinkTable) AirbyteResult {
	external := links.Airbyte
	if external == "" {
		external = p.cfg.HostURL(p.cfg.Hosts.Airbyte)
	}

	apiBase := p.cfg.AirbyteInternalURL
	var health map[string]any
	res := GetJSON(ctx, p.http, apiBase+"/api/v1/health", p.cfg.ReachTimeout, Credentials{}, &health)
	if !res.OK && external != "" {
		apiBase = external
		res = GetJSON(ctx, p.http, apiBase+"/api/v1/health", p.cfg.ReachTimeout, Credentials{}, &health)
	}

	if !res.OK {
		return AirbyteResult{
			Service: status.New(status.ServiceAirbyte, status.Down, "Airbyte API unreachable",
				status.WithLinks(external, apiBase),
				status.WithEvidenceParts(EvidenceHTTP, map[string]any{
					"health_url":  apiBase + "/api/v1/health",
					"error":       res.Error,
					"status_code": res.StatusCode,
				}),
			),
			APIBase: apiBase,
		}
	}

	evidence := map[string]any{"health": health, "api_base": apiBase}

	var jobs airbyteJobsResponse
	payload := map[string]any{
		"configTypes": []string{"sync"},
		"pagination":  map[string]int{"pageSize": 10, "rowOffset": 0},
	}
	jobsRes := PostJSON(ctx, p.http, apiBase+"/api/v1/jobs/list", p.cfg.APITimeout, Credentials{}, payload, &jobs)
	if !jobsRes.OK {
		evidence["jobs_list"] = map[string]any{"ok": false, "error": jobsRes.Error, "status_code": jobsRes.StatusCode}
		return AirbyteResult{
			Service: status.New(status.ServiceAirbyte, status.Degraded, "Airbyte jobs API not accessible",
				status.WithLinks(external, apiBase),
				status.WithEvidenceParts(EvidenceHTTP, evidence),
			),
			APIBase: apiBase,
		}
	}

	last := latestJob(jobs.Jobs)
	evidence["jobs_list"] = map[string]any{"ok": true, "count": len(jobs.Jobs)}

	return AirbyteResult{
		Service: status.New(status.ServiceAirbyte, status.Operational, "",
			status.WithLinks(external, apiBase),
			status.WithEvidenceParts(EvidenceHTTP, evidence),
		),
		APIBase:  apiBase,
		LastSync: last,
	}
}

func latestJob(items []airbyteJobItem) *AirbyteJob {
	if len(items) == 0 {
		return nil
	}
	jobs := make([]AirbyteJob, len(items))
	for i := range items {
		jobs[i] = items[i].job()
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].UpdatedAt > jobs[j].UpdatedAt })
	return &jobs[0]
}
