package probe

import (
	"context"
	"encoding/json"

	"github.com/openkpi/portal/internal/config"
	"github.com/openkpi/portal/internal/status"
)

// N8NSummary reports workflow counts when the API is reachable.
type N8NSummary struct {
	WorkflowsTotal    *int    `json:"workflows_total"`
	WorkflowsActive   *int    `json:"workflows_active"`
	LastExecutionTime *string `json:"last_execution_time"`
}

// N8NResult is the outcome of the n8n probe.
type N8NResult struct {
	Service status.ServiceStatus
	Summary N8NSummary
}

// N8N probes the n8n UI and REST API.
type N8N struct {
	cfg  config.Config
	http HTTPDoer
}

// NewN8N creates the probe.
func NewN8N(cfg config.Config, doer HTTPDoer) *N8N {
	return &N8N{cfg: cfg, http: doer}
}

type n8nWorkflow struct {
	Active bool `json:"active"`
}

// Probe checks the UI, then lists workflows when credentials are configured.
func (p *N8N) Probe(ctx context.Context, links LinkTable) N8NResult {
	ui := firstNonEmpty(links.N8N, p.cfg.HostURL(p.cfg.Hosts.N8N))
	uiRes := p.reach(ctx, ui, "n8n host not configured")

	details := map[string]any{
		"ui_url":         ui,
		"ui_http_ok":     uiRes.OK,
		"ui_status_code": uiRes.StatusCode,
	}

	creds := Credentials{BasicUser: p.cfg.Credentials.N8NBasicUser, BasicPass: p.cfg.Credentials.N8NBasicPass}
	if key := p.cfg.Credentials.N8NAPIKey; key != "" {
		creds.Headers = map[string]string{"X-N8N-API-KEY": key}
	}

	var summary N8NSummary
	apiOK := false
	apiReason := ""

	if ui != "" && creds.HasAny() {
		var raw json.RawMessage
		res := GetJSON(ctx, p.http, ui+"/rest/workflows", p.cfg.APITimeout, creds, &raw)
		if res.OK {
			apiOK = true
			if items, ok := decodeWorkflows(raw); ok {
				total, active := len(items), 0
				for _, w := range items {
					if w.Active {
						active++
					}
				}
				summary.WorkflowsTotal, summary.WorkflowsActive = &total, &active
			}
		} else {
			apiReason = "API auth not configured or API not accessible"
			details["api_error"] = res.Error
			details["api_status_code"] = res.StatusCode
		}
	} else {
		apiReason = "API auth not configured"
		details["api_auth_present"] = false
	}

	var st status.Status
	var reason string
	switch {
	case ui == "":
		st, reason = status.Info, "n8n host not configured"
	case !uiRes.OK && !apiOK:
		st, reason = status.Down, "n8n unreachable"
	case uiRes.OK && !apiOK:
		st, reason = status.Degraded, apiReason
	default:
		st = status.Operational
	}

	return N8NResult{
		Service: status.New(status.ServiceN8N, st, reason,
			status.WithLinks(ui, suffix(ui, "/rest")),
			status.WithEvidenceParts(EvidenceHTTP, details),
		),
		Summary: summary,
	}
}

func (p *N8N) reach(ctx context.Context, url, missing string) HTTPResult {
	return reach(ctx, p.http, url, p.cfg, missing)
}

// decodeWorkflows accepts {"data": [...]} and a bare list.
func decodeWorkflows(raw json.RawMessage) ([]n8nWorkflow, bool) {
	var wrapped struct {
		Data []n8nWorkflow `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, true
	}
	var list []n8nWorkflow
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	return nil, false
}

// ZammadSummary reports ticket counts when the API is reachable.
type ZammadSummary struct {
	OpenTickets  *int    `json:"open_tickets"`
	TotalTickets *int    `json:"total_tickets"`
	LastUpdated  *string `json:"last_updated"`
}

// ZammadResult is the outcome of the Zammad probe.
type ZammadResult struct {
	Service status.ServiceStatus
	Summary ZammadSummary
}

// Zammad probes the Zammad UI and ticket API.
type Zammad struct {
	cfg  config.Config
	http HTTPDoer
}

// NewZammad creates the probe.
func NewZammad(cfg config.Config, doer HTTPDoer) *Zammad {
	return &Zammad{cfg: cfg, http: doer}
}

// Probe checks the UI, then searches open tickets when a token is configured.
func (p *Zammad) Probe(ctx context.Context, links LinkTable) ZammadResult {
	ui := firstNonEmpty(links.Zammad, p.cfg.HostURL(p.cfg.Hosts.Zammad))
	uiRes := reach(ctx, p.http, ui, p.cfg, "zammad host not configured")
	token := p.cfg.Credentials.ZammadAPIToken

	details := map[string]any{
		"ui_url":         ui,
		"ui_http_ok":     uiRes.OK,
		"ui_status_code": uiRes.StatusCode,
		"token_present":  token != "",
	}

	var summary ZammadSummary
	apiOK := false

	if ui != "" && token != "" {
		creds := Credentials{Headers: map[string]string{"Authorization": "Token token=" + token}}
		var tickets []json.RawMessage
		res := GetJSON(ctx, p.http, ui+"/api/v1/tickets/search?query=state.name:open", p.cfg.APITimeout, creds, &tickets)
		if res.OK {
			apiOK = true
			open := len(tickets)
			summary.OpenTickets = &open
			details["open_search_ok"] = true
		} else {
			details["open_search_ok"] = false
			details["api_status_code"] = res.StatusCode
			details["api_error"] = res.Error
		}
	}

	var st status.Status
	var reason string
	switch {
	case ui == "":
		st, reason = status.Info, "zammad host not configured"
	case !uiRes.OK && !apiOK:
		st, reason = status.Down, "Zammad unreachable"
	case uiRes.OK && !apiOK:
		st = status.Degraded
		reason = "Zammad API not accessible"
		if token == "" {
			reason = "API token not configured"
		}
	default:
		st = status.Operational
	}

	return ZammadResult{
		Service: status.New(status.ServiceZammad, st, reason,
			status.WithLinks(ui, suffix(ui, "/api/v1")),
			status.WithEvidenceParts(EvidenceHTTP, details),
		),
		Summary: summary,
	}
}

// MetabaseResult is the outcome of the Metabase probe.
type MetabaseResult struct {
	Service   status.ServiceStatus
	Reachable bool
}

// Metabase probes the Metabase UI. The API key is optional and never
// degrades the status on its own.
type Metabase struct {
	cfg  config.Config
	http HTTPDoer
}

// NewMetabase creates the probe.
func NewMetabase(cfg config.Config, doer HTTPDoer) *Metabase {
	return &Metabase{cfg: cfg, http: doer}
}

// Probe checks UI reachability.
func (p *Metabase) Probe(ctx context.Context, links LinkTable) MetabaseResult {
	ui := firstNonEmpty(links.Metabase, p.cfg.HostURL(p.cfg.Hosts.Metabase))
	uiRes := reach(ctx, p.http, ui, p.cfg, "metabase host not configured")

	details := map[string]any{
		"ui_url":          ui,
		"ui_http_ok":      uiRes.OK,
		"ui_status_code":  uiRes.StatusCode,
		"api_key_present": p.cfg.Credentials.MetabaseAPIKey != "",
	}
	if uiRes.Error != "" {
		details["error"] = uiRes.Error
	}

	st, reason := status.Operational, ""
	switch {
	case ui == "":
		st, reason = status.Info, "metabase host not configured"
	case !uiRes.OK:
		st, reason = status.Down, "Metabase unreachable"
	}

	return MetabaseResult{
		Service: status.New(status.ServiceMetabase, st, reason,
			status.WithLinks(ui, suffix(ui, "/api")),
			status.WithEvidenceParts(EvidenceHTTP, details),
		),
		Reachable: uiRes.OK,
	}
}

// reach fetches the UI. An empty url is an unconfigured application, which
// the probes report as INFO.
func reach(ctx context.Context, doer HTTPDoer, url string, cfg config.Config, missing string) HTTPResult {
	if url == "" {
		return HTTPResult{Error: missing}
	}
	return GetText(ctx, doer, url, cfg.ReachTimeout, Credentials{})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func suffix(base, s string) string {
	if base == "" {
		return ""
	}
	return base + s
}
