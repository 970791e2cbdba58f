// Package status defines the canonical service status record shared by every
// probe, along with normalization of loosely shaped probe output and the
// platform-wide aggregation rules.
package status

import (
	"encoding/json"
	"time"
)

// Status is the health verdict of a single service or of the whole platform.
type Status string

const (
	Operational Status = "OPERATIONAL"
	Degraded    Status = "DEGRADED"
	Down        Status = "DOWN"
	Info        Status = "INFO"
)

// Valid reports whether s is one of the four known values.
func (s Status) Valid() bool {
	switch s {
	case Operational, Degraded, Down, Info:
		return true
	default:
		return false
	}
}

// ParseStatus converts a raw value into a Status. Unknown values become Info.
func ParseStatus(raw string) Status {
	s := Status(raw)
	if !s.Valid() {
		return Info
	}
	return s
}

// DefaultEvidenceType is used when a probe supplies no evidence type.
const DefaultEvidenceType = "INFO"

// Links points at the user-facing UI and the API of a service.
// Both are always present in JSON, empty when unknown.
type Links struct {
	UI  string `json:"ui"`
	API string `json:"api"`
}

// Evidence is the probe-specific diagnostic payload attached to a status.
// Aggregation never reads it.
type Evidence struct {
	Type    string         `json:"type"`
	Details map[string]any `json:"details"`
}

// ServiceStatus is the canonical record every probe produces.
type ServiceStatus struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason"`
	LastChecked time.Time `json:"last_checked"`
	Links       Links     `json:"links"`
	Evidence    Evidence  `json:"evidence"`
}

// MarshalJSON emits the record with the legacy "service" key mirroring name.
func (s ServiceStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Service     string   `json:"service"`
		Name        string   `json:"name"`
		Status      Status   `json:"status"`
		Reason      string   `json:"reason"`
		LastChecked string   `json:"last_checked"`
		Links       Links    `json:"links"`
		Evidence    Evidence `json:"evidence"`
	}{
		Service:     s.Name,
		Name:        s.Name,
		Status:      s.Status,
		Reason:      s.Reason,
		LastChecked: FormatTime(s.LastChecked),
		Links:       s.Links,
		Evidence:    s.Evidence,
	})
}

// FormatTime renders t as an RFC 3339 UTC timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Option customizes a ServiceStatus built by New.
type Option func(*options)

type options struct {
	lastChecked time.Time
	links       Links
	evidence    *Evidence
	evType      string
	evDetails   map[string]any
}

// WithLinks sets the UI and API links.
func WithLinks(ui, api string) Option {
	return func(o *options) {
		o.links = Links{UI: ui, API: api}
	}
}

// WithLinkMap sets links from a loosely typed map. Only "ui" and "api" are
// read; anything else is dropped.
func WithLinkMap(m map[string]any) Option {
	return func(o *options) {
		o.links = Links{UI: stringValue(m["ui"]), API: stringValue(m["api"])}
	}
}

// WithEvidence attaches a pre-shaped evidence object.
func WithEvidence(e Evidence) Option {
	return func(o *options) {
		o.evidence = &e
	}
}

// WithEvidenceParts attaches evidence given as separate type and details.
func WithEvidenceParts(evidenceType string, details map[string]any) Option {
	return func(o *options) {
		o.evType = evidenceType
		o.evDetails = details
	}
}

// WithLastChecked overrides the check timestamp. A zero time means now.
func WithLastChecked(t time.Time) Option {
	return func(o *options) {
		o.lastChecked = t
	}
}

// New builds a ServiceStatus that always satisfies the canonical shape.
// It never fails: an unknown status becomes Info, missing evidence becomes
// an empty INFO blob and a missing timestamp becomes the current time.
func New(name string, st Status, reason string, opts ...Option) ServiceStatus {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if !st.Valid() {
		st = Info
	}

	lastChecked := o.lastChecked
	if lastChecked.IsZero() {
		lastChecked = time.Now()
	}

	ev := Evidence{Type: o.evType, Details: o.evDetails}
	if o.evidence != nil {
		ev = *o.evidence
	}
	if ev.Type == "" {
		ev.Type = DefaultEvidenceType
	}
	if ev.Details == nil {
		ev.Details = map[string]any{}
	}

	return ServiceStatus{
		Name:        name,
		Status:      st,
		Reason:      reason,
		LastChecked: lastChecked.UTC(),
		Links:       o.links,
		Evidence:    ev,
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
