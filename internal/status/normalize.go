package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// Shape identifies how a raw probe result carries its service record.
type Shape int

const (
	// ShapeUnknown is anything that is not a JSON object.
	ShapeUnknown Shape = iota
	// ShapeWrapped is {"service": {...record...}}.
	ShapeWrapped
	// ShapeDirect is a record with its fields at the top level.
	ShapeDirect
	// ShapeLegacy is a top-level record whose name lives under "service" as a string.
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeWrapped:
		return "wrapped"
	case ShapeDirect:
		return "direct"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Envelope is a decoded probe result: its shape plus the fields of the
// service record it carries.
type Envelope struct {
	Shape  Shape
	Fields map[string]any
}

// Classify determines the shape of raw and extracts the record fields.
// The "service" key is disambiguated by type: a mapping means the record is
// wrapped, a string means it is the legacy name field.
func Classify(raw any) Envelope {
	m, ok := toMap(raw)
	if !ok {
		return Envelope{Shape: ShapeUnknown, Fields: map[string]any{}}
	}

	switch svc := m["service"].(type) {
	case map[string]any:
		return Envelope{Shape: ShapeWrapped, Fields: svc}
	case string:
		return Envelope{Shape: ShapeLegacy, Fields: m}
	default:
		return Envelope{Shape: ShapeDirect, Fields: m}
	}
}

// Name resolves the service name: explicit "name", then a string "service",
// then fallback.
func (e Envelope) Name(fallback string) string {
	if s := nonEmptyString(e.Fields["name"]); s != "" {
		return s
	}
	if s := nonEmptyString(e.Fields["service"]); s != "" {
		return s
	}
	return fallback
}

// Normalize coerces a probe result of any supported shape into a canonical
// ServiceStatus. An absent status fails closed to Down. Normalize is
// idempotent: feeding its output back in yields the same record.
func Normalize(raw any, fallbackName string) ServiceStatus {
	switch v := raw.(type) {
	case ServiceStatus:
		return renormalize(v, fallbackName)
	case *ServiceStatus:
		if v != nil {
			return renormalize(*v, fallbackName)
		}
	}

	env := Classify(raw)
	f := env.Fields

	st := Down
	if s := scalarString(f["status"]); s != "" {
		st = Status(s)
	}

	opts := []Option{WithLastChecked(parseTime(f["last_checked"]))}
	if links, ok := f["links"].(map[string]any); ok {
		opts = append(opts, WithLinkMap(links))
	}
	if ev, ok := f["evidence"].(map[string]any); ok {
		details, _ := ev["details"].(map[string]any)
		opts = append(opts, WithEvidence(Evidence{
			Type:    nonEmptyString(ev["type"]),
			Details: details,
		}))
	}

	return New(env.Name(fallbackName), st, scalarString(f["reason"]), opts...)
}

func renormalize(s ServiceStatus, fallback string) ServiceStatus {
	st := s.Status
	if st == "" {
		st = Down
	}
	name := s.Name
	if name == "" {
		name = fallback
	}
	return New(name, st, s.Reason,
		WithLastChecked(s.LastChecked),
		WithLinks(s.Links.UI, s.Links.API),
		WithEvidence(s.Evidence),
	)
}

func toMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, v != nil
	case json.RawMessage:
		return decodeMap(v)
	case []byte:
		return decodeMap(v)
	case string:
		return decodeMap([]byte(v))
	default:
		return nil, false
	}
}

func decodeMap(data []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonEmptyString(v any) string {
	s, _ := v.(string)
	return s
}

// scalarString renders scalar JSON values as strings and drops everything else.
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool, float64, int, int64:
		return fmt.Sprint(x)
	default:
		return ""
	}
}
