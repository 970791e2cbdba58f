package status

// Service names probed by the portal.
const (
	ServiceKubernetes = "kubernetes"
	ServicePostgres   = "postgres"
	ServiceMinIO      = "minio"
	ServiceIngressTLS = "ingress_tls"
	ServiceAirbyte    = "airbyte"
	ServiceDBT        = "dbt"
	ServiceN8N        = "n8n"
	ServiceZammad     = "zammad"
	ServiceMetabase   = "metabase"
)

// RequiredOrder returns the fixed display order of required services.
func RequiredOrder() []string {
	return []string{
		ServiceKubernetes,
		ServicePostgres,
		ServiceMinIO,
		ServiceIngressTLS,
		ServiceAirbyte,
		ServiceDBT,
		ServiceN8N,
		ServiceZammad,
		ServiceMetabase,
	}
}

// CriticalServices returns the required services whose outage takes the
// whole platform down.
func CriticalServices() []string {
	return []string{ServiceKubernetes, ServicePostgres, ServiceIngressTLS}
}

// Fraction is the number of operational required services (X) out of all
// required services (Y).
type Fraction struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Policy decides which services count toward the platform verdict.
type Policy struct {
	Required []string
	Critical []string
}

// DefaultPolicy returns the policy for the portal's fixed service set.
func DefaultPolicy() Policy {
	return Policy{
		Required: RequiredOrder(),
		Critical: CriticalServices(),
	}
}

// IsRequired reports whether name participates in aggregation.
func (p Policy) IsRequired(name string) bool {
	for _, r := range p.Required {
		if r == name {
			return true
		}
	}
	return false
}

// IsCritical reports whether name is a critical service.
func (p Policy) IsCritical(name string) bool {
	for _, c := range p.Critical {
		if c == name {
			return true
		}
	}
	return false
}

// Resolve picks the first record for every required name. Records for other
// names and later duplicates are ignored.
func (p Policy) Resolve(services []ServiceStatus) map[string]ServiceStatus {
	out := make(map[string]ServiceStatus, len(p.Required))
	for _, s := range services {
		if !p.IsRequired(s.Name) {
			continue
		}
		if _, seen := out[s.Name]; seen {
			continue
		}
		out[s.Name] = s
	}
	return out
}

// PlatformStatus folds service statuses into a platform verdict:
// a critical service Down yields Down, any other Down or Degraded yields
// Degraded, otherwise Operational. Missing required services do not count.
func (p Policy) PlatformStatus(services []ServiceStatus) Status {
	resolved := p.Resolve(services)

	for _, name := range p.Critical {
		if s, ok := resolved[name]; ok && s.Status == Down {
			return Down
		}
	}
	for _, name := range p.Required {
		s, ok := resolved[name]
		if !ok {
			continue
		}
		if s.Status == Down || s.Status == Degraded {
			return Degraded
		}
	}
	return Operational
}

// OperationalFraction counts required services reported exactly Operational.
func (p Policy) OperationalFraction(services []ServiceStatus) Fraction {
	resolved := p.Resolve(services)

	x := 0
	for _, name := range p.Required {
		if s, ok := resolved[name]; ok && s.Status == Operational {
			x++
		}
	}
	return Fraction{X: x, Y: len(p.Required)}
}

// PlatformStatus applies DefaultPolicy.
func PlatformStatus(services []ServiceStatus) Status {
	return DefaultPolicy().PlatformStatus(services)
}

// OperationalFraction applies DefaultPolicy.
func OperationalFraction(services []ServiceStatus) Fraction {
	return DefaultPolicy().OperationalFraction(services)
}
