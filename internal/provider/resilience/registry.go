package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// TargetHealth is the breaker view of one probe target.
type TargetHealth struct {
	// Name is the target identifier, e.g. "airbyte".
	Name string

	// CircuitState is the current circuit breaker state.
	CircuitState gobreaker.State

	// Counts contains circuit breaker statistics.
	Counts gobreaker.Counts

	// LastSuccessAt is the timestamp of the last successful request.
	LastSuccessAt *time.Time

	// LastFailureAt is the timestamp of the last failed request.
	LastFailureAt *time.Time

	// LastError is the most recent error message, if any.
	LastError string
}

// IsHealthy returns true if the breaker is closed.
func (h *TargetHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded returns true if the breaker is half-open.
func (h *TargetHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy returns true if the breaker is open.
func (h *TargetHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Registry tracks probe target clients and their recent outcomes.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]*registeredTarget
}

type registeredTarget struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]*registeredTarget),
	}
}

// Register adds a client under name, replacing any previous one.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[name] = &registeredTarget{
		client: client,
	}
}

// Unregister removes a target from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targets, name)
}

// RecordSuccess records a successful request for a target.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.targets[name]; ok {
		now := time.Now()
		t.lastSuccessAt = &now
	}
}

// RecordFailure records a failed request for a target.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.targets[name]; ok {
		now := time.Now()
		t.lastFailureAt = &now
		if err != nil {
			t.lastError = err.Error()
		}
	}
}

// GetHealth returns the health of a single target, or nil if unknown.
func (r *Registry) GetHealth(name string) *TargetHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.targets[name]
	if !ok {
		return nil
	}
	return t.health(name)
}

// GetAllHealth returns the health of every registered target ordered by name.
func (r *Registry) GetAllHealth() []*TargetHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*TargetHealth, 0, len(r.targets))
	for name, t := range r.targets {
		health = append(health, t.health(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })

	return health
}

// GetTargetNames returns the names of all registered targets.
func (r *Registry) GetTargetNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TargetCount returns the number of registered targets.
func (r *Registry) TargetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

func (t *registeredTarget) health(name string) *TargetHealth {
	return &TargetHealth{
		Name:          name,
		CircuitState:  t.client.CircuitBreakerState(),
		Counts:        t.client.CircuitBreakerCounts(),
		LastSuccessAt: t.lastSuccessAt,
		LastFailureAt: t.lastFailureAt,
		LastError:     t.lastError,
	}
}
