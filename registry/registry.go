// Package registry implements the Agent Registry (C4): a catalog of agent
// descriptors with capability-tag lookup, health tracking, and copy-on-write
// snapshots so readers never block behind a registration or deregistration.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Descriptor describes one registered agent.
type Descriptor struct {
	Name            string            `json:"name"`
	Capabilities    []string          `json:"capabilities"`
	Description     string            `json:"description"`
	InputSchema     map[string]any    `json:"input_schema,omitempty"`
	OutputSchema    map[string]any    `json:"output_schema,omitempty"`
	IsPrivileged    bool              `json:"is_privileged"`
	RequiredFields  []string          `json:"required_fields,omitempty"`
	TimeoutMS       int               `json:"timeout_ms"`
	MaxRetries      int               `json:"max_retries"`
	InvocationHandle string           `json:"invocation_handle"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Timeout returns the descriptor's per-invocation timeout, defaulting to 10s
// when unset.
func (d Descriptor) Timeout() time.Duration {
	if d.TimeoutMS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// HealthStatus reports the last observed health of an agent.
type HealthStatus struct {
	Status    string    `json:"status"` // "healthy", "unhealthy", "unknown"
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthChecker is implemented by invocation transports that can report
// their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) HealthStatus
}

// snapshot is the immutable, copy-on-write view swapped on every mutation.
type snapshot struct {
	byName     map[string]Descriptor
	byCap      map[string]map[string]struct{} // capability -> set of agent names
	health     map[string]HealthStatus
	checkers   map[string]HealthChecker
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byName:   make(map[string]Descriptor),
		byCap:    make(map[string]map[string]struct{}),
		health:   make(map[string]HealthStatus),
		checkers: make(map[string]HealthChecker),
	}
}

// Registry is the Agent Registry (C4). Reads never block behind a writer:
// mutations build a fresh snapshot and atomically swap a pointer.
type Registry struct {
	mu  sync.Mutex // serializes writers only
	cur atomicSnapshot
}

// New creates an empty Registry.
func New() *Registry {
	r := &Registry{}
	r.cur.store(emptySnapshot())
	return r
}

// ErrNotFound indicates no descriptor is registered under the given name.
var ErrNotFound = fmt.Errorf("agent not found")

// ErrAlreadyRegistered indicates a descriptor with this name already exists.
var ErrAlreadyRegistered = fmt.Errorf("agent already registered")

// Register adds a descriptor to the registry, rebuilding the capability
// index. Every capability tag is lower-cased before indexing so lookups are
// case-insensitive, matching the invariant that an agent appears under every
// tag it declares and nowhere else.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("registry: descriptor name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.cur.load()
	if _, exists := old.byName[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, d.Name)
	}

	next := cloneSnapshot(old)
	next.byName[d.Name] = d
	for _, tag := range d.Capabilities {
		tag = strings.ToLower(tag)
		if next.byCap[tag] == nil {
			next.byCap[tag] = make(map[string]struct{})
		}
		next.byCap[tag][d.Name] = struct{}{}
	}
	r.cur.store(next)
	return nil
}

// Deregister removes a descriptor and rebuilds the capability index.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.cur.load()
	if _, exists := old.byName[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	next := cloneSnapshot(old)
	delete(next.byName, name)
	delete(next.health, name)
	delete(next.checkers, name)
	for tag, names := range next.byCap {
		delete(names, name)
		if len(names) == 0 {
			delete(next.byCap, tag)
		}
	}
	r.cur.store(next)
	return nil
}

// RegisterHealthChecker attaches a health checker for an already-registered
// agent. It does not rebuild the capability index.
func (r *Registry) RegisterHealthChecker(name string, hc HealthChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.cur.load()
	if _, exists := old.byName[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	next := cloneSnapshot(old)
	next.checkers[name] = hc
	r.cur.store(next)
	return nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	snap := r.cur.load()
	d, ok := snap.byName[name]
	return d, ok
}

// FindByCapability returns the names of all agents declaring tag, in
// deterministic (sorted) order. Lookup is O(1) expected via the capability
// index plus an O(k log k) sort of the match set.
func (r *Registry) FindByCapability(tag string) []string {
	snap := r.cur.load()
	set := snap.byCap[strings.ToLower(tag)]
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// List returns every registered descriptor, sorted by name.
func (r *Registry) List() []Descriptor {
	snap := r.cur.load()
	out := make([]Descriptor, 0, len(snap.byName))
	for _, d := range snap.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HealthOf returns the last recorded health for an agent, actively probing
// via its HealthChecker (if any) when no prior reading exists.
func (r *Registry) HealthOf(ctx context.Context, name string) (HealthStatus, error) {
	snap := r.cur.load()
	if _, ok := snap.byName[name]; !ok {
		return HealthStatus{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if hc, ok := snap.checkers[name]; ok {
		status := hc.HealthCheck(ctx)
		r.recordHealth(name, status)
		return status, nil
	}
	if h, ok := snap.health[name]; ok {
		return h, nil
	}
	return HealthStatus{Status: "unknown"}, nil
}

// recordHealth stores the most recent health reading for name.
func (r *Registry) recordHealth(name string, status HealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.cur.load()
	next := cloneSnapshot(old)
	next.health[name] = status
	r.cur.store(next)
}

func cloneSnapshot(s *snapshot) *snapshot {
	next := &snapshot{
		byName:   make(map[string]Descriptor, len(s.byName)),
		byCap:    make(map[string]map[string]struct{}, len(s.byCap)),
		health:   make(map[string]HealthStatus, len(s.health)),
		checkers: make(map[string]HealthChecker, len(s.checkers)),
	}
	for k, v := range s.byName {
		next.byName[k] = v
	}
	for tag, names := range s.byCap {
		cp := make(map[string]struct{}, len(names))
		for n := range names {
			cp[n] = struct{}{}
		}
		next.byCap[tag] = cp
	}
	for k, v := range s.health {
		next.health[k] = v
	}
	for k, v := range s.checkers {
		next.checkers[k] = v
	}
	return next
}
