package orchestrator

import (
	"strings"
	"sync"

	"github.com/ferro-labs/agentrouter/agents"
	"github.com/ferro-labs/agentrouter/registry"
)

// InvokerResolver builds and caches the agents.Invoker transport for each
// registered agent, inferring the transport from the descriptor's
// InvocationHandle: an "http://" or "https://" handle becomes an
// agents.HTTPInvoker, anything else is treated as an executable path and
// becomes an agents.SubprocessInvoker. Callers needing an in-process agent
// (no external transport) should register it directly with Override instead
// of relying on inference.
type InvokerResolver struct {
	reg *registry.Registry

	mu        sync.Mutex
	cached    map[string]agents.Invoker
	overrides map[string]agents.Invoker
}

// NewInvokerResolver creates a resolver backed by reg.
func NewInvokerResolver(reg *registry.Registry) *InvokerResolver {
	return &InvokerResolver{
		reg:       reg,
		cached:    make(map[string]agents.Invoker),
		overrides: make(map[string]agents.Invoker),
	}
}

// Override registers an explicit Invoker for name, taking priority over
// transport inference from the registry descriptor. Used for in-process
// built-in agents and for tests.
func (r *InvokerResolver) Override(name string, inv agents.Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = inv
}

// Resolve implements execution.Resolver.
func (r *InvokerResolver) Resolve(name string) (agents.Invoker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inv, ok := r.overrides[name]; ok {
		return inv, true
	}
	if inv, ok := r.cached[name]; ok {
		return inv, true
	}

	desc, ok := r.reg.Get(name)
	if !ok || desc.InvocationHandle == "" {
		return nil, false
	}

	var inv agents.Invoker
	switch {
	case strings.HasPrefix(desc.InvocationHandle, "http://"), strings.HasPrefix(desc.InvocationHandle, "https://"):
		inv = agents.NewHTTPInvoker(name, desc.InvocationHandle, nil)
	default:
		inv = agents.NewSubprocessInvoker(name, desc.InvocationHandle)
	}
	r.cached[name] = inv
	return inv, true
}
