// Package agents defines the uniform outbound agent invocation contract and
// its three transports: in-process callable, subprocess over
// newline-delimited JSON, and remote JSON-over-HTTP.
package agents

import (
	"context"
	"errors"
)

// ErrPermanent marks an invocation error the caller should never retry: an
// authentication failure or a 4xx response the target will reject again on
// the next attempt. Transports wrap it with fmt.Errorf's %w so
// errors.Is(err, ErrPermanent) holds after the wrapping.
var ErrPermanent = errors.New("agents: permanent error, not retried")

// Request is the uniform shape sent to every agent invocation transport.
type Request struct {
	Query      string         `json:"query,omitempty"`
	Parameters map[string]any `json:"parameters"`
	Context    map[string]any `json:"context,omitempty"`
}

// Response is the uniform shape every agent invocation transport returns.
type Response struct {
	Success          bool           `json:"success"`
	Data             map[string]any `json:"data,omitempty"`
	Error            string         `json:"error,omitempty"`
	RequiresApproval bool           `json:"requires_approval,omitempty"`
}

// Invoker is implemented by every agent transport. Callers (the Executor)
// depend only on this interface, never on a transport's concrete type.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// InvokerFunc adapts a plain function to the Invoker interface, mirroring
// providers.Provider's function-first ergonomics for the in-process case.
type InvokerFunc func(ctx context.Context, req Request) (Response, error)

// Invoke calls the wrapped function.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
