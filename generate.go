package aigateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/ferro-labs/agentrouter/internal/circuitbreaker"
	"github.com/ferro-labs/agentrouter/internal/logging"
	"github.com/ferro-labs/agentrouter/internal/metrics"
	"github.com/ferro-labs/agentrouter/models"
	"github.com/ferro-labs/agentrouter/providers"

	"context"
)

// ProviderAttempt records the outcome of one provider invocation inside a
// Generate call.
type ProviderAttempt struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// GenerateRequest is the Gateway Router's (C2) inbound request shape: a
// normal chat request plus an optional preferred provider and a
// fallback_order.
type GenerateRequest struct {
	providers.Request
	Preferred      string   `json:"preferred,omitempty"`
	FallbackOrder  []string `json:"fallback_order,omitempty"`
	FallbackEnabled bool    `json:"fallback_enabled"`
}

// GenerationResponse wraps the normalized provider response with the
// Generate-specific attempt trail.
type GenerationResponse struct {
	*providers.Response
	Attempts []ProviderAttempt `json:"attempts"`
}

// AllProvidersFailed is returned when every attempted provider failed or was
// unavailable. The attempts list is part of the error payload so callers
// can see exactly what was tried.
type AllProvidersFailed struct {
	Attempts []ProviderAttempt
}

func (e *AllProvidersFailed) Error() string {
	var b strings.Builder
	b.WriteString("aigateway: all providers failed: ")
	for i, a := range e.Attempts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s(%s)", a.Provider, a.Error)
	}
	return b.String()
}

// Generate implements the Gateway Router's generate() operation: builds the
// deduplicated preferred∪fallback_order attempt order, truncates it to
// max_fallback_attempts, and tries each provider in turn through its
// circuit breaker until one succeeds.
//
// This is distinct from Route: Route drives the YAML-configured
// single/fallback/load-balance/conditional strategies over Config.Targets,
// while Generate drives a per-request preferred-provider-plus-fallback-list
// the caller supplies directly (the shape the Reasoner's AI strategy and the
// orchestrator's /v1/generate endpoint both need).
func (g *Gateway) Generate(ctx context.Context, req GenerateRequest, maxFallbackAttempts int) (*GenerationResponse, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	order := attemptOrder(req, maxFallbackAttempts)
	if len(order) == 0 {
		return nil, fmt.Errorf("aigateway: generate: no provider specified")
	}

	var attempts []ProviderAttempt
	for _, name := range order {
		g.mu.RLock()
		p, ok := g.providers[name]
		cb := g.circuitBreakers[name]
		g.mu.RUnlock()

		if !ok {
			attempts = append(attempts, ProviderAttempt{Provider: name, OK: false, Error: "not registered"})
			continue
		}
		if cb != nil && !cb.Allow() {
			attempts = append(attempts, ProviderAttempt{Provider: name, OK: false, Error: circuitbreaker.ErrCircuitOpen.Error()})
			continue
		}

		resp, err := p.Complete(ctx, req.Request)
		if err != nil {
			if cb != nil {
				cb.RecordFailure()
			}
			attempts = append(attempts, ProviderAttempt{Provider: name, OK: false, Error: err.Error()})
			metrics.ProviderErrors.WithLabelValues(name, "generate_error").Inc()
			continue
		}
		if cb != nil {
			cb.RecordSuccess()
		}
		attempts = append(attempts, ProviderAttempt{Provider: name, OK: true})

		resp.Provider = name
		latency := time.Since(start)
		metrics.RequestDuration.WithLabelValues(resp.Provider, resp.Model).Observe(latency.Seconds())
		metrics.RequestsTotal.WithLabelValues(resp.Provider, resp.Model, "success").Inc()

		g.mu.RLock()
		catalog := g.catalog
		g.mu.RUnlock()
		cost := models.Calculate(catalog, resp.Provider+"/"+resp.Model, models.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		})
		if cost.TotalUSD > 0 {
			metrics.RequestCostUSD.WithLabelValues(resp.Provider, resp.Model).Add(cost.TotalUSD)
		}

		log.Info("generate completed", "provider", resp.Provider, "model", resp.Model, "attempts", len(attempts))
		return &GenerationResponse{Response: resp, Attempts: attempts}, nil
	}

	log.Error("generate: all providers failed", "attempts", len(attempts))
	return nil, &AllProvidersFailed{Attempts: attempts}
}

// attemptOrder builds preferred∪fallback_order, deduplicated and preserving
// insertion order, truncated to maxFallbackAttempts. When req.FallbackEnabled
// is false, only the preferred provider is attempted.
func attemptOrder(req GenerateRequest, maxFallbackAttempts int) []string {
	var order []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}

	add(req.Preferred)
	if req.FallbackEnabled {
		for _, name := range req.FallbackOrder {
			add(name)
		}
	}

	if maxFallbackAttempts > 0 && len(order) > maxFallbackAttempts {
		order = order[:maxFallbackAttempts]
	}
	return order
}
