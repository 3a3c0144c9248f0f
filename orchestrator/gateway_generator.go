// Package orchestrator wires the Agent Orchestration Core (C4-C10) into a
// single HandleQuery entrypoint: Registry lookup, Reasoner classification,
// Planner DAG construction, Executor, Validator, Consolidator, and Audit
// Logger, grounded on cmd/ferrogw/main.go's Gateway-wiring style.
package orchestrator

import (
	"context"
	"fmt"

	aigateway "github.com/ferro-labs/agentrouter"
	"github.com/ferro-labs/agentrouter/providers"
)

// GatewayGenerator adapts *aigateway.Gateway's richer Generate signature
// (C2's provider-fallback entrypoint) to the narrow reasoning.Generator
// interface the AI strategy needs: a single prompt in, a single text
// response out. This keeps aigateway.Gateway.Generate's own signature
// free to carry the fallback-attempt trail C2 requires, instead of forcing
// it to conform to the Reasoner's simpler contract.
type GatewayGenerator struct {
	gw                  *aigateway.Gateway
	model               string
	preferred           string
	fallbackOrder       []string
	maxFallbackAttempts int
}

// NewGatewayGenerator creates a GatewayGenerator that drives every AI
// strategy classification request through gw using the given default
// model and provider preference.
func NewGatewayGenerator(gw *aigateway.Gateway, model, preferred string, fallbackOrder []string, maxFallbackAttempts int) *GatewayGenerator {
	return &GatewayGenerator{
		gw:                  gw,
		model:               model,
		preferred:           preferred,
		fallbackOrder:       fallbackOrder,
		maxFallbackAttempts: maxFallbackAttempts,
	}
}

// Generate satisfies reasoning.Generator: it builds a single-message
// GenerateRequest from prompt and returns the first choice's message
// content.
func (g *GatewayGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := aigateway.GenerateRequest{
		Request: providers.Request{
			Model:    g.model,
			Messages: []providers.Message{{Role: providers.RoleUser, Content: prompt}},
		},
		Preferred:       g.preferred,
		FallbackOrder:   g.fallbackOrder,
		FallbackEnabled: len(g.fallbackOrder) > 0,
	}

	resp, err := g.gw.Generate(ctx, req, g.maxFallbackAttempts)
	if err != nil {
		return "", fmt.Errorf("orchestrator: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("orchestrator: generate: empty response from %s", resp.Provider)
	}
	return resp.Choices[0].Message.Content, nil
}
