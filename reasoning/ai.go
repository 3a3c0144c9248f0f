package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ferro-labs/agentrouter/registry"
	"github.com/ferro-labs/agentrouter/validation"
)

// Generator abstracts the model-gateway call the AI strategy depends on.
// aigateway.Gateway.Generate satisfies this interface; the reasoning
// package accepts the interface rather than importing aigateway directly so
// it stays testable without a live gateway.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// resultSchema is the JSON-schema validation.Schema for the AI strategy's
// expected output shape, reused from the same jsonschema dependency as C8.
var resultSchema = validation.MustCompileSchema(`{
	"type": "object",
	"required": ["agents", "method", "confidence"],
	"properties": {
		"agents": {"type": "array", "items": {"type": "string"}},
		"parallel": {"type": "boolean"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"method": {"type": "string"},
		"reasoning_text": {"type": "string"},
		"rejection_reason": {"type": "string"},
		"parameters": {"type": "object"}
	}
}`)

// AIStrategy composes a classification prompt from the query and the
// registry's descriptors, sends it to a Generator, and parses/validates the
// response as a Result.
type AIStrategy struct {
	gen Generator
	reg *registry.Registry
}

// NewAIStrategy creates an AIStrategy.
func NewAIStrategy(gen Generator, reg *registry.Registry) *AIStrategy {
	return &AIStrategy{gen: gen, reg: reg}
}

// Evaluate sends the composed prompt to the Generator and parses the
// response. ok is false on any transport, parse, or schema-validation
// failure, letting the hybrid Reasoner fall through to reject.
func (s *AIStrategy) Evaluate(ctx context.Context, query string) (Result, bool) {
	prompt := s.buildPrompt(query)

	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return Result{}, false
	}

	jsonText := extractJSONObject(raw)
	if jsonText == "" {
		return Result{}, false
	}

	if err := resultSchema.ValidateJSON([]byte(jsonText)); err != nil {
		return Result{}, false
	}

	var parsed struct {
		Agents          []string                  `json:"agents"`
		Parallel        bool                       `json:"parallel"`
		Confidence      float64                    `json:"confidence"`
		Method          string                     `json:"method"`
		ReasoningText   string                     `json:"reasoning_text"`
		RejectionReason string                     `json:"rejection_reason"`
		Parameters      map[string]map[string]any  `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return Result{}, false
	}

	if parsed.RejectionReason != "" || len(parsed.Agents) == 0 {
		return rejectResult(orDefault(parsed.RejectionReason, RejectionNoRoute), parsed.ReasoningText), true
	}

	return Result{
		Agents:        parsed.Agents,
		Parameters:    parsed.Parameters,
		Parallel:      parsed.Parallel,
		Confidence:    parsed.Confidence,
		Method:        MethodAI,
		ReasoningText: parsed.ReasoningText,
	}, true
}

// buildPrompt composes the classification prompt: the query, a summary of
// every registered agent's capabilities, and an explicit instruction to
// return the ReasoningResult JSON shape.
func (s *AIStrategy) buildPrompt(query string) string {
	var b strings.Builder
	b.WriteString("You are an intent classifier and agent router.\n")
	b.WriteString("Classify the user query below as either a general query (route to one or more agents) ")
	b.WriteString("or an account-specific query (refers to the caller's own account/balance/transactions — reject it).\n\n")
	b.WriteString("Available agents:\n")
	for _, d := range s.reg.List() {
		fmt.Fprintf(&b, "- %s: %s (capabilities: %s)\n", d.Name, d.Description, strings.Join(d.Capabilities, ", "))
	}
	b.WriteString("\nQuery: ")
	b.WriteString(query)
	b.WriteString("\n\nRespond with a single JSON object matching this shape: ")
	b.WriteString(`{"agents": [...], "parallel": bool, "confidence": 0..1, "method": "ai", "reasoning_text": "...", "parameters": {...}, "rejection_reason": "..." }`)
	b.WriteString("\nIf the query is account-specific, set agents to [] and rejection_reason to \"account_specific\".\n")
	return b.String()
}

// extractJSONObject finds the first top-level {...} object in text, so
// conversational preamble/postamble from the model doesn't break parsing.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
