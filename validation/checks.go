package validation

import (
	"fmt"
	"strings"
)

// RequiredFieldsCheck verifies every declared required field is present and
// non-empty in the output.
type RequiredFieldsCheck struct{}

// Name implements Check.
func (RequiredFieldsCheck) Name() string { return "required_fields" }

// Run implements Check.
func (RequiredFieldsCheck) Run(in Input) Contribution {
	var missing []string
	for _, field := range in.RequiredFields {
		v, ok := in.Output[field]
		if !ok || isEmptyValue(v) {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return Contribution{Confidence: 1.0}
	}
	issues := make([]string, len(missing))
	for i, f := range missing {
		issues[i] = fmt.Sprintf("missing required field: %s", f)
	}
	return Contribution{Issues: issues, Confidence: 0.0}
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}

// ConfidenceThresholdCheck flags hallucination when the output carries its
// own self-reported "confidence" field below threshold.
type ConfidenceThresholdCheck struct {
	Threshold float64
}

// Name implements Check.
func (ConfidenceThresholdCheck) Name() string { return "confidence_threshold" }

// Run implements Check.
func (c ConfidenceThresholdCheck) Run(in Input) Contribution {
	raw, ok := in.Output["confidence"]
	if !ok {
		return Contribution{Confidence: 1.0}
	}
	score, ok := toFloat(raw)
	if !ok {
		return Contribution{Confidence: 1.0}
	}
	if score < c.Threshold {
		return Contribution{
			Issues:        []string{fmt.Sprintf("self-reported confidence %.2f below threshold %.2f", score, c.Threshold)},
			Confidence:    score,
			Hallucination: true,
		}
	}
	return Contribution{Confidence: score}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// ForbiddenPatternCheck flags output whose textual fields contain any
// configured forbidden substring (case-insensitive) — e.g. leaked internal
// markers, placeholder text left by a misbehaving agent.
type ForbiddenPatternCheck struct {
	Patterns []string
}

// Name implements Check.
func (ForbiddenPatternCheck) Name() string { return "forbidden_pattern" }

// Run implements Check.
func (c ForbiddenPatternCheck) Run(in Input) Contribution {
	text := strings.ToLower(flattenText(in.Output))
	var hits []string
	for _, p := range c.Patterns {
		if p == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(p)) {
			hits = append(hits, fmt.Sprintf("forbidden pattern matched: %q", p))
		}
	}
	if len(hits) == 0 {
		return Contribution{Confidence: 1.0}
	}
	return Contribution{Issues: hits, Confidence: 0.0, Hallucination: true}
}

// AnchoredClaimCheck cross-checks AI-generated content against the provided
// context: every sentence-level claim in the output's textual fields is
// expected to share a meaningful token with the context text. This is a
// pluggable heuristic, not a fixed formula, so operators can swap in a
// stricter or looser anchoring rule without changing the Validator itself.
type AnchoredClaimCheck struct {
	// MinOverlapRatio is the minimum fraction of output sentences that must
	// share at least one significant token with ContextText. Defaults to
	// 0.5 when zero.
	MinOverlapRatio float64
}

// Name implements Check.
func (AnchoredClaimCheck) Name() string { return "anchored_claim" }

// Run implements Check.
func (c AnchoredClaimCheck) Run(in Input) Contribution {
	if !in.IsAIGenerated || in.ContextText == "" {
		return Contribution{Confidence: 1.0}
	}

	threshold := c.MinOverlapRatio
	if threshold <= 0 {
		threshold = 0.5
	}

	text := flattenText(in.Output)
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return Contribution{Confidence: 1.0}
	}

	contextTokens := significantTokens(in.ContextText)
	anchored := 0
	for _, sent := range sentences {
		if hasOverlap(significantTokens(sent), contextTokens) {
			anchored++
		}
	}
	ratio := float64(anchored) / float64(len(sentences))
	if ratio < threshold {
		return Contribution{
			Issues:        []string{fmt.Sprintf("only %d/%d claims anchored in provided context", anchored, len(sentences))},
			Confidence:    ratio,
			Hallucination: true,
		}
	}
	return Contribution{Confidence: ratio}
}

func flattenText(output map[string]any) string {
	var b strings.Builder
	for _, v := range output {
		if s, ok := v.(string); ok {
			b.WriteString(s)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func significantTokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?;:\"'()[]")
		if len(tok) > 3 { // drop short stop-word-ish tokens
			out[tok] = struct{}{}
		}
	}
	return out
}

func hasOverlap(a, b map[string]struct{}) bool {
	for t := range a {
		if _, ok := b[t]; ok {
			return true
		}
	}
	return false
}
