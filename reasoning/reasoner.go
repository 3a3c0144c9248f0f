package reasoning

import (
	"context"
	"fmt"
	"strings"
)

// Mode selects which strategy (or strategies) the Reasoner uses.
type Mode string

// Mode constants.
const (
	ModeRule   Mode = "rule"
	ModeAI     Mode = "ai"
	ModeHybrid Mode = "hybrid"
)

// Config configures the Reasoner.
type Config struct {
	Mode               Mode
	RuleAcceptThreshold float64
}

// Reasoner implements C5: intent classification, rule strategy, AI
// strategy, and the hybrid composition of both.
type Reasoner struct {
	cfg  Config
	rule *RuleStrategy
	ai   *AIStrategy
}

// New creates a Reasoner. ai may be nil when reasoner.mode is "rule" and no
// AI fallback is configured.
func New(cfg Config, rule *RuleStrategy, ai *AIStrategy) *Reasoner {
	return &Reasoner{cfg: cfg, rule: rule, ai: ai}
}

// Reason classifies and routes query: intent classification first, then
// rule strategy, then AI strategy fallback, rejecting with NoRouteFound if
// nothing produces a usable result.
func (r *Reasoner) Reason(ctx context.Context, query string) Result {
	if IsAccountSpecific(query) {
		return rejectResult(RejectionAccountSpecific,
			"query combines a possessive indicator with a financial term")
	}

	var result Result
	var ok bool

	switch r.cfg.Mode {
	case ModeRule:
		result, ok = r.rule.Evaluate(query)
	case ModeAI:
		if r.ai != nil {
			result, ok = r.ai.Evaluate(ctx, query)
		}
	default: // hybrid, and the zero value
		if result, ok = r.rule.Evaluate(query); !ok && r.ai != nil {
			result, ok = r.ai.Evaluate(ctx, query)
		} else if ok {
			result.Method = MethodHybrid
		}
	}

	if !ok {
		return rejectResult(RejectionNoRoute, "no rule or AI strategy produced an acceptable result")
	}
	if result.IsReject() {
		return result
	}

	return sanitizeParallel(result)
}

// sanitizeParallel enforces the invariant that parallel=true is allowed only
// when no listed agent's parameters reference another listed agent's
// output. Cross-agent parameter references are written as
// "${otherAgent.field}" by rule templates and the AI strategy; their
// presence forces sequential execution regardless of what the strategy
// declared.
func sanitizeParallel(r Result) Result {
	if !r.Parallel {
		return r
	}
	for agent, params := range r.Parameters {
		for _, v := range params {
			s, isStr := v.(string)
			if !isStr {
				continue
			}
			for _, other := range r.Agents {
				if other == agent {
					continue
				}
				if strings.Contains(s, fmt.Sprintf("${%s.", other)) {
					r.Parallel = false
					return r
				}
			}
		}
	}
	return r
}
