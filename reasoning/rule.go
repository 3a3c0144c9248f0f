package reasoning

import (
	"sort"
	"strings"
)

// RuleAction is what a matched rule produces: either a selection of agents
// or an outright rejection.
type RuleAction struct {
	// Select, when non-empty, names the agents to invoke.
	Select []string
	// Parallel is carried into the Result when Select is used.
	Parallel bool
	// ParamsTemplate seeds Result.Parameters per agent when Select is used.
	ParamsTemplate map[string]map[string]any
	// Reject, when set, short-circuits to a reject Result with this reason.
	Reject string
}

// Rule is one entry of the rule table: a query pattern, the action to take
// on match, and a declared confidence used to break ties.
type Rule struct {
	// Pattern is matched against the tokenized, lower-cased query text.
	// Matching is substring-of-token-stream: every token in Pattern must
	// appear, in order, somewhere in the query's token stream.
	Pattern    []string
	Action     RuleAction
	Confidence float64
}

// RuleTable is an ordered collection of Rules, matched in declaration order
// with ties between matches broken by (a) higher confidence, then (b)
// earlier rule order.
type RuleTable struct {
	rules []Rule
}

// NewRuleTable builds a RuleTable from rules loaded at startup (e.g. parsed
// from a rules.yaml file by the caller).
func NewRuleTable(rules []Rule) *RuleTable {
	return &RuleTable{rules: rules}
}

// Len reports how many rules are loaded.
func (t *RuleTable) Len() int { return len(t.rules) }

// Match finds the best matching rule for a tokenized query and returns its
// action and confidence. ok is false when no rule matches.
func (t *RuleTable) Match(query string) (RuleAction, float64, bool) {
	tokens := tokenize(query)

	type candidate struct {
		order      int
		confidence float64
		action     RuleAction
	}
	var candidates []candidate

	for i, r := range t.rules {
		if patternMatches(tokens, r.Pattern) {
			candidates = append(candidates, candidate{order: i, confidence: r.Confidence, action: r.Action})
		}
	}
	if len(candidates) == 0 {
		return RuleAction{}, 0, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].confidence != candidates[j].confidence {
			return candidates[i].confidence > candidates[j].confidence
		}
		return candidates[i].order < candidates[j].order
	})

	best := candidates[0]
	return best.action, best.confidence, true
}

// patternMatches reports whether every word of pattern appears, in order, as
// a subsequence of tokens.
func patternMatches(tokens, pattern []string) bool {
	if len(pattern) == 0 {
		return false
	}
	i := 0
	for _, tok := range tokens {
		if i < len(pattern) && tok == strings.ToLower(pattern[i]) {
			i++
		}
		if i == len(pattern) {
			return true
		}
	}
	return false
}

// RuleStrategy wraps a RuleTable with an accept-threshold policy: confidence
// >= threshold accepts and stops, otherwise the caller (the hybrid
// Reasoner) falls through to the AI strategy.
type RuleStrategy struct {
	table     *RuleTable
	threshold float64
}

// NewRuleStrategy creates a RuleStrategy with the given acceptance
// threshold.
func NewRuleStrategy(table *RuleTable, threshold float64) *RuleStrategy {
	return &RuleStrategy{table: table, threshold: threshold}
}

// Evaluate runs the rule table against query. ok is false when no rule
// matched or the match's confidence is below the acceptance threshold.
func (s *RuleStrategy) Evaluate(query string) (Result, bool) {
	action, confidence, matched := s.table.Match(query)
	if !matched || confidence < s.threshold {
		return Result{}, false
	}

	if action.Reject != "" {
		return rejectResult(action.Reject, "rule match: "+action.Reject), true
	}

	return Result{
		Agents:        action.Select,
		Parameters:    action.ParamsTemplate,
		Parallel:      action.Parallel,
		Confidence:    confidence,
		Method:        MethodRule,
		ReasoningText: "matched rule table entry",
	}, true
}
