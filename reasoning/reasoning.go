// Package reasoning implements the Reasoner (C5): a rule-based strategy, an
// AI-based strategy backed by the model gateway, intent classification for
// account-specific queries, and a hybrid mode composing both.
package reasoning

// Method records which strategy produced a Result.
type Method string

// Method constants.
const (
	MethodRule   Method = "rule"
	MethodAI     Method = "ai"
	MethodHybrid Method = "hybrid"
	MethodReject Method = "reject"
)

// RejectionAccountSpecific is the fixed rejection reason used when the
// intent classifier detects a personal-account query.
const RejectionAccountSpecific = "account_specific"

// RejectionNoRoute is the fixed rejection reason used when neither the rule
// nor the AI strategy produced an acceptable result.
const RejectionNoRoute = "no_route_found"

// Result is the Reasoner's output.
type Result struct {
	Agents           []string                  `json:"agents"`
	Parameters       map[string]map[string]any `json:"parameters"`
	Parallel         bool                      `json:"parallel"`
	Confidence       float64                   `json:"confidence"`
	Method           Method                    `json:"method"`
	ReasoningText    string                    `json:"reasoning_text"`
	RejectionReason  string                    `json:"rejection_reason,omitempty"`
}

// IsReject reports whether the Reasoner rejected the query: true iff Method
// is reject and Agents is empty.
func (r Result) IsReject() bool {
	return r.Method == MethodReject
}

// rejectResult builds a reject Result, keeping the agents/method/reason
// invariant in one place.
func rejectResult(reason, text string) Result {
	return Result{
		Agents:          nil,
		Method:          MethodReject,
		Confidence:      1.0,
		ReasoningText:   text,
		RejectionReason: reason,
	}
}
