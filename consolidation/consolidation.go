// Package consolidation implements the Consolidator (C9): merges the
// Executor's per-step StepResults into the single response returned to the
// caller, computing the agent_trail and the parallel/timing metadata from
// the StepResults' own timestamps rather than trusting the plan's declared
// intent.
package consolidation

import (
	"sort"

	"github.com/ferro-labs/agentrouter/execution"
)

// Error is one entry of the consolidated response's errors list.
type Error struct {
	Agent string `json:"agent,omitempty"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// Metadata is the consolidated response's _metadata block.
type Metadata struct {
	Count               int      `json:"count"`
	Successful          int      `json:"successful"`
	Failed              int      `json:"failed"`
	AgentTrail          []string `json:"agent_trail"`
	TotalExecutionMS    int64    `json:"total_execution_time_ms"`
	MaxExecutionMS      int64    `json:"max_execution_time_ms"`
	Parallel            bool     `json:"parallel"`
	Reasoning           string   `json:"reasoning,omitempty"`
	AgentsUsed          []string `json:"agents_used"`
}

// Response is the Consolidator's final output.
type Response struct {
	Success  bool                      `json:"success"`
	Data     map[string]map[string]any `json:"data"`
	Errors   []Error                   `json:"errors,omitempty"`
	Metadata Metadata                  `json:"_metadata"`
}

// Consolidate merges results (in the order the Executor returned them,
// which is plan.Steps order) plus the reasoning text that drove the plan
// into a single Response.
//
// agent_trail lists agents in the temporal order their steps started,
// which for a sequential plan matches declaration order and for a parallel
// plan reflects true start-time ordering rather than slice order.
//
// parallel is computed from actual overlap between any two successful
// steps' [started_at, finished_at) intervals. It does not simply echo the
// plan's declared Parallel flag, since a plan can declare parallel=true and
// still execute sequentially (e.g. max_parallel_agents=1).
func Consolidate(results []execution.StepResult, reasoningText string) Response {
	resp := Response{
		Success: true,
		Data:    make(map[string]map[string]any),
	}

	trail := make([]execution.StepResult, 0, len(results))
	for _, r := range results {
		trail = append(trail, r)
	}
	sort.SliceStable(trail, func(i, j int) bool { return trail[i].StartedAt.Before(trail[j].StartedAt) })

	agentsUsed := make([]string, 0, len(results))
	for _, r := range results {
		if r.Agent != "" {
			agentsUsed = append(agentsUsed, r.Agent)
		}
	}

	var totalMS, maxMS int64
	for _, r := range results {
		if r.Skipped {
			resp.Errors = append(resp.Errors, Error{Agent: r.Agent, Kind: "SkippedDueToUpstream", Error: r.Error})
			resp.Metadata.Failed++
			continue
		}
		dur := r.FinishedAt.Sub(r.StartedAt).Milliseconds()
		totalMS += dur
		if dur > maxMS {
			maxMS = dur
		}
		if r.Success {
			resp.Metadata.Successful++
			resp.Data[r.Agent] = r.Output
			continue
		}
		resp.Metadata.Failed++
		resp.Errors = append(resp.Errors, Error{Agent: r.Agent, Kind: errorKind(r), Error: r.Error})
	}

	resp.Metadata.Count = resp.Metadata.Successful + resp.Metadata.Failed
	resp.Metadata.TotalExecutionMS = totalMS
	resp.Metadata.MaxExecutionMS = maxMS
	resp.Metadata.Reasoning = reasoningText
	resp.Metadata.AgentsUsed = agentsUsed
	resp.Metadata.AgentTrail = trailNames(trail)
	resp.Metadata.Parallel = anyOverlap(results)

	if resp.Metadata.Failed > 0 && resp.Metadata.Successful == 0 {
		resp.Success = false
	}

	return resp
}

func trailNames(trail []execution.StepResult) []string {
	names := make([]string, 0, len(trail))
	for _, r := range trail {
		if r.Agent != "" {
			names = append(names, r.Agent)
		}
	}
	return names
}

// errorKind classifies a failed StepResult's error for the errors[].kind
// field.
func errorKind(r execution.StepResult) string {
	switch {
	case r.Skipped:
		return "SkippedDueToUpstream"
	case hasPrefix(r.Error, "HallucinationDetected"):
		return "HallucinationDetected"
	case hasPrefix(r.Error, "ValidationFailed"):
		return "ValidationFailed"
	default:
		return "AgentError"
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// anyOverlap reports whether any two successful steps' execution intervals
// overlapped in wall-clock time.
func anyOverlap(results []execution.StepResult) bool {
	var successful []execution.StepResult
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
		}
	}
	for i := 0; i < len(successful); i++ {
		for j := i + 1; j < len(successful); j++ {
			a, b := successful[i], successful[j]
			if a.StartedAt.Before(b.FinishedAt) && b.StartedAt.Before(a.FinishedAt) {
				return true
			}
		}
	}
	return false
}
