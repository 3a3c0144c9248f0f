package consolidation

import (
	"testing"
	"time"

	"github.com/ferro-labs/agentrouter/execution"
)

func at(seconds int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, seconds, 0, time.UTC)
}

func TestConsolidate_AllSuccessSequential(t *testing.T) {
	results := []execution.StepResult{
		{Agent: "search", Success: true, Output: map[string]any{"x": 1}, StartedAt: at(0), FinishedAt: at(1)},
		{Agent: "data_processor", Success: true, Output: map[string]any{"y": 2}, StartedAt: at(1), FinishedAt: at(2)},
	}
	resp := Consolidate(results, "sequential plan")
	if !resp.Success {
		t.Fatal("expected overall success")
	}
	if resp.Metadata.Count != 2 || resp.Metadata.Successful != 2 || resp.Metadata.Failed != 0 {
		t.Errorf("got metadata %+v", resp.Metadata)
	}
	if resp.Metadata.Parallel {
		t.Error("sequential non-overlapping steps should not be marked parallel")
	}
	if len(resp.Metadata.AgentTrail) != 2 || resp.Metadata.AgentTrail[0] != "search" {
		t.Errorf("got agent_trail %v", resp.Metadata.AgentTrail)
	}
}

func TestConsolidate_OverlappingStepsMarkedParallel(t *testing.T) {
	results := []execution.StepResult{
		{Agent: "weather", Success: true, Output: map[string]any{}, StartedAt: at(0), FinishedAt: at(5)},
		{Agent: "calculator", Success: true, Output: map[string]any{}, StartedAt: at(1), FinishedAt: at(3)},
	}
	resp := Consolidate(results, "")
	if !resp.Metadata.Parallel {
		t.Error("expected overlapping intervals to be marked parallel")
	}
}

func TestConsolidate_DeclaredParallelButRanSequentially(t *testing.T) {
	// Even if the plan declared parallel=true, max_parallel_agents=1 can
	// force true sequential execution; Consolidate must reflect reality.
	results := []execution.StepResult{
		{Agent: "a", Success: true, Output: map[string]any{}, StartedAt: at(0), FinishedAt: at(1)},
		{Agent: "b", Success: true, Output: map[string]any{}, StartedAt: at(1), FinishedAt: at(2)},
	}
	resp := Consolidate(results, "")
	if resp.Metadata.Parallel {
		t.Error("non-overlapping steps must not be marked parallel regardless of plan intent")
	}
}

func TestConsolidate_PartialFailure(t *testing.T) {
	results := []execution.StepResult{
		{Agent: "search", Success: true, Output: map[string]any{"ok": true}, StartedAt: at(0), FinishedAt: at(1)},
		{Agent: "broken", Success: false, Error: "boom", StartedAt: at(0), FinishedAt: at(1)},
	}
	resp := Consolidate(results, "")
	if !resp.Success {
		t.Error("partial failure with at least one success should still report success:true")
	}
	if resp.Metadata.Failed != 1 || resp.Metadata.Successful != 1 {
		t.Errorf("got metadata %+v", resp.Metadata)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Kind != "AgentError" {
		t.Errorf("got errors %+v", resp.Errors)
	}
}

func TestConsolidate_AllFailed(t *testing.T) {
	results := []execution.StepResult{
		{Agent: "a", Success: false, Error: "boom", StartedAt: at(0), FinishedAt: at(1)},
	}
	resp := Consolidate(results, "")
	if resp.Success {
		t.Error("expected success:false when nothing succeeded")
	}
}

func TestConsolidate_SkippedStepReportsUpstreamKind(t *testing.T) {
	results := []execution.StepResult{
		{Agent: "a", Success: false, Error: "boom", StartedAt: at(0), FinishedAt: at(1)},
		{Agent: "b", Skipped: true, Error: "SkippedDueToUpstream: predecessor \"a\"", StartedAt: at(1), FinishedAt: at(1)},
	}
	resp := Consolidate(results, "")
	var found bool
	for _, e := range resp.Errors {
		if e.Agent == "b" && e.Kind == "SkippedDueToUpstream" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a SkippedDueToUpstream error entry, got %+v", resp.Errors)
	}
	if resp.Metadata.Count != 2 {
		t.Errorf("got count %d", resp.Metadata.Count)
	}
}
