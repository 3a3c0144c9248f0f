// Package planning implements the Planner (C6): transforms a
// reasoning.Result into an ExecutionPlan DAG, resolving parameters via the
// reasoner's template overlaid with propagation rules, and rejecting plans
// whose depends_on relation contains a cycle.
package planning

import (
	"fmt"
)

// FailureMode selects how the Executor reacts to a fatal step failure; the
// caller chooses between aborting the whole plan and continuing best-effort.
type FailureMode string

// FailureMode constants.
const (
	FailFast   FailureMode = "fail_fast"
	BestEffort FailureMode = "best_effort"
)

// Propagation describes how output fields of a predecessor step feed
// parameters of a dependent step, via JSON-pointer-like paths (e.g.
// "results[*].title").
type Propagation struct {
	// FromStep is the index of the predecessor step whose output supplies
	// the value.
	FromStep int
	// FromPath is a JSON-pointer-like path into the predecessor's output.
	FromPath string
	// ToParam is the parameter name on the dependent step that receives
	// the extracted value.
	ToParam string
}

// Step is one agent invocation with resolved parameters inside a Plan.
type Step struct {
	Index       int
	Agent       string
	Params      map[string]any
	DependsOn   []int
	Propagate   []Propagation
}

// Plan is the DAG of steps produced by the Planner.
type Plan struct {
	Steps       []Step
	Parallel    bool
	FailureMode FailureMode
}

// MissingParamError reports a planning error: a step is missing a required
// parameter after overlaying the reasoner's template and any propagated
// values.
type MissingParamError struct {
	Step  int
	Field string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("planning: step %d missing required param %q", e.Step, e.Field)
}

// PlanCycleError reports that the requested depends_on relation contains a
// cycle.
type PlanCycleError struct {
	Steps []int
}

func (e *PlanCycleError) Error() string {
	return fmt.Sprintf("planning: cycle detected among steps %v", e.Steps)
}

// transitiveClosure returns the set of step indices downstream of start:
// the steps that depend on it directly or transitively. start itself is
// not included unless it lies on a cycle.
func (p Plan) transitiveClosure(start int) map[int]struct{} {
	closure := make(map[int]struct{})
	var visit func(i int)
	visit = func(i int) {
		for _, s := range p.Steps {
			for _, dep := range s.DependsOn {
				if dep == i {
					if _, seen := closure[s.Index]; !seen {
						closure[s.Index] = struct{}{}
						visit(s.Index)
					}
				}
			}
		}
	}
	visit(start)
	return closure
}
