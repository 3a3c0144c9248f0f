package planning

import (
	"fmt"
	"regexp"

	"github.com/ferro-labs/agentrouter/reasoning"
	"github.com/ferro-labs/agentrouter/registry"
)

// refPattern recognizes "${agent.path}" parameter-template references to
// another listed agent's output, the same template shape
// reasoning.sanitizeParallel inspects to decide whether parallel execution
// is safe.
var refPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_\-]+)\.([^}]+)\}`)

// Planner builds an ExecutionPlan from a reasoning.Result.
type Planner struct {
	reg *registry.Registry
}

// New creates a Planner backed by reg, used to look up each selected
// agent's RequiredFields.
func New(reg *registry.Registry) *Planner {
	return &Planner{reg: reg}
}

// Plan transforms a reasoning.Result into an ExecutionPlan. failureMode is
// caller-supplied: the choice between fail_fast and best_effort is left to
// the caller.
func (p *Planner) Plan(result reasoning.Result, failureMode FailureMode) (*Plan, error) {
	plan := &Plan{Parallel: result.Parallel, FailureMode: failureMode}

	for i, agent := range result.Agents {
		step := Step{
			Index:  i,
			Agent:  agent,
			Params: cloneParams(result.Parameters[agent]),
		}
		plan.Steps = append(plan.Steps, step)
	}

	if result.Parallel {
		for i := range plan.Steps {
			plan.Steps[i].DependsOn = nil
		}
	} else {
		agentIndex := make(map[string]int, len(result.Agents))
		for i, a := range result.Agents {
			agentIndex[a] = i
		}
		for i := range plan.Steps {
			resolvePropagation(&plan.Steps[i], agentIndex)
			if i > 0 && len(plan.Steps[i].DependsOn) == 0 {
				// Sequential default: depend on the immediately preceding
				// step when no explicit reference names an earlier agent.
				plan.Steps[i].DependsOn = []int{i - 1}
			}
		}
	}

	if cyc := detectCycle(plan.Steps); cyc != nil {
		return nil, &PlanCycleError{Steps: cyc}
	}

	for i, step := range plan.Steps {
		desc, ok := p.reg.Get(step.Agent)
		if !ok {
			continue
		}
		for _, field := range desc.RequiredFields {
			if paramSatisfied(step, field) {
				continue
			}
			return nil, &MissingParamError{Step: i, Field: field}
		}
	}

	return plan, nil
}

// resolvePropagation scans a step's params for "${agent.path}" references
// to an earlier-listed agent, replacing the literal template with a
// Propagation entry and adding the dependency.
func resolvePropagation(step *Step, agentIndex map[string]int) {
	for param, v := range step.Params {
		s, ok := v.(string)
		if !ok {
			continue
		}
		m := refPattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		refAgent, path := m[1], m[2]
		idx, known := agentIndex[refAgent]
		if !known || idx == step.Index {
			continue
		}
		step.Propagate = append(step.Propagate, Propagation{FromStep: idx, FromPath: path, ToParam: param})
		alreadyDep := false
		for _, d := range step.DependsOn {
			if d == idx {
				alreadyDep = true
			}
		}
		if !alreadyDep {
			step.DependsOn = append(step.DependsOn, idx)
		}
		delete(step.Params, param)
	}
}

// paramSatisfied reports whether field will have a value by the time the
// step runs: either it's present literally in Params, or a Propagation
// targets it (to be filled once the predecessor completes).
func paramSatisfied(step Step, field string) bool {
	if _, ok := step.Params[field]; ok {
		return true
	}
	for _, p := range step.Propagate {
		if p.ToParam == field {
			return true
		}
	}
	return false
}

// detectCycle returns the set of step indices participating in a cycle, or
// nil if the depends_on relation is acyclic.
func detectCycle(steps []Step) []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(steps))
	byIndex := make(map[int]Step, len(steps))
	for _, s := range steps {
		byIndex[s.Index] = s
	}

	var cyclic []int
	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		for _, dep := range byIndex[i].DependsOn {
			switch color[dep] {
			case gray:
				cyclic = append(cyclic, i, dep)
				return true
			case white:
				if visit(dep) {
					cyclic = append(cyclic, i)
					return true
				}
			}
		}
		color[i] = black
		return false
	}

	for _, s := range steps {
		if color[s.Index] == white {
			if visit(s.Index) {
				return cyclic
			}
		}
	}
	return nil
}

func cloneParams(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate re-checks an already-built Plan's DAG invariant — exported so
// callers that mutate a Plan after Plan() (e.g. tests) can re-verify it.
func Validate(p *Plan) error {
	if cyc := detectCycle(p.Steps); cyc != nil {
		return &PlanCycleError{Steps: cyc}
	}
	for _, s := range p.Steps {
		for _, dep := range s.DependsOn {
			if dep >= s.Index {
				return fmt.Errorf("planning: step %d depends_on %d, which is not an earlier step", s.Index, dep)
			}
		}
	}
	return nil
}
