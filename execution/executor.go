// Package execution implements the Executor (C7): runs a planning.Plan as a
// structured-concurrency DAG, bounding fan-out with a semaphore, wrapping
// every agent invocation with retry and circuit-breaker protection, and
// enforcing per-step and per-query deadlines.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ferro-labs/agentrouter/agents"
	"github.com/ferro-labs/agentrouter/internal/circuitbreaker"
	"github.com/ferro-labs/agentrouter/internal/metrics"
	"github.com/ferro-labs/agentrouter/internal/retry"
	"github.com/ferro-labs/agentrouter/planning"
	"github.com/ferro-labs/agentrouter/registry"
	"github.com/ferro-labs/agentrouter/validation"
)

// ErrSkippedDueToUpstream is wrapped into a StepResult's Error when a step's
// dependency failed fatally.
var ErrSkippedDueToUpstream = errors.New("SkippedDueToUpstream")

// StepResult is the Executor's per-step output.
type StepResult struct {
	Agent      string         `json:"agent"`
	Success    bool           `json:"success"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Attempts   int            `json:"attempts"`
	Skipped    bool           `json:"skipped,omitempty"`
}

// Resolver looks up the Invoker backing a registered agent name. The
// Executor depends only on this function, not on how agents.Invoker values
// are constructed or held (in-process map, a service-discovery layer, ...).
type Resolver func(agentName string) (agents.Invoker, bool)

// Config bounds the Executor's concurrency and timeouts.
type Config struct {
	// MaxParallelAgents bounds concurrent step execution, default 8. A value
	// of 1 forces sequential execution even when the plan declares
	// parallel=true.
	MaxParallelAgents int
	// DefaultStepTimeout is used when a step's agent has no descriptor (or
	// no explicit timeout_ms), default 10s.
	DefaultStepTimeout time.Duration
}

// Executor is the Executor (C7).
type Executor struct {
	reg       *registry.Registry
	resolve   Resolver
	breakers  *retry.BreakerStore
	validator *validation.Validator
	schemas   map[string]*validation.Schema
	cfg       Config
}

// New creates an Executor. validator and schemas may be nil, in which case
// steps are accepted on transport success alone, with no semantic
// validation pass.
func New(reg *registry.Registry, resolve Resolver, breakers *retry.BreakerStore, validator *validation.Validator, schemas map[string]*validation.Schema, cfg Config) *Executor {
	if cfg.MaxParallelAgents <= 0 {
		cfg.MaxParallelAgents = 8
	}
	if cfg.DefaultStepTimeout <= 0 {
		cfg.DefaultStepTimeout = 10 * time.Second
	}
	return &Executor{reg: reg, resolve: resolve, breakers: breakers, validator: validator, schemas: schemas, cfg: cfg}
}

// Run executes every step of plan, respecting depends_on ordering, and
// returns one StepResult per step in plan.Steps order. The returned error is
// non-nil only when plan.FailureMode is FailFast and a step failed fatally;
// even then, results already collected (including SkippedDueToUpstream
// entries for steps that never ran) are returned alongside the error.
func (e *Executor) Run(ctx context.Context, plan *planning.Plan) ([]StepResult, error) {
	n := len(plan.Steps)
	results := make([]StepResult, n)
	done := make([]chan struct{}, n)
	for i := range done {
		done[i] = make(chan struct{})
	}

	sem := semaphore.NewWeighted(int64(e.cfg.MaxParallelAgents))
	g, gctx := errgroup.WithContext(ctx)

	for i := range plan.Steps {
		i := i
		step := plan.Steps[i]
		g.Go(func() error {
			defer close(done[i])

			for _, dep := range step.DependsOn {
				select {
				case <-done[dep]:
				case <-gctx.Done():
					results[i] = skippedResult(step, gctx.Err())
					return nil
				}
				if !results[dep].Success {
					results[i] = skippedResult(step, fmt.Errorf("%w: predecessor %q", ErrSkippedDueToUpstream, plan.Steps[dep].Agent))
					return nil
				}
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = skippedResult(step, err)
				return nil
			}
			defer sem.Release(1)

			res := e.runStep(gctx, step, results)
			results[i] = res
			if !res.Success && plan.FailureMode == planning.FailFast {
				return fmt.Errorf("execution: step %d (%s) failed: %s", i, step.Agent, res.Error)
			}
			return nil
		})
	}

	err := g.Wait()
	return results, err
}

func skippedResult(step planning.Step, cause error) StepResult {
	now := time.Now()
	metrics.AgentInvocations.WithLabelValues(step.Agent, "skipped").Inc()
	return StepResult{
		Agent:      step.Agent,
		Success:    false,
		Skipped:    true,
		Error:      cause.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
}

// runStep resolves parameters, invokes the agent (retry + breaker guarded),
// and runs validation, looping up to MaxRevalidationAttempts additional
// times when the validator flags hallucination and retry_on_hallucination
// is enabled.
func (e *Executor) runStep(ctx context.Context, step planning.Step, results []StepResult) (res StepResult) {
	started := time.Now()
	defer func() {
		metrics.StepDuration.WithLabelValues(step.Agent).Observe(time.Since(started).Seconds())
		outcome := "error"
		if res.Success {
			outcome = "success"
		}
		metrics.AgentInvocations.WithLabelValues(step.Agent, outcome).Inc()
	}()

	params, err := resolveParams(step, results)
	if err != nil {
		return StepResult{Agent: step.Agent, Success: false, Error: err.Error(), StartedAt: started, FinishedAt: time.Now()}
	}

	desc, hasDesc := e.reg.Get(step.Agent)
	timeout := e.cfg.DefaultStepTimeout
	if hasDesc && desc.TimeoutMS > 0 {
		timeout = desc.Timeout()
	}

	invoker, ok := e.resolve(step.Agent)
	if !ok {
		return StepResult{Agent: step.Agent, Success: false, Error: fmt.Sprintf("execution: no invoker registered for %q", step.Agent), StartedAt: started, FinishedAt: time.Now()}
	}

	breaker := e.breakers.Get(step.Agent)
	req := agents.Request{Parameters: params}

	retryOnHallucination := false
	maxRevalidation := 0
	if e.validator != nil {
		vc := e.validator.Config()
		retryOnHallucination = vc.RetryOnHallucination
		maxRevalidation = vc.MaxRevalidationAttempts
	}

	totalAttempts := 0
	var resp agents.Response
	var verdict validation.Verdict

	for revalidation := 0; ; revalidation++ {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		r, attempts, invokeErr := e.invokeOnce(stepCtx, step.Agent, breaker, invoker, req, desc.MaxRetries)
		cancel()
		totalAttempts += attempts

		if invokeErr != nil {
			return StepResult{Agent: step.Agent, Success: false, Error: invokeErr.Error(), StartedAt: started, FinishedAt: time.Now(), Attempts: totalAttempts}
		}
		resp = r
		if !resp.Success {
			return StepResult{Agent: step.Agent, Success: false, Error: resp.Error, Output: resp.Data, StartedAt: started, FinishedAt: time.Now(), Attempts: totalAttempts}
		}

		if e.validator == nil {
			return StepResult{Agent: step.Agent, Success: true, Output: resp.Data, StartedAt: started, FinishedAt: time.Now(), Attempts: totalAttempts}
		}

		verdict = e.validator.Validate(validation.Input{
			Output:         resp.Data,
			RequiredFields: desc.RequiredFields,
			IsAIGenerated:  true,
		}, e.schemas[step.Agent])

		if !verdict.HallucinationDetected || !retryOnHallucination || revalidation >= maxRevalidation {
			break
		}
	}

	if verdict.HallucinationDetected {
		return StepResult{
			Agent: step.Agent, Success: false,
			Error:      "HallucinationDetected: " + strings.Join(verdict.Issues, "; "),
			Output:     resp.Data,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Attempts:   totalAttempts,
		}
	}
	if !verdict.IsValid {
		return StepResult{
			Agent: step.Agent, Success: false,
			Error:      "ValidationFailed: " + strings.Join(verdict.Issues, "; "),
			Output:     resp.Data,
			StartedAt:  started,
			FinishedAt: time.Now(),
			Attempts:   totalAttempts,
		}
	}
	return StepResult{Agent: step.Agent, Success: true, Output: resp.Data, StartedAt: started, FinishedAt: time.Now(), Attempts: totalAttempts}
}

// invokeOnce guards a single call through the target's circuit breaker and
// a bounded retry loop. maxRetries mirrors registry.Descriptor.MaxRetries as
// a total-attempts count (retry.Policy.MaxAttempts); zero takes retry's
// default of 3. Only errors not wrapping agents.ErrPermanent are retried;
// an invoker that wraps a 4xx/auth failure in it fails on the first
// attempt.
func (e *Executor) invokeOnce(ctx context.Context, target string, breaker *circuitbreaker.CircuitBreaker, invoker agents.Invoker, req agents.Request, maxRetries int) (agents.Response, int, error) {
	defer func() { metrics.BreakerStateGauge.WithLabelValues(target).Set(float64(breaker.State())) }()

	if !breaker.Allow() {
		return agents.Response{}, 0, circuitbreaker.ErrCircuitOpen
	}

	policy := retry.Policy{
		MaxAttempts: maxRetries,
		Classify:    func(err error) bool { return !errors.Is(err, agents.ErrPermanent) },
	}
	var resp agents.Response
	attempts, err := retry.DoCounted(ctx, policy, func(ctx context.Context) error {
		r, ierr := invoker.Invoke(ctx, req)
		if ierr != nil {
			breaker.RecordFailure()
			return ierr
		}
		if !r.Success {
			breaker.RecordFailure()
			resp = r
			return nil // transport succeeded; a failed Response is not retried as transient
		}
		resp = r
		breaker.RecordSuccess()
		return nil
	})
	return resp, attempts, err
}

// resolveParams overlays step's literal Params with values propagated from
// already-completed predecessor steps.
func resolveParams(step planning.Step, results []StepResult) (map[string]any, error) {
	params := make(map[string]any, len(step.Params)+len(step.Propagate))
	for k, v := range step.Params {
		params[k] = v
	}
	for _, p := range step.Propagate {
		if p.FromStep < 0 || p.FromStep >= len(results) {
			return nil, fmt.Errorf("execution: propagation references out-of-range step %d", p.FromStep)
		}
		src := results[p.FromStep]
		if !src.Success {
			return nil, fmt.Errorf("execution: propagation source step %d (%s) did not succeed", p.FromStep, src.Agent)
		}
		val, err := ExtractPath(src.Output, p.FromPath)
		if err != nil {
			return nil, fmt.Errorf("execution: propagating %q from step %d: %w", p.ToParam, p.FromStep, err)
		}
		params[p.ToParam] = val
	}
	return params, nil
}
