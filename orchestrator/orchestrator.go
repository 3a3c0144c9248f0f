package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ferro-labs/agentrouter/audit"
	"github.com/ferro-labs/agentrouter/consolidation"
	"github.com/ferro-labs/agentrouter/execution"
	"github.com/ferro-labs/agentrouter/internal/retry"
	"github.com/ferro-labs/agentrouter/planning"
	"github.com/ferro-labs/agentrouter/reasoning"
	"github.com/ferro-labs/agentrouter/registry"
	"github.com/ferro-labs/agentrouter/validation"
)

// ErrNoRoute is returned when the Reasoner rejects a query with
// RejectionNoRoute, surfaced by HTTP callers as a 503.
var ErrNoRoute = errors.New("orchestrator: no agent could be selected")

// ErrDeadlineExceeded is returned when a query's options.deadline_ms (or the
// caller's own context deadline) elapses before the plan finished running,
// surfaced by HTTP callers as 408.
var ErrDeadlineExceeded = errors.New("orchestrator: query deadline exceeded")

// Options mirrors the inbound API's optional per-query overrides (the
// POST /query body's "options" object). DeadlineMS is a pointer so an
// explicit 0 ("fail immediately, run nothing") is distinguishable from the
// field being omitted entirely.
type Options struct {
	ReasoningMode string `json:"reasoning_mode,omitempty"`
	MaxParallel   int    `json:"max_parallel,omitempty"`
	DeadlineMS    *int   `json:"deadline_ms,omitempty"`
}

// Query is one inbound request to HandleQuery (the POST /query body, plus
// the server-assigned ID and receipt timestamp the audit trail keys off
// of).
type Query struct {
	ID         string
	Text       string
	SessionID  string
	Options    Options
	ReceivedAt time.Time
}

// Orchestrator wires the Agent Orchestration Core's components (C4-C10)
// into the single HandleQuery entrypoint, the same way aigateway.Gateway
// wires providers, strategies, and plugins behind Route.
type Orchestrator struct {
	reg         *registry.Registry
	reasoner    *reasoning.Reasoner
	planner     *planning.Planner
	resolver    *InvokerResolver
	breakers    *retry.BreakerStore
	validator   *validation.Validator
	schemas     map[string]*validation.Schema
	auditLog    *audit.Logger
	execCfg     execution.Config
	failureMode planning.FailureMode
}

// New creates an Orchestrator from its already-constructed dependencies.
// validator, schemas, and auditLog may be nil; a nil auditLog is replaced
// by audit.New(nil), which keeps traces in memory without a sink.
func New(
	reg *registry.Registry,
	reasoner *reasoning.Reasoner,
	resolver *InvokerResolver,
	breakers *retry.BreakerStore,
	validator *validation.Validator,
	schemas map[string]*validation.Schema,
	auditLog *audit.Logger,
	execCfg execution.Config,
	failureMode planning.FailureMode,
) *Orchestrator {
	if failureMode == "" {
		failureMode = planning.BestEffort
	}
	if auditLog == nil {
		auditLog = audit.New(nil)
	}
	return &Orchestrator{
		reg:         reg,
		reasoner:    reasoner,
		planner:     planning.New(reg),
		resolver:    resolver,
		breakers:    breakers,
		validator:   validator,
		schemas:     schemas,
		auditLog:    auditLog,
		execCfg:     execCfg,
		failureMode: failureMode,
	}
}

// HandleQuery classifies q.Text, plans and runs the resulting agent DAG,
// and returns the Consolidator's response. ErrNoRoute (mapped to 503) and
// ErrDeadlineExceeded (mapped to 408) are returned together with a
// Response. A plan that cannot be built (a missing required parameter or a
// depends_on cycle) returns a PlanningError Response with the wrapped
// planning error, and a failure to open the audit trace returns a nil
// Response and an error. Any other failure — a rejected account-specific
// query, a partially or fully failed plan — is reported inside the
// returned Response with a nil error, so a caller gets a 200 with the
// failure visible in the body.
func (o *Orchestrator) HandleQuery(ctx context.Context, q Query) (*consolidation.Response, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.ReceivedAt.IsZero() {
		q.ReceivedAt = time.Now().UTC()
	}

	if q.Options.DeadlineMS != nil {
		// A deadline of exactly 0 means the query has no time budget at
		// all: fail immediately, before the reasoner or planner run, and
		// without ever invoking a step.
		if *q.Options.DeadlineMS == 0 {
			trace, err := o.auditLog.Open(q.ID, q.Text)
			if err != nil {
				return nil, fmt.Errorf("orchestrator: open audit trace: %w", err)
			}
			resp := deadlineExceededResponse()
			o.closeTrace(ctx, trace, resp)
			return resp, ErrDeadlineExceeded
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*q.Options.DeadlineMS)*time.Millisecond)
		defer cancel()
	}

	trace, err := o.auditLog.Open(q.ID, q.Text)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open audit trace: %w", err)
	}

	result := o.reasoner.Reason(ctx, q.Text)
	o.auditLog.Event(trace, audit.EventReasoningDecision, map[string]any{
		"method":     string(result.Method),
		"confidence": result.Confidence,
		"agents":     result.Agents,
	})

	if result.IsReject() {
		resp := rejectionResponse(result)
		o.closeTrace(ctx, trace, resp)
		if result.RejectionReason == reasoning.RejectionNoRoute {
			return resp, ErrNoRoute
		}
		return resp, nil
	}

	plan, err := o.planner.Plan(result, o.failureMode)
	if err != nil {
		o.auditLog.Event(trace, audit.EventError, map[string]any{"error": err.Error()})
		resp := planningErrorResponse(result, err)
		o.closeTrace(ctx, trace, resp)
		return resp, fmt.Errorf("orchestrator: %w", err)
	}

	exec := o.executorFor(q.Options)
	results, runErr := exec.Run(ctx, plan)

	for _, r := range results {
		kind := audit.EventAgentInteraction
		if r.Skipped {
			kind = audit.EventError
		}
		o.auditLog.Event(trace, kind, map[string]any{
			"agent":   r.Agent,
			"success": r.Success,
			"error":   r.Error,
		})
	}

	resp := consolidation.Consolidate(results, result.ReasoningText)
	o.closeTrace(ctx, trace, resp)

	if ctx.Err() == context.DeadlineExceeded {
		return resp, ErrDeadlineExceeded
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return resp, nil
	}
	return resp, nil
}

// executorFor builds the Executor used for one query, overriding
// MaxParallelAgents when the caller's options request a different bound
// than the orchestrator's configured default.
func (o *Orchestrator) executorFor(opts Options) *execution.Executor {
	cfg := o.execCfg
	if opts.MaxParallel > 0 {
		cfg.MaxParallelAgents = opts.MaxParallel
	}
	return execution.New(o.reg, o.resolver.Resolve, o.breakers, o.validator, o.schemas, cfg)
}

func (o *Orchestrator) closeTrace(ctx context.Context, trace *audit.Trace, resp *consolidation.Response) {
	_ = o.auditLog.Close(ctx, trace, map[string]any{
		"success": resp.Success,
		"errors":  resp.Errors,
	})
}

// rejectionResponse builds the Consolidator-shaped response for a rejected
// query: success:false, an errors entry naming the rejection kind, and no
// agents used.
func rejectionResponse(result reasoning.Result) *consolidation.Response {
	kind := "AccountSpecificRejected"
	if result.RejectionReason == reasoning.RejectionNoRoute {
		kind = "NoRouteFound"
	}
	return &consolidation.Response{
		Success: false,
		Data:    map[string]map[string]any{},
		Errors:  []consolidation.Error{{Kind: kind, Error: result.ReasoningText}},
		Metadata: consolidation.Metadata{
			AgentTrail: []string{},
			AgentsUsed: []string{},
			Reasoning:  result.ReasoningText,
		},
	}
}

// planningErrorResponse builds the response for a query that classified
// successfully but whose plan could not be built (a missing required
// parameter or a depends_on cycle).
func planningErrorResponse(result reasoning.Result, planErr error) *consolidation.Response {
	return &consolidation.Response{
		Success: false,
		Data:    map[string]map[string]any{},
		Errors:  []consolidation.Error{{Kind: "PlanningError", Error: planErr.Error()}},
		Metadata: consolidation.Metadata{
			AgentTrail: []string{},
			AgentsUsed: append([]string(nil), result.Agents...),
			Reasoning:  result.ReasoningText,
		},
	}
}

// deadlineExceededResponse builds the response for a query submitted with
// an explicit zero-millisecond deadline: no time budget for any step, so
// the query fails before the reasoner, planner, or executor ever run.
func deadlineExceededResponse() *consolidation.Response {
	return &consolidation.Response{
		Success: false,
		Data:    map[string]map[string]any{},
		Errors:  []consolidation.Error{{Kind: "DeadlineExceeded", Error: "query deadline of 0ms elapsed before execution began"}},
		Metadata: consolidation.Metadata{
			AgentTrail: []string{},
			AgentsUsed: []string{},
		},
	}
}
