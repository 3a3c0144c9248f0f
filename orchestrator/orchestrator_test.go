package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/ferro-labs/agentrouter/agents"
	"github.com/ferro-labs/agentrouter/audit"
	"github.com/ferro-labs/agentrouter/execution"
	"github.com/ferro-labs/agentrouter/internal/retry"
	"github.com/ferro-labs/agentrouter/planning"
	"github.com/ferro-labs/agentrouter/reasoning"
	"github.com/ferro-labs/agentrouter/registry"
)

func newTestOrchestrator(t *testing.T, rules []reasoning.Rule, invokers map[string]agents.Invoker) *Orchestrator {
	t.Helper()

	reg := registry.New()
	for name := range invokers {
		if err := reg.Register(registry.Descriptor{Name: name, Capabilities: []string{name}}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	table := reasoning.NewRuleTable(rules)
	ruleStrategy := reasoning.NewRuleStrategy(table, 0.5)
	reasoner := reasoning.New(reasoning.Config{Mode: reasoning.ModeRule}, ruleStrategy, nil)

	resolver := NewInvokerResolver(reg)
	for name, inv := range invokers {
		resolver.Override(name, inv)
	}

	breakers := retry.NewBreakerStore(5, 1, 30*time.Second)
	auditLog := audit.New(nil)

	return New(reg, reasoner, resolver, breakers, nil, nil, auditLog,
		execution.Config{MaxParallelAgents: 4, DefaultStepTimeout: time.Second},
		planning.BestEffort)
}

func okInvoker(data map[string]any) agents.Invoker {
	return agents.InvokerFunc(func(_ context.Context, _ agents.Request) (agents.Response, error) {
		return agents.Response{Success: true, Data: data}, nil
	})
}

func TestHandleQuery_RoutesToAgent(t *testing.T) {
	rules := []reasoning.Rule{
		{Pattern: []string{"weather"}, Confidence: 0.9, Action: reasoning.RuleAction{
			Select: []string{"weather"},
		}},
	}
	o := newTestOrchestrator(t, rules, map[string]agents.Invoker{
		"weather": okInvoker(map[string]any{"forecast": "sunny"}),
	})

	resp, err := o.HandleQuery(context.Background(), Query{Text: "what is the weather today"})
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Data["weather"]["forecast"] != "sunny" {
		t.Errorf("got %+v", resp.Data)
	}
}

func TestHandleQuery_AccountSpecificRejected(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil)

	resp, err := o.HandleQuery(context.Background(), Query{Text: "what is my account balance"})
	if err != nil {
		t.Fatalf("HandleQuery: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected rejection, got %+v", resp)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Kind != "AccountSpecificRejected" {
		t.Errorf("got %+v", resp.Errors)
	}
	if len(resp.Metadata.AgentsUsed) != 0 {
		t.Errorf("expected no agents used, got %+v", resp.Metadata.AgentsUsed)
	}
}

func TestHandleQuery_NoRouteFoundReturnsErrNoRoute(t *testing.T) {
	o := newTestOrchestrator(t, nil, nil)

	resp, err := o.HandleQuery(context.Background(), Query{Text: "tell me a joke"})
	if err == nil {
		t.Fatal("expected ErrNoRoute")
	}
	if resp.Success {
		t.Errorf("expected failure response, got %+v", resp)
	}
}

func TestHandleQuery_ZeroDeadlineFailsImmediately(t *testing.T) {
	rules := []reasoning.Rule{
		{Pattern: []string{"weather"}, Confidence: 0.9, Action: reasoning.RuleAction{
			Select: []string{"weather"},
		}},
	}
	invoked := false
	o := newTestOrchestrator(t, rules, map[string]agents.Invoker{
		"weather": agents.InvokerFunc(func(_ context.Context, _ agents.Request) (agents.Response, error) {
			invoked = true
			return agents.Response{Success: true, Data: map[string]any{"forecast": "sunny"}}, nil
		}),
	})

	zero := 0
	resp, err := o.HandleQuery(context.Background(), Query{
		Text:    "what is the weather today",
		Options: Options{DeadlineMS: &zero},
	})
	if err != ErrDeadlineExceeded {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
	if resp.Success {
		t.Fatalf("expected failure response, got %+v", resp)
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Kind != "DeadlineExceeded" {
		t.Errorf("got %+v", resp.Errors)
	}
	if invoked {
		t.Error("expected the weather agent to never be invoked with a zero deadline")
	}
}

func TestHandleQuery_PartialFailureStillReturnsNilError(t *testing.T) {
	rules := []reasoning.Rule{
		{Pattern: []string{"report"}, Confidence: 0.9, Action: reasoning.RuleAction{
			Select: []string{"broken"},
		}},
	}
	o := newTestOrchestrator(t, rules, map[string]agents.Invoker{
		"broken": agents.InvokerFunc(func(_ context.Context, _ agents.Request) (agents.Response, error) {
			return agents.Response{Success: false, Error: "boom"}, nil
		}),
	})

	resp, err := o.HandleQuery(context.Background(), Query{Text: "generate the report"})
	if err != nil {
		t.Fatalf("expected nil error on partial failure, got %v", err)
	}
	if resp.Success {
		t.Errorf("expected success=false, got %+v", resp)
	}
}
