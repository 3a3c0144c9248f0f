package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ferro-labs/agentrouter/agents"
	"github.com/ferro-labs/agentrouter/internal/retry"
	"github.com/ferro-labs/agentrouter/planning"
	"github.com/ferro-labs/agentrouter/registry"
)

func newTestExecutor(t *testing.T, reg *registry.Registry, invokers map[string]agents.Invoker) *Executor {
	t.Helper()
	resolve := func(name string) (agents.Invoker, bool) {
		inv, ok := invokers[name]
		return inv, ok
	}
	breakers := retry.NewBreakerStore(5, 1, 30*time.Second)
	return New(reg, resolve, breakers, nil, nil, Config{MaxParallelAgents: 4, DefaultStepTimeout: time.Second})
}

func TestExecutor_ParallelSuccess(t *testing.T) {
	reg := registry.New()
	_ = reg.Register(registry.Descriptor{Name: "weather"})
	_ = reg.Register(registry.Descriptor{Name: "calculator"})

	invokers := map[string]agents.Invoker{
		"weather": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			return agents.Response{Success: true, Data: map[string]any{"temp": 72}}, nil
		}),
		"calculator": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			return agents.Response{Success: true, Data: map[string]any{"result": 4}}, nil
		}),
	}
	exec := newTestExecutor(t, reg, invokers)

	plan := &planning.Plan{
		Steps: []planning.Step{
			{Index: 0, Agent: "weather"},
			{Index: 1, Agent: "calculator"},
		},
		Parallel:    true,
		FailureMode: planning.BestEffort,
	}

	results, err := exec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("step %s failed: %s", r.Agent, r.Error)
		}
	}
}

func TestExecutor_SkipsDependentOnUpstreamFailure(t *testing.T) {
	reg := registry.New()
	_ = reg.Register(registry.Descriptor{Name: "search"})
	_ = reg.Register(registry.Descriptor{Name: "data_processor"})

	invokers := map[string]agents.Invoker{
		"search": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			return agents.Response{}, errors.New("boom")
		}),
		"data_processor": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			t.Error("data_processor should never run")
			return agents.Response{Success: true}, nil
		}),
	}
	exec := newTestExecutor(t, reg, invokers)

	plan := &planning.Plan{
		Steps: []planning.Step{
			{Index: 0, Agent: "search"},
			{Index: 1, Agent: "data_processor", DependsOn: []int{0}},
		},
		FailureMode: planning.BestEffort,
	}

	results, err := exec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].Success {
		t.Fatal("expected search to fail")
	}
	if !results[1].Skipped {
		t.Fatal("expected data_processor to be skipped")
	}
}

func TestExecutor_PropagatesValues(t *testing.T) {
	reg := registry.New()
	_ = reg.Register(registry.Descriptor{Name: "search"})
	_ = reg.Register(registry.Descriptor{Name: "data_processor", RequiredFields: []string{"values"}})

	var gotValues any
	invokers := map[string]agents.Invoker{
		"search": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			return agents.Response{Success: true, Data: map[string]any{
				"results": []any{
					map[string]any{"rating": 4.5},
					map[string]any{"rating": 3.0},
				},
			}}, nil
		}),
		"data_processor": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			gotValues = req.Parameters["values"]
			return agents.Response{Success: true, Data: map[string]any{"avg": 3.75}}, nil
		}),
	}
	exec := newTestExecutor(t, reg, invokers)

	plan := &planning.Plan{
		Steps: []planning.Step{
			{Index: 0, Agent: "search"},
			{
				Index:     1,
				Agent:     "data_processor",
				DependsOn: []int{0},
				Propagate: []planning.Propagation{{FromStep: 0, FromPath: "results[*].rating", ToParam: "values"}},
			},
		},
		FailureMode: planning.BestEffort,
	}

	results, err := exec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !results[1].Success {
		t.Fatalf("data_processor failed: %s", results[1].Error)
	}
	vals, ok := gotValues.([]any)
	if !ok || len(vals) != 2 {
		t.Fatalf("got propagated values %#v", gotValues)
	}
}

func TestExecutor_FailFastAbortsPlan(t *testing.T) {
	reg := registry.New()
	_ = reg.Register(registry.Descriptor{Name: "a"})
	_ = reg.Register(registry.Descriptor{Name: "b"})

	invokers := map[string]agents.Invoker{
		"a": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			return agents.Response{}, errors.New("boom")
		}),
		"b": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			<-ctx.Done()
			return agents.Response{}, ctx.Err()
		}),
	}
	exec := newTestExecutor(t, reg, invokers)

	plan := &planning.Plan{
		Steps: []planning.Step{
			{Index: 0, Agent: "a"},
			{Index: 1, Agent: "b"},
		},
		Parallel:    true,
		FailureMode: planning.FailFast,
	}

	_, err := exec.Run(context.Background(), plan)
	if err == nil {
		t.Fatal("expected fail_fast error")
	}
}

func TestExecutor_PermanentErrorIsNotRetried(t *testing.T) {
	reg := registry.New()
	_ = reg.Register(registry.Descriptor{Name: "flaky", MaxRetries: 3})

	var calls int
	invokers := map[string]agents.Invoker{
		"flaky": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			calls++
			return agents.Response{}, fmt.Errorf("rejected: %w", agents.ErrPermanent)
		}),
	}
	exec := newTestExecutor(t, reg, invokers)

	plan := &planning.Plan{
		Steps:       []planning.Step{{Index: 0, Agent: "flaky"}},
		FailureMode: planning.BestEffort,
	}

	results, err := exec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].Success {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt for a permanent error, got %d", calls)
	}
}

func TestExecutor_TransientErrorIsRetried(t *testing.T) {
	reg := registry.New()
	_ = reg.Register(registry.Descriptor{Name: "flaky", MaxRetries: 3})

	var calls int
	invokers := map[string]agents.Invoker{
		"flaky": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			calls++
			if calls < 3 {
				return agents.Response{}, errors.New("connection reset")
			}
			return agents.Response{Success: true, Data: map[string]any{"ok": true}}, nil
		}),
	}
	exec := newTestExecutor(t, reg, invokers)

	plan := &planning.Plan{
		Steps:       []planning.Step{{Index: 0, Agent: "flaky"}},
		FailureMode: planning.BestEffort,
	}

	results, err := exec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !results[0].Success {
		t.Fatalf("expected eventual success, got %s", results[0].Error)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts for a transient error, got %d", calls)
	}
}

func TestExecutor_PerStepTimeout(t *testing.T) {
	reg := registry.New()
	_ = reg.Register(registry.Descriptor{Name: "slow", TimeoutMS: 10, MaxRetries: 1})

	invokers := map[string]agents.Invoker{
		"slow": agents.InvokerFunc(func(ctx context.Context, req agents.Request) (agents.Response, error) {
			select {
			case <-time.After(time.Second):
				return agents.Response{Success: true}, nil
			case <-ctx.Done():
				return agents.Response{}, ctx.Err()
			}
		}),
	}
	exec := newTestExecutor(t, reg, invokers)

	plan := &planning.Plan{
		Steps:       []planning.Step{{Index: 0, Agent: "slow"}},
		FailureMode: planning.BestEffort,
	}

	results, err := exec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].Success {
		t.Fatal("expected timeout failure")
	}
}
