package aigateway

import (
	"context"
	"errors"
	"testing"

	"github.com/ferro-labs/agentrouter/providers"
)

type stubProvider struct {
	name    string
	fail    bool
	model   string
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Complete(ctx context.Context, req providers.Request) (*providers.Response, error) {
	if s.fail {
		return nil, context.DeadlineExceeded
	}
	return &providers.Response{Model: req.Model, Choices: []providers.Choice{{Message: providers.Message{Role: "assistant", Content: "ok"}}}}, nil
}
func (s *stubProvider) SupportedModels() []string    { return []string{s.model} }
func (s *stubProvider) SupportsModel(m string) bool  { return m == s.model }
func (s *stubProvider) Models() []providers.ModelInfo { return nil }

func TestAttemptOrder_DedupPreservesInsertionOrder(t *testing.T) {
	req := GenerateRequest{
		Preferred:       "b",
		FallbackOrder:   []string{"a", "b", "c"},
		FallbackEnabled: true,
	}
	got := attemptOrder(req, 0)
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAttemptOrder_FallbackDisabledOnlyPreferred(t *testing.T) {
	req := GenerateRequest{Preferred: "a", FallbackOrder: []string{"b", "c"}}
	got := attemptOrder(req, 0)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("got %v", got)
	}
}

func TestAttemptOrder_TruncatesToMaxFallbackAttempts(t *testing.T) {
	req := GenerateRequest{Preferred: "a", FallbackOrder: []string{"b", "c", "d"}, FallbackEnabled: true}
	got := attemptOrder(req, 2)
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestGateway_Generate_FallsThroughToSecondProvider(t *testing.T) {
	g, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	g.RegisterProvider(&stubProvider{name: "a", fail: true, model: "m"})
	g.RegisterProvider(&stubProvider{name: "b", fail: false, model: "m"})

	req := GenerateRequest{
		Request:         providers.Request{Model: "m", Messages: []providers.Message{{Role: "user", Content: "hi"}}},
		Preferred:       "a",
		FallbackOrder:   []string{"b"},
		FallbackEnabled: true,
	}
	resp, err := g.Generate(context.Background(), req, 5)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Provider != "b" {
		t.Errorf("got provider %q, want b", resp.Provider)
	}
	if len(resp.Attempts) != 2 || resp.Attempts[0].OK || !resp.Attempts[1].OK {
		t.Errorf("got attempts %+v", resp.Attempts)
	}
}

func TestGateway_Generate_AllProvidersFailed(t *testing.T) {
	g, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	g.RegisterProvider(&stubProvider{name: "a", fail: true, model: "m"})

	req := GenerateRequest{
		Request:   providers.Request{Model: "m", Messages: []providers.Message{{Role: "user", Content: "hi"}}},
		Preferred: "a",
	}
	_, err = g.Generate(context.Background(), req, 5)
	if err == nil {
		t.Fatal("expected AllProvidersFailed")
	}
	var apf *AllProvidersFailed
	if !errors.As(err, &apf) {
		t.Fatalf("got %v, want *AllProvidersFailed", err)
	}
	if len(apf.Attempts) != 1 {
		t.Errorf("got %+v", apf.Attempts)
	}
}
