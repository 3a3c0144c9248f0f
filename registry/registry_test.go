package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	if err := r.Register(Descriptor{Name: "weather", Capabilities: []string{"Weather", "forecast"}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	d, ok := r.Get("weather")
	if !ok {
		t.Fatal("expected weather descriptor")
	}
	if d.Name != "weather" {
		t.Errorf("got name %q", d.Name)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("expected not found")
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := New()
	_ = r.Register(Descriptor{Name: "calculator"})
	err := r.Register(Descriptor{Name: "calculator"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegistry_FindByCapability_CaseInsensitive(t *testing.T) {
	r := New()
	_ = r.Register(Descriptor{Name: "weather", Capabilities: []string{"Weather"}})
	_ = r.Register(Descriptor{Name: "forecast", Capabilities: []string{"weather", "forecast"}})

	names := r.FindByCapability("WEATHER")
	if len(names) != 2 || names[0] != "forecast" || names[1] != "weather" {
		t.Fatalf("got %v", names)
	}
}

func TestRegistry_DeregisterCleansIndex(t *testing.T) {
	r := New()
	_ = r.Register(Descriptor{Name: "a", Capabilities: []string{"search"}})
	_ = r.Register(Descriptor{Name: "b", Capabilities: []string{"search"}})

	if err := r.Deregister("a"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if _, ok := r.Get("a"); ok {
		t.Error("a should be gone")
	}
	names := r.FindByCapability("search")
	if len(names) != 1 || names[0] != "b" {
		t.Fatalf("got %v, want [b]", names)
	}

	// Deregistering the last agent under a tag removes the tag entirely.
	_ = r.Deregister("b")
	if names := r.FindByCapability("search"); len(names) != 0 {
		t.Fatalf("got %v, want empty", names)
	}
}

// TestRegistry_RoundTrip verifies register-then-deregister returns the
// registry to its prior observable state.
func TestRegistry_RoundTrip(t *testing.T) {
	r := New()
	_ = r.Register(Descriptor{Name: "base", Capabilities: []string{"math"}})
	before := r.List()

	_ = r.Register(Descriptor{Name: "extra", Capabilities: []string{"math", "stats"}})
	_ = r.Deregister("extra")

	after := r.List()
	if len(before) != len(after) {
		t.Fatalf("got %d descriptors after round-trip, want %d", len(after), len(before))
	}
	if names := r.FindByCapability("stats"); len(names) != 0 {
		t.Fatalf("stats tag should be gone, got %v", names)
	}
}

type fakeChecker struct{ status HealthStatus }

func (f fakeChecker) HealthCheck(context.Context) HealthStatus { return f.status }

func TestRegistry_HealthOf(t *testing.T) {
	r := New()
	_ = r.Register(Descriptor{Name: "weather"})

	if _, err := r.HealthOf(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	h, err := r.HealthOf(context.Background(), "weather")
	if err != nil {
		t.Fatalf("HealthOf: %v", err)
	}
	if h.Status != "unknown" {
		t.Errorf("got %q, want unknown before any checker registered", h.Status)
	}

	want := HealthStatus{Status: "healthy", LatencyMS: 12, CheckedAt: time.Now()}
	_ = r.RegisterHealthChecker("weather", fakeChecker{status: want})

	h, err = r.HealthOf(context.Background(), "weather")
	if err != nil {
		t.Fatalf("HealthOf: %v", err)
	}
	if h.Status != "healthy" || h.LatencyMS != 12 {
		t.Fatalf("got %+v, want %+v", h, want)
	}
}

func TestDescriptor_TimeoutDefault(t *testing.T) {
	d := Descriptor{}
	if d.Timeout() != 10*time.Second {
		t.Errorf("got %v, want 10s default", d.Timeout())
	}
	d.TimeoutMS = 500
	if d.Timeout() != 500*time.Millisecond {
		t.Errorf("got %v, want 500ms", d.Timeout())
	}
}
