package agents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInvokerFunc(t *testing.T) {
	var called Request
	inv := InvokerFunc(func(_ context.Context, req Request) (Response, error) {
		called = req
		return Response{Success: true, Data: map[string]any{"ok": true}}, nil
	})

	resp, err := inv.Invoke(context.Background(), Request{Query: "hello"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if called.Query != "hello" {
		t.Errorf("got query %q", called.Query)
	}
}

func TestHTTPInvoker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Parameters["city"] != "Tokyo" {
			t.Errorf("got parameters %v", req.Parameters)
		}
		_ = json.NewEncoder(w).Encode(Response{Success: true, Data: map[string]any{"temp_c": 22}})
	}))
	defer srv.Close()

	inv := NewHTTPInvoker("weather", srv.URL, nil)
	resp, err := inv.Invoke(context.Background(), Request{Parameters: map[string]any{"city": "Tokyo"}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success")
	}
	if resp.Data["temp_c"].(float64) != 22 {
		t.Errorf("got %v", resp.Data)
	}
}

func TestHTTPInvoker_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	inv := NewHTTPInvoker("weather", srv.URL, nil)
	_, err := inv.Invoke(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrPermanent) {
		t.Error("a 5xx response should not be classified as permanent")
	}
}

func TestHTTPInvoker_ClientErrorStatusIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid credentials"))
	}))
	defer srv.Close()

	inv := NewHTTPInvoker("weather", srv.URL, nil)
	_, err := inv.Invoke(context.Background(), Request{})
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected a 4xx response to wrap ErrPermanent, got %v", err)
	}
}
