package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// HTTPInvoker invokes a remote agent reachable over JSON-over-HTTP.
type HTTPInvoker struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTPInvoker creates an HTTPInvoker that POSTs the uniform request shape
// to url and parses the uniform response shape from the body.
func NewHTTPInvoker(name, url string, client *http.Client) *HTTPInvoker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPInvoker{name: name, url: url, client: client}
}

// NewOAuthHTTPInvoker creates an HTTPInvoker that authenticates with the
// remote agent using the OAuth2 client-credentials grant, for privileged
// remote agents (e.g. admin-capable agents) that require verified callers.
func NewOAuthHTTPInvoker(name, url string, cfg clientcredentials.Config) *HTTPInvoker {
	return &HTTPInvoker{
		name:   name,
		url:    url,
		client: oauth2.NewClient(context.Background(), cfg.TokenSource(context.Background())),
	}
}

// Invoke sends req as a JSON body and decodes the uniform Response shape.
func (h *HTTPInvoker) Invoke(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("agents: encode request for %s: %w", h.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("agents: build request for %s: %w", h.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("agents: call %s: %w", h.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Response{}, fmt.Errorf("agents: read response from %s: %w", h.name, err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return Response{}, fmt.Errorf("agents: %s returned status %d: %s: %w", h.name, resp.StatusCode, string(data), ErrPermanent)
	}
	if resp.StatusCode >= 500 {
		return Response{}, fmt.Errorf("agents: %s returned status %d: %s", h.name, resp.StatusCode, string(data))
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return Response{}, fmt.Errorf("agents: decode response from %s: %w", h.name, err)
	}
	return out, nil
}
