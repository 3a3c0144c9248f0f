package orchestrator

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferro-labs/agentrouter/internal/logging"
	"github.com/ferro-labs/agentrouter/internal/ratelimit"
)

// Handlers holds the HTTP surface for the Agent Orchestration Core: the
// inbound POST /query endpoint, rate-limited per session_id rather than per
// API key since a query's caller identity is the session, not a
// provisioned key.
type Handlers struct {
	Orchestrator *Orchestrator
	Limiter      *ratelimit.Store // optional; nil disables rate limiting
}

type queryRequest struct {
	Query     string  `json:"query"`
	SessionID string  `json:"session_id,omitempty"`
	Options   Options `json:"options,omitempty"`
}

// ServeQuery handles POST /query: decodes the request body, runs it through
// the Orchestrator, and maps the outcome to the appropriate status code
// (200 even on partial agent failure, 400 malformed body, 408 deadline
// exceeded, 503 no route found).
func (h *Handlers) ServeQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	if h.Limiter != nil {
		key := body.SessionID
		if key == "" {
			key = r.RemoteAddr
		}
		if !h.Limiter.Allow(key) {
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	q := Query{
		Text:      body.Query,
		SessionID: body.SessionID,
		Options:   body.Options,
	}

	resp, err := h.Orchestrator.HandleQuery(r.Context(), q)
	status := http.StatusOK
	switch {
	case errors.Is(err, ErrNoRoute):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrDeadlineExceeded):
		status = http.StatusRequestTimeout
	case err != nil:
		logging.FromContext(r.Context()).Error("orchestrator: query failed", "error", err)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
