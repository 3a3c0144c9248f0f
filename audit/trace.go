// Package audit implements the Audit Logger (C10): per-query trace
// capture with exactly-once open/close semantics, concurrency-safe event
// append, and pluggable Sinks for persisting the finished trace — grounded
// on original_source/agent_orchestrator/utils/query_logger.py's QueryLogger
// and, for SQL-backed persistence, internal/requestlog's dialect-switching
// Writer/Reader pattern.
package audit

import (
	"sync"
	"time"
)

// EventKind enumerates the audit event types the trace records.
type EventKind string

// EventKind constants.
const (
	EventQueryStart        EventKind = "QUERY_START"
	EventReasoningDecision EventKind = "REASONING_DECISION"
	EventAgentInteraction  EventKind = "AGENT_INTERACTION"
	EventToolInteraction   EventKind = "TOOL_INTERACTION"
	EventValidation        EventKind = "VALIDATION"
	EventRetryAttempt      EventKind = "RETRY_ATTEMPT"
	EventError             EventKind = "ERROR"
	EventQueryEnd          EventKind = "QUERY_END"
)

// Event is one entry in a Trace's event log.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Trace is one query's audit record. The zero value is not usable; create
// one with Logger.Open.
type Trace struct {
	QueryID   string    `json:"query_id"`
	Query     string    `json:"query"`
	StartedAt time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	mu     sync.Mutex
	events []Event
	closed bool
}

// Events returns a snapshot copy of the trace's events so far.
func (t *Trace) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// append adds an event to the trace. Safe for concurrent use by any
// executor task.
func (t *Trace) append(kind EventKind, payload map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.events = append(t.events, Event{Kind: kind, Timestamp: time.Now().UTC(), Payload: payload})
}

// Summary is the final record produced by Logger.Close, combining the
// trace header, its full event log, and the caller-supplied result
// summary.
type Summary struct {
	QueryID        string         `json:"query_id"`
	Query          string         `json:"query"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	TotalDurationMS int64         `json:"total_duration_ms"`
	Events         []Event        `json:"events"`
	FinalResult    map[string]any `json:"final_result,omitempty"`
}
