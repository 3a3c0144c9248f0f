package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ferro-labs/agentrouter/internal/metrics"
)

// Sink persists a finished trace Summary. Implementations must not block
// the caller indefinitely; a slow or failing Sink must never affect the
// user-facing response — callers log and swallow a Sink error rather than
// fail the query over it.
type Sink interface {
	Write(ctx context.Context, summary Summary) error
}

// Logger is the Audit Logger (C10). open/close happen exactly once per
// query; event may be called concurrently from any executor task.
type Logger struct {
	sink Sink

	mu     sync.Mutex
	active map[string]*Trace
}

// New creates a Logger that flushes finished traces to sink. A nil sink is
// valid: traces are still tracked in memory (useful for tests and for
// Logger.Trace lookups) but Close becomes a no-op persistence-wise.
func New(sink Sink) *Logger {
	return &Logger{sink: sink, active: make(map[string]*Trace)}
}

// Open starts a new trace for queryID, recording QUERY_START. Calling Open
// twice for the same queryID is a programming error and returns an error
// rather than silently overwriting the first trace.
func (l *Logger) Open(queryID, query string) (*Trace, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.active[queryID]; exists {
		return nil, fmt.Errorf("audit: trace %q already open", queryID)
	}
	t := &Trace{QueryID: queryID, Query: query, StartedAt: time.Now().UTC()}
	t.append(EventQueryStart, map[string]any{"query": query})
	l.active[queryID] = t
	return t, nil
}

// Event appends an event to trace. Safe for concurrent use.
func (l *Logger) Event(t *Trace, kind EventKind, payload map[string]any) {
	if t == nil {
		return
	}
	t.append(kind, payload)
}

// Close finalizes trace, records QUERY_END, and flushes the full Summary to
// the configured Sink atomically (the whole trace is written in one Sink
// call, never incrementally). A Sink error is returned to the caller so it
// can be logged, but it must never be treated as a query failure.
func (l *Logger) Close(ctx context.Context, t *Trace, finalResult map[string]any) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("audit: trace %q already closed", t.QueryID)
	}
	t.closed = true
	t.FinishedAt = time.Now().UTC()
	t.events = append(t.events, Event{Kind: EventQueryEnd, Timestamp: t.FinishedAt, Payload: finalResult})
	summary := Summary{
		QueryID:         t.QueryID,
		Query:           t.Query,
		StartedAt:       t.StartedAt,
		FinishedAt:      t.FinishedAt,
		TotalDurationMS: t.FinishedAt.Sub(t.StartedAt).Milliseconds(),
		Events:          append([]Event(nil), t.events...),
		FinalResult:     finalResult,
	}
	t.mu.Unlock()

	l.mu.Lock()
	delete(l.active, t.QueryID)
	l.mu.Unlock()

	if l.sink == nil {
		return nil
	}
	if err := l.sink.Write(ctx, summary); err != nil {
		metrics.AuditFlushes.WithLabelValues("error").Inc()
		return fmt.Errorf("audit: flush trace %q: %w", t.QueryID, err)
	}
	metrics.AuditFlushes.WithLabelValues("ok").Inc()
	return nil
}

// Trace returns the in-flight trace for queryID, if still open.
func (l *Logger) Trace(queryID string) (*Trace, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.active[queryID]
	return t, ok
}
