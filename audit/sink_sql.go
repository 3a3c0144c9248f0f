package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLSink persists finished traces to SQLite or Postgres and additionally
// supports the analytics reads the teacher's original Python
// QueryLogReader exposed (recent queries, lookup by id, aggregate stats) —
// adapted from internal/requestlog's dialect-switching Writer/Reader.
type SQLSink struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteSQLSink opens (creating if necessary) a SQLite-backed SQLSink.
func NewSQLiteSQLSink(dsn string) (*SQLSink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "agentrouter-traces.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open sqlite sink: %w", err)
	}
	s := &SQLSink{db: db, dialect: "sqlite"}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresSQLSink opens a Postgres-backed SQLSink.
func NewPostgresSQLSink(dsn string) (*SQLSink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("audit: postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres sink: %w", err)
	}
	s := &SQLSink{db: db, dialect: "postgres"}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLSink) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("audit: ping %s sink: %w", s.dialect, err)
	}
	ddl := `
CREATE TABLE IF NOT EXISTS query_traces (
	id INTEGER PRIMARY KEY,
	query_id TEXT NOT NULL,
	query_text TEXT,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	total_duration_ms INTEGER NOT NULL,
	success INTEGER NOT NULL,
	events_json TEXT NOT NULL,
	final_result_json TEXT
);`
	if s.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS query_traces (
	id BIGSERIAL PRIMARY KEY,
	query_id TEXT NOT NULL,
	query_text TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	total_duration_ms BIGINT NOT NULL,
	success BOOLEAN NOT NULL,
	events_json TEXT NOT NULL,
	final_result_json TEXT
);`
	}
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("audit: initialize schema: %w", err)
	}
	return nil
}

// Write inserts summary as a new row.
func (s *SQLSink) Write(ctx context.Context, summary Summary) error {
	eventsJSON, err := json.Marshal(summary.Events)
	if err != nil {
		return fmt.Errorf("audit: marshal events: %w", err)
	}
	finalJSON, err := json.Marshal(summary.FinalResult)
	if err != nil {
		return fmt.Errorf("audit: marshal final_result: %w", err)
	}

	query := `INSERT INTO query_traces(query_id, query_text, started_at, finished_at, total_duration_ms, success, events_json, final_result_json)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		query = bindPostgres(query)
	}

	_, err = s.db.ExecContext(ctx, query,
		summary.QueryID,
		summary.Query,
		summary.StartedAt,
		summary.FinishedAt,
		summary.TotalDurationMS,
		succeeded(summary.FinalResult),
		string(eventsJSON),
		string(finalJSON),
	)
	if err != nil {
		return fmt.Errorf("audit: insert trace %q: %w", summary.QueryID, err)
	}
	return nil
}

// Recent returns the most recently finished traces, newest first, mirroring
// QueryLogReader.get_recent_queries.
func (s *SQLSink) Recent(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT query_id, query_text, started_at, finished_at, total_duration_ms, events_json, final_result_json
	FROM query_traces ORDER BY finished_at DESC LIMIT ?`
	if s.dialect == "postgres" {
		query = bindPostgres(query)
	}
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent traces: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// ByID returns the trace with the given query id, mirroring
// QueryLogReader.get_query_by_id.
func (s *SQLSink) ByID(ctx context.Context, queryID string) (Summary, bool, error) {
	query := `SELECT query_id, query_text, started_at, finished_at, total_duration_ms, events_json, final_result_json
	FROM query_traces WHERE query_id = ? ORDER BY finished_at DESC LIMIT 1`
	if s.dialect == "postgres" {
		query = bindPostgres(query)
	}
	rows, err := s.db.QueryContext(ctx, query, queryID)
	if err != nil {
		return Summary{}, false, fmt.Errorf("audit: query trace %q: %w", queryID, err)
	}
	defer rows.Close()
	summaries, err := scanSummaries(rows)
	if err != nil {
		return Summary{}, false, err
	}
	if len(summaries) == 0 {
		return Summary{}, false, nil
	}
	return summaries[0], true, nil
}

// Stats is the aggregate view produced by Stats, mirroring
// QueryLogReader.get_stats.
type Stats struct {
	TotalQueries  int     `json:"total_queries"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// Stats computes aggregate statistics over traces finished within window of
// now.
func (s *SQLSink) Stats(ctx context.Context, window time.Duration) (Stats, error) {
	since := time.Now().UTC().Add(-window)
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0), COALESCE(AVG(total_duration_ms), 0)
	FROM query_traces WHERE finished_at >= ?`
	if s.dialect == "postgres" {
		query = bindPostgres(query)
	}

	var (
		total       int
		successSum  int
		avgDuration float64
	)
	if err := s.db.QueryRowContext(ctx, query, since).Scan(&total, &successSum, &avgDuration); err != nil {
		return Stats{}, fmt.Errorf("audit: compute stats: %w", err)
	}
	stats := Stats{TotalQueries: total, AvgDurationMS: avgDuration}
	if total > 0 {
		stats.SuccessRate = float64(successSum) / float64(total)
	}
	return stats, nil
}

// Close closes the underlying database handle.
func (s *SQLSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	out := make([]Summary, 0)
	for rows.Next() {
		var (
			sum        Summary
			queryText  sql.NullString
			eventsJSON string
			finalJSON  sql.NullString
		)
		if err := rows.Scan(&sum.QueryID, &queryText, &sum.StartedAt, &sum.FinishedAt, &sum.TotalDurationMS, &eventsJSON, &finalJSON); err != nil {
			return nil, fmt.Errorf("audit: scan trace row: %w", err)
		}
		sum.Query = queryText.String
		if err := json.Unmarshal([]byte(eventsJSON), &sum.Events); err != nil {
			return nil, fmt.Errorf("audit: decode events: %w", err)
		}
		if finalJSON.Valid && finalJSON.String != "" {
			if err := json.Unmarshal([]byte(finalJSON.String), &sum.FinalResult); err != nil {
				return nil, fmt.Errorf("audit: decode final_result: %w", err)
			}
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate trace rows: %w", err)
	}
	return out, nil
}

func succeeded(finalResult map[string]any) bool {
	v, ok := finalResult["success"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func bindPostgres(query string) string {
	var b strings.Builder
	idx := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", idx)
			idx++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
