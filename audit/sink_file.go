package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONFileSink writes each finished trace to its own file under Dir, named
// "query_<timestamp>_<query_id_prefix>.json", mirroring
// QueryLogger._write_query_log_file's filename convention.
type JSONFileSink struct {
	Dir string
}

// NewJSONFileSink creates a JSONFileSink rooted at dir, creating it if
// necessary.
func NewJSONFileSink(dir string) (*JSONFileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log dir %q: %w", dir, err)
	}
	return &JSONFileSink{Dir: dir}, nil
}

// Write serializes summary to its own file.
func (s *JSONFileSink) Write(_ context.Context, summary Summary) error {
	idPrefix := summary.QueryID
	if len(idPrefix) > 8 {
		idPrefix = idPrefix[:8]
	}
	filename := fmt.Sprintf("query_%s_%s.json", summary.FinishedAt.Format("20060102T150405"), idPrefix)
	path := filepath.Join(s.Dir, filename)

	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal trace %q: %w", summary.QueryID, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("audit: write trace file %q: %w", path, err)
	}
	return nil
}
