package duckdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportRuns writes the run history to dstPath as a Parquet file and returns
// the number of rows written. The file appears atomically.
func (s *Store) ExportRuns(ctx context.Context, dstPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	tmp := dstPath + ".tmp"

	// Hold the write lock so the count matches the exported rows.
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}

	// COPY does not accept a bound parameter for its target.
	query := fmt.Sprintf("COPY (SELECT * FROM runs ORDER BY id) TO %s (FORMAT parquet)", quoteLiteral(tmp))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("copy runs: %w", err)
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
