package duckdb

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/chartstream/internal/model"
)

var _ model.RunStore = (*Store)(nil)

// RecordRun inserts a finished run and returns its assigned id.
func (s *Store) RecordRun(run model.RunSummary) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	ended := run.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	started := run.StartedAt
	if started.IsZero() {
		started = ended
	}
	specJSON := run.SpecJSON
	if specJSON == "" {
		specJSON = "null"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO runs (source, events, tokens, status, message, spec_json, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		run.Source, run.Events, run.Tokens, run.Status.String(), run.Message, specJSON,
		started.UTC(), ended.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return uint64(id), nil
}

// RecentRuns returns up to limit runs, most recently ended first.
func (s *Store) RecentRuns(limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = model.DefaultRunsLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, events, tokens, status, message, spec_json, started_at, ended_at
		FROM runs
		ORDER BY ended_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var (
			run    model.RunSummary
			id     int64
			status string
		)
		if err := rows.Scan(&id, &run.Source, &run.Events, &run.Tokens, &status,
			&run.Message, &run.SpecJSON, &run.StartedAt, &run.EndedAt); err != nil {
			return nil, err
		}
		run.ID = uint64(id)
		run.Status, err = model.ParseState(status)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n)
	return n, err
}

// DeleteBefore removes runs that ended before cutoff and returns how many
// were deleted.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE ended_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
