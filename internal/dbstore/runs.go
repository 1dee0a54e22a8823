package dbstore

import (
	"context"
	"fmt"
	"time"
)

// InsertRunStart records a new etl_runs row in "running" status.
func (s *Store) InsertRunStart(ctx context.Context, runID, sourceName string, startedAt time.Time) error {
	_, err := s.IngestPool.Exec(ctx, `
		INSERT INTO etl_runs (run_id, source_name, status, started_at)
		VALUES ($1, $2, 'running', $3)
	`, runID, sourceName, startedAt)
	if err != nil {
		return fmt.Errorf("insert etl_runs start for %s: %w", runID, err)
	}
	return nil
}

// RunCompletion is the full set of bookkeeping fields recorded when a run
// finishes, successfully or not.
type RunCompletion struct {
	RunID            string
	Status           string
	CompletedAt      time.Time
	DurationSeconds  int
	RecordsFetched   int
	RecordsProcessed int
	RecordsFailed    int
	ErrorMessage     *string
}

// CompleteRun updates the etl_runs row for a finished run.
func (s *Store) CompleteRun(ctx context.Context, c RunCompletion) error {
	_, err := s.IngestPool.Exec(ctx, `
		UPDATE etl_runs
		SET status = $1, completed_at = $2, duration_seconds = $3,
		    records_fetched = $4, records_processed = $5, records_failed = $6,
		    error_message = $7
		WHERE run_id = $8
	`, c.Status, c.CompletedAt, c.DurationSeconds, c.RecordsFetched,
		c.RecordsProcessed, c.RecordsFailed, c.ErrorMessage, c.RunID)
	if err != nil {
		return fmt.Errorf("complete etl_runs %s: %w", c.RunID, err)
	}
	return nil
}
