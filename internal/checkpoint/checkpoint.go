// Package checkpoint manages per-source resume-on-failure bookkeeping:
// a single opaque checkpoint_value string per source, plus success/failure
// timestamps. Each source adapter interprets checkpoint_value itself — an
// ISO-8601 timestamp for the HTTP sources, a row count for the CSV source.
// No "type" discriminator is stored alongside it; treating the value as
// opaque sidesteps a latent bug in the service this was rewritten from,
// where the discriminator was read but never actually written.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Checkpoint is the full state stored for one source.
type Checkpoint struct {
	Value         string
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	FailureReason *string
	Metadata      map[string]any
}

// Manager reads and writes the checkpoint for one named source.
type Manager struct {
	pool       *pgxpool.Pool
	sourceName string
}

// New returns a checkpoint Manager for the given source name.
func New(pool *pgxpool.Pool, sourceName string) *Manager {
	return &Manager{pool: pool, sourceName: sourceName}
}

// Get fetches the current checkpoint, or nil if the source has no
// etl_checkpoints row. A seeded row that has never advanced yields a
// Checkpoint with an empty Value.
func (m *Manager) Get(ctx context.Context) (*Checkpoint, error) {
	row := m.pool.QueryRow(ctx, `
		SELECT checkpoint_value, last_success_at, last_failure_at, failure_reason, metadata
		FROM etl_checkpoints
		WHERE source_name = $1
	`, m.sourceName)

	var value *string
	var metadataRaw []byte
	cp := &Checkpoint{}
	if err := row.Scan(&value, &cp.LastSuccessAt, &cp.LastFailureAt, &cp.FailureReason, &metadataRaw); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		log.Printf("[checkpoint] failed to get checkpoint for %s: %v", m.sourceName, err)
		return nil, fmt.Errorf("get checkpoint for %s: %w", m.sourceName, err)
	}
	if value != nil {
		cp.Value = *value
	}
	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &cp.Metadata); err != nil {
			cp.Metadata = map[string]any{}
		}
	} else {
		cp.Metadata = map[string]any{}
	}
	return cp, nil
}

// Update records the outcome of a run. On success it advances
// checkpoint_value and last_success_at; on failure it records
// last_failure_at and the failure reason, leaving checkpoint_value
// untouched so the next run resumes from the last known-good point.
func (m *Manager) Update(ctx context.Context, value string, success bool, errMsg *string, metadata map[string]any) error {
	now := time.Now().UTC()

	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal checkpoint metadata: %w", err)
		}
	}

	var err error
	if success {
		_, err = m.pool.Exec(ctx, `
			UPDATE etl_checkpoints
			SET checkpoint_value = $1, last_success_at = $2, metadata = $3, updated_at = $2
			WHERE source_name = $4
		`, value, now, metaJSON, m.sourceName)
	} else {
		_, err = m.pool.Exec(ctx, `
			UPDATE etl_checkpoints
			SET last_failure_at = $1, failure_reason = $2, updated_at = $1
			WHERE source_name = $3
		`, now, errMsg, m.sourceName)
	}
	if err != nil {
		log.Printf("[checkpoint] failed to update checkpoint for %s: %v", m.sourceName, err)
		return fmt.Errorf("update checkpoint for %s: %w", m.sourceName, err)
	}
	return nil
}
