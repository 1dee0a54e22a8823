// Package orchestrator drives one ETL pass across every registered source,
// giving each an isolated failure domain: one source's error never aborts
// another's run, and each run's timing, counts, and checkpoint advance are
// recorded independently.
package orchestrator

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vanta-labs/cryptoetl/internal/checkpoint"
	"github.com/vanta-labs/cryptoetl/internal/dbstore"
	"github.com/vanta-labs/cryptoetl/internal/resolver"
	"github.com/vanta-labs/cryptoetl/internal/source"
)

// metricsRecorder is the subset of internal/metrics.Registry the
// orchestrator needs, declared locally so the orchestrator does not import
// the metrics package.
type metricsRecorder interface {
	RecordETLRun(sourceName, status string, durationSeconds float64, recordsProcessed int)
}

// entry pairs a source with the checkpoint manager that tracks it.
type entry struct {
	src source.Source
	cp  *checkpoint.Manager
}

// Orchestrator coordinates a run-all-sources pass.
type Orchestrator struct {
	store    *dbstore.Store
	resolver *resolver.Resolver
	metrics  metricsRecorder
	entries  []entry
}

// New builds an Orchestrator with no sources; Register adds each source
// together with its own checkpoint manager.
func New(store *dbstore.Store, res *resolver.Resolver, metrics metricsRecorder) *Orchestrator {
	return &Orchestrator{store: store, resolver: res, metrics: metrics}
}

// Register adds a source and the checkpoint manager tracking it.
func (o *Orchestrator) Register(src source.Source, cp *checkpoint.Manager) {
	o.entries = append(o.entries, entry{src: src, cp: cp})
}

// RunAll runs every registered source concurrently and waits for all of
// them to finish, regardless of individual failures.
func (o *Orchestrator) RunAll(ctx context.Context) {
	log.Println("[orchestrator] running ETL for all sources")

	var wg sync.WaitGroup
	for _, e := range o.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			o.runOne(ctx, e)
		}(e)
	}
	wg.Wait()

	log.Println("[orchestrator] completed ETL for all sources")
}

// runOne runs a single source end to end: records the run's start, drives
// the source, advances or records failure on its checkpoint, records the
// run's completion, and reports the outcome to metrics. A panic inside the
// source is recovered so it can't take down the other sources' goroutines.
func (o *Orchestrator) runOne(ctx context.Context, e entry) {
	runID := uuid.NewString()
	sourceName := e.src.Name()
	startedAt := time.Now().UTC()

	if err := o.store.InsertRunStart(ctx, runID, sourceName, startedAt); err != nil {
		log.Printf("[orchestrator] failed to record run start for %s: %v", sourceName, err)
	}

	status := "success"
	var errMsg *string
	result := source.Result{}

	func() {
		defer func() {
			if r := recover(); r != nil {
				status = "failed"
				msg := "panic during sync"
				errMsg = &msg
				log.Printf("[orchestrator] source %s panicked: %v", sourceName, r)
			}
		}()
		var err error
		result, err = e.src.Sync(ctx, o.resolver)
		if err != nil {
			status = "failed"
			msg := err.Error()
			errMsg = &msg
			log.Printf("[orchestrator] run failed for %s: %v", sourceName, err)
		}
	}()

	o.advanceCheckpoint(ctx, e, status == "success", errMsg, runID, startedAt, result)

	completedAt := time.Now().UTC()
	duration := int(completedAt.Sub(startedAt).Seconds())

	if err := o.store.CompleteRun(ctx, dbstore.RunCompletion{
		RunID:            runID,
		Status:           status,
		CompletedAt:      completedAt,
		DurationSeconds:  duration,
		RecordsFetched:   result.Fetched,
		RecordsProcessed: result.Processed,
		RecordsFailed:    result.Failed,
		ErrorMessage:     errMsg,
	}); err != nil {
		log.Printf("[orchestrator] failed to record run completion for %s: %v", sourceName, err)
	}

	if o.metrics != nil {
		o.metrics.RecordETLRun(sourceName, status, float64(duration), result.Processed)
	}

	log.Printf("[orchestrator] run complete source=%s status=%s duration=%ds processed=%d failed=%d",
		sourceName, status, duration, result.Processed, result.Failed)
}

// advanceCheckpoint mirrors the rule the service this was rewritten from
// uses: HTTP sources checkpoint on the run's start time; the CSV source
// checkpoints on a monotonically increasing row count that never rewinds,
// so a failed or empty run leaves it untouched.
func (o *Orchestrator) advanceCheckpoint(ctx context.Context, e entry, success bool, errMsg *string, runID string, startedAt time.Time, result source.Result) {
	if e.cp == nil {
		return
	}
	if !success {
		if err := e.cp.Update(ctx, "", false, errMsg, nil); err != nil {
			log.Printf("[orchestrator] failed to record checkpoint failure for %s: %v", e.src.Name(), err)
		}
		return
	}

	value := startedAt.UTC().Format(time.RFC3339)
	if e.src.Name() == "csv" {
		prior, err := e.cp.Get(ctx)
		if err != nil {
			log.Printf("[orchestrator] failed to read prior csv checkpoint: %v", err)
		}
		lastRow := 0
		if prior != nil && prior.Value != "" {
			if n, convErr := parseRowCount(prior.Value); convErr == nil {
				lastRow = n
			}
		}
		value = formatRowCount(lastRow + result.Fetched)
	}

	meta := map[string]any{
		"run_id":            runID,
		"records_processed": result.Processed,
	}
	if err := e.cp.Update(ctx, value, true, nil, meta); err != nil {
		log.Printf("[orchestrator] failed to advance checkpoint for %s: %v", e.src.Name(), err)
	}
}

func parseRowCount(v string) (int, error) {
	return strconv.Atoi(v)
}

func formatRowCount(n int) string {
	return strconv.Itoa(n)
}
