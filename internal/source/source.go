// Package source implements one adapter per upstream feed (CoinPaprika,
// CoinGecko, a local CSV snapshot). Every adapter follows the same shape:
// fetch, drop any record missing its required identifying field (id for
// the HTTP sources, symbol/name for CSV), persist the raw payload,
// normalize, resolve the record to a master coin, then upsert the
// normalized row — each step isolated so a failure partway through still
// reports how much of the batch actually landed.
package source

import (
	"context"
)

// Result reports how a single sync pass went, independent of whether it
// returned an error. The orchestrator persists this in etl_runs even when
// err is non-nil.
type Result struct {
	Fetched   int
	Processed int
	Failed    int
}

// masterResolver is the subset of internal/resolver.Resolver each adapter
// needs. Declared locally so adapters don't have to import the resolver
// package's concrete type, mirroring how loosely the Python sources this
// was built from depend on EntityResolutionService.
type masterResolver interface {
	Resolve(ctx context.Context, source, sourceID, symbol, name string) (int64, error)
}

// Source is the contract the orchestrator drives every adapter through.
type Source interface {
	// Name is the source_name used for checkpoints and etl_runs rows.
	Name() string
	// Sync fetches, drops structurally invalid records, persists and
	// normalizes the rest, resolving each record's master coin through
	// resolver.
	Sync(ctx context.Context, resolver masterResolver) (Result, error)
}
