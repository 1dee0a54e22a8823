// Package resolver maps per-source coin identifiers onto stable master
// coin entities: an exact uppercase-symbol match verified by fuzzy name
// similarity, falling back to creating a new master coin when no existing
// one is a confident match.
//
// No LCS-style string-similarity library appears anywhere in the
// dependency pack, so sequenceRatio below is a hand-rolled equivalent of
// Python's difflib.SequenceMatcher.ratio() (the function the service this
// was rewritten from relies on).
package resolver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NameSimilarityThreshold is the minimum name-similarity ratio required to
// accept a symbol match as the same coin rather than a collision.
const NameSimilarityThreshold = 0.7

type sourceKey struct {
	source   string
	sourceID string
}

// Resolver resolves (source, source_id, symbol, name) tuples to a stable
// master_coin_id, caching (source, source_id) mapping lookups for the
// lifetime of the Resolver. Symbol lookups are not cached.
type Resolver struct {
	pool *pgxpool.Pool

	mu                sync.Mutex
	sourceMappingCache map[sourceKey]int64
}

// New returns a Resolver backed by the ingest pool.
func New(pool *pgxpool.Pool) *Resolver {
	return &Resolver{
		pool:               pool,
		sourceMappingCache: make(map[sourceKey]int64),
	}
}

// ClearCache empties the in-memory source-mapping cache. Exposed for tests.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceMappingCache = make(map[sourceKey]int64)
}

// Resolve is the main entry point: returns the master_coin_id for a given
// source record, creating a master coin and/or source mapping as needed.
func (r *Resolver) Resolve(ctx context.Context, source, sourceID, symbol, name string) (int64, error) {
	key := sourceKey{source: source, sourceID: sourceID}

	r.mu.Lock()
	if id, ok := r.sourceMappingCache[key]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	var existing int64
	err := r.pool.QueryRow(ctx, `
		SELECT master_coin_id FROM coin_source_mappings WHERE source = $1 AND source_id = $2
	`, source, sourceID).Scan(&existing)
	if err == nil {
		r.cacheMapping(key, existing)
		return existing, nil
	}
	if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("lookup coin_source_mappings: %w", err)
	}

	masterCoinID, err := r.findBySymbol(ctx, symbol, name)
	if err != nil {
		return 0, err
	}
	if masterCoinID == 0 {
		masterCoinID, err = r.createMasterCoin(ctx, symbol, name)
		if err != nil {
			return 0, err
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO coin_source_mappings (master_coin_id, source, source_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (source, source_id) DO NOTHING
	`, masterCoinID, source, sourceID)
	if err != nil {
		return 0, fmt.Errorf("insert coin_source_mappings: %w", err)
	}

	r.cacheMapping(key, masterCoinID)
	return masterCoinID, nil
}

func (r *Resolver) cacheMapping(key sourceKey, id int64) {
	r.mu.Lock()
	r.sourceMappingCache[key] = id
	r.mu.Unlock()
}

// findBySymbol looks for an existing master coin with an exact uppercase
// symbol match, accepting it only if the candidate's name is similar
// enough to avoid conflating two different coins that happen to share a
// ticker (e.g. multiple coins using "LUNA").
func (r *Resolver) findBySymbol(ctx context.Context, symbol, name string) (int64, error) {
	var id int64
	var existingName string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name FROM master_coins WHERE symbol = $1
	`, strings.ToUpper(symbol)).Scan(&id, &existingName)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup master_coins by symbol: %w", err)
	}

	similarity := sequenceRatio(strings.ToLower(name), strings.ToLower(existingName))
	if similarity > NameSimilarityThreshold {
		return id, nil
	}
	log.Printf("[resolver] symbol match but name mismatch: symbol=%s name=%q existing=%q similarity=%.2f",
		symbol, name, existingName, similarity)
	return 0, nil
}

// createMasterCoin inserts a brand-new master coin, deriving canonical_id
// from the coin's name (not its symbol) — lowercased, spaces replaced with
// hyphens, dots stripped.
func (r *Resolver) createMasterCoin(ctx context.Context, symbol, name string) (int64, error) {
	canonicalID := canonicalize(name)

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO master_coins (symbol, name, canonical_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING id
	`, strings.ToUpper(symbol), name, canonicalID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create master_coins %s: %w", symbol, err)
	}
	return id, nil
}

func canonicalize(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, ".", "")
	return s
}

// sequenceRatio is a longest-common-subsequence-based similarity ratio in
// [0,1], matching the semantics of Python's
// difflib.SequenceMatcher(None, a, b).ratio(): 2*M / T, where M is the
// total number of matched characters across all matching blocks (found
// greedily, longest block first) and T is the combined length of a and b.
func sequenceRatio(a, b string) float64 {
	if a == b {
		if len(a) == 0 {
			return 1.0
		}
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}

	matched := matchingBlocks(ra, rb)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return float64(2*matched) / float64(total)
}

// matchingBlocks counts total matched characters using the same
// recursive longest-matching-block strategy SequenceMatcher uses: find
// the single longest common contiguous substring, then recurse on the
// unmatched regions to either side.
func matchingBlocks(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	aStart, bStart, length := longestMatch(a, b)
	if length == 0 {
		return 0
	}
	left := matchingBlocks(a[:aStart], b[:bStart])
	right := matchingBlocks(a[aStart+length:], b[bStart+length:])
	return left + length + right
}

func longestMatch(a, b []rune) (aStart, bStart, length int) {
	// indexes[r] = positions in b where rune r occurs
	indexes := make(map[rune][]int, len(b))
	for i, r := range b {
		indexes[r] = append(indexes[r], i)
	}

	// j2len[j] = length of the matching block ending at a[i-1], b[j-1]
	j2len := make(map[int]int)
	bestI, bestJ, bestSize := 0, 0, 0

	for i, ra := range a {
		newJ2len := make(map[int]int)
		for _, j := range indexes[ra] {
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return bestI, bestJ, bestSize
}
