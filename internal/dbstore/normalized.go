package dbstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vanta-labs/cryptoetl/internal/models"
)

const upsertNormalizedStmt = `
	INSERT INTO normalized_crypto_data (
		source, source_id, master_coin_id, symbol, name,
		price_usd, market_cap_usd, volume_24h_usd,
		rank, circulating_supply, total_supply, max_supply,
		percent_change_24h, additional_data, data_timestamp
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (source, source_id, data_timestamp) DO UPDATE SET
		master_coin_id = EXCLUDED.master_coin_id,
		price_usd = EXCLUDED.price_usd,
		market_cap_usd = EXCLUDED.market_cap_usd,
		volume_24h_usd = EXCLUDED.volume_24h_usd
`

// normalizedExecer is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// upsertNormalized run either autocommitted or inside a caller-managed
// transaction.
type normalizedExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertNormalized(ctx context.Context, execer normalizedExecer, n models.NormalizedCryptoData) error {
	var additional []byte
	if n.AdditionalData != nil {
		var err error
		additional, err = json.Marshal(n.AdditionalData)
		if err != nil {
			return fmt.Errorf("marshal additional_data: %w", err)
		}
	}

	_, err := execer.Exec(ctx, upsertNormalizedStmt,
		n.Source, n.SourceID, n.MasterCoinID, n.Symbol, n.Name,
		n.PriceUSD, n.MarketCapUSD, n.Volume24hUSD,
		n.Rank, n.CirculatingSupply, n.TotalSupply, n.MaxSupply,
		n.PercentChange24h, additional, n.DataTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert normalized_crypto_data %s/%s: %w", n.Source, n.SourceID, err)
	}
	return nil
}

// UpsertNormalizedBatch upserts an entire sync pass's normalized records in
// a single transaction, matching etl.py's one get_sync_connection() per run
// with a single conn.commit() after the loop. A record that fails to upsert
// is logged and counted as failed without aborting the rest of the batch or
// the transaction — the same per-item try/except/continue the original
// wraps around its INSERT, just with one commit at the end instead of
// per-row autocommit.
func (s *Store) UpsertNormalizedBatch(ctx context.Context, records []models.NormalizedCryptoData) (processed, failed int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}
	tx, err := s.IngestPool.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, n := range records {
		// Each record runs under its own savepoint so a failed statement
		// only rolls back that record, not the enclosing transaction.
		sp, spErr := tx.Begin(ctx)
		if spErr != nil {
			return processed, failed, spErr
		}
		if upsertErr := upsertNormalized(ctx, sp, n); upsertErr != nil {
			log.Printf("[dbstore] normalize/upsert failed for %s/%s: %v", n.Source, n.SourceID, upsertErr)
			_ = sp.Rollback(ctx)
			failed++
			continue
		}
		if spErr := sp.Commit(ctx); spErr != nil {
			return processed, failed, spErr
		}
		processed++
	}
	return processed, failed, tx.Commit(ctx)
}
