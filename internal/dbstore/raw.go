package dbstore

import (
	"context"
	"fmt"
	"time"

	"github.com/vanta-labs/cryptoetl/internal/models"
)

// SaveRawCoinPaprika persists one batch of CoinPaprika records, skipping
// duplicates for the natural key (coin_id, data_timestamp). Returns the
// number of rows actually inserted.
func (s *Store) SaveRawCoinPaprika(ctx context.Context, records []models.RawCoinPaprika, dataTimestamp time.Time) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.IngestPool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const stmt = `
		INSERT INTO raw_coinpaprika (
			coin_id, symbol, name, rank,
			price_usd, volume_24h_usd, market_cap_usd,
			circulating_supply, total_supply, max_supply,
			percent_change_1h, percent_change_24h, percent_change_7d,
			raw_data, data_timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (coin_id, data_timestamp) DO NOTHING
	`

	saved := 0
	for _, r := range records {
		tag, err := tx.Exec(ctx, stmt,
			r.CoinID, r.Symbol, r.Name, r.Rank,
			r.PriceUSD, r.Volume24hUSD, r.MarketCapUSD,
			r.CirculatingSupply, r.TotalSupply, r.MaxSupply,
			r.PercentChange1h, r.PercentChange24h, r.PercentChange7d,
			r.RawJSON, dataTimestamp,
		)
		if err != nil {
			return saved, fmt.Errorf("insert raw_coinpaprika %s: %w", r.CoinID, err)
		}
		saved += int(tag.RowsAffected())
	}
	return saved, tx.Commit(ctx)
}

// SaveRawCoinGecko persists one batch of CoinGecko records.
func (s *Store) SaveRawCoinGecko(ctx context.Context, records []models.RawCoinGecko, dataTimestamp time.Time) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.IngestPool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const stmt = `
		INSERT INTO raw_coingecko (
			coin_id, symbol, name,
			current_price, market_cap, market_cap_rank,
			total_volume, high_24h, low_24h,
			price_change_24h, price_change_percentage_24h,
			circulating_supply, total_supply, max_supply,
			ath, atl, raw_data, data_timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (coin_id, data_timestamp) DO NOTHING
	`

	saved := 0
	for _, r := range records {
		tag, err := tx.Exec(ctx, stmt,
			r.CoinID, r.Symbol, r.Name,
			r.CurrentPrice, r.MarketCap, r.MarketCapRank,
			r.TotalVolume, r.High24h, r.Low24h,
			r.PriceChange24h, r.PriceChangePercentage24h,
			r.CirculatingSupply, r.TotalSupply, r.MaxSupply,
			r.ATH, r.ATL, r.RawJSON, dataTimestamp,
		)
		if err != nil {
			return saved, fmt.Errorf("insert raw_coingecko %s: %w", r.CoinID, err)
		}
		saved += int(tag.RowsAffected())
	}
	return saved, tx.Commit(ctx)
}

// SaveRawCSV persists one batch of CSV rows, each keyed by
// (source_file, row_number) — the row number the CSV adapter assigns is
// already set on each record before this is called.
func (s *Store) SaveRawCSV(ctx context.Context, sourceFile string, records []models.RawCSV, dataTimestamp time.Time) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.IngestPool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const stmt = `
		INSERT INTO raw_csv (
			symbol, name, price_usd, market_cap_usd, volume_24h_usd,
			percent_change_24h, raw_data, data_timestamp, source_file, row_number
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (source_file, row_number) DO NOTHING
	`

	saved := 0
	for _, r := range records {
		tag, err := tx.Exec(ctx, stmt,
			r.Symbol, r.Name, r.PriceUSD, r.MarketCapUSD, r.Volume24hUSD,
			r.PercentChange24h, r.RawJSON, dataTimestamp, sourceFile, r.RowNumber,
		)
		if err != nil {
			return saved, fmt.Errorf("insert raw_csv row %d: %w", r.RowNumber, err)
		}
		saved += int(tag.RowsAffected())
	}
	return saved, tx.Commit(ctx)
}
