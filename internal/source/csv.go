package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vanta-labs/cryptoetl/internal/checkpoint"
	"github.com/vanta-labs/cryptoetl/internal/dbstore"
	"github.com/vanta-labs/cryptoetl/internal/models"
	"github.com/vanta-labs/cryptoetl/internal/normalize"
)

// CSV reads a local snapshot file incrementally, resuming from the row
// number recorded in its checkpoint. The file is re-read in full on every
// run; only the already-processed prefix is skipped.
type CSV struct {
	store      *dbstore.Store
	checkpoint *checkpoint.Manager
	path       string
}

// NewCSV builds the CSV adapter reading from path, using cp to track the
// last row number processed.
func NewCSV(store *dbstore.Store, cp *checkpoint.Manager, path string) *CSV {
	return &CSV{store: store, checkpoint: cp, path: path}
}

func (s *CSV) Name() string { return "csv" }

// Sync reads any rows past the checkpointed row number, persists them raw,
// normalizes each, resolves its master coin, and upserts the normalized row.
func (s *CSV) Sync(ctx context.Context, resolver masterResolver) (Result, error) {
	lastRow, err := s.lastRowNumber(ctx)
	if err != nil {
		return Result{}, err
	}

	rows, err := s.readRows()
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[csv] file not found at %s, nothing to ingest", s.path)
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("read csv %s: %w", s.path, err)
	}

	if lastRow >= len(rows) {
		return Result{}, nil
	}
	newRows := rows[lastRow:]

	records := make([]models.RawCSV, 0, len(newRows))
	var invalid int
	for idx, row := range newRows {
		rowNumber := lastRow + idx + 1
		if !validateCSVRow(row) {
			log.Printf("[csv] dropping row %d: missing required field symbol or name", rowNumber)
			invalid++
			continue
		}
		raw, err := rowToJSON(row)
		if err != nil {
			log.Printf("[csv] skipping unmarshalable row %d: %v", rowNumber, err)
			continue
		}
		row.RowNumber = rowNumber
		row.RawJSON = raw
		records = append(records, row)
	}

	dataTimestamp := time.Now().UTC()
	saved, err := s.store.SaveRawCSV(ctx, s.path, records, dataTimestamp)
	if err != nil {
		return Result{Fetched: len(newRows)}, fmt.Errorf("save raw csv: %w", err)
	}
	log.Printf("[csv] fetched=%d saved=%d last_row=%d", len(records), saved, lastRow)

	// Fetched counts every row read past the checkpoint, dropped rows
	// included, so the row-count checkpoint advances past all of them.
	result := Result{Fetched: len(newRows), Failed: invalid}
	normalized := make([]models.NormalizedCryptoData, 0, len(records))
	for _, r := range records {
		n := normalize.CSV(r, dataTimestamp)
		masterID, err := resolver.Resolve(ctx, n.Source, n.SourceID, n.Symbol, n.Name)
		if err != nil {
			log.Printf("[csv] entity resolution failed for %s: %v", n.SourceID, err)
			result.Failed++
			continue
		}
		n.MasterCoinID = &masterID
		normalized = append(normalized, n)
	}

	processed, failed, err := s.store.UpsertNormalizedBatch(ctx, normalized)
	result.Processed += processed
	result.Failed += failed
	if err != nil {
		return result, fmt.Errorf("upsert normalized csv batch: %w", err)
	}
	return result, nil
}

func (s *CSV) lastRowNumber(ctx context.Context) (int, error) {
	cp, err := s.checkpoint.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("read csv checkpoint: %w", err)
	}
	if cp == nil || cp.Value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cp.Value)
	if err != nil {
		log.Printf("[csv] checkpoint value %q is not a row count, treating as 0", cp.Value)
		return 0, nil
	}
	return n, nil
}

func (s *CSV) readRows() ([]models.RawCSV, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		colIndex[h] = i
	}

	var rows []models.RawCSV
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, models.RawCSV{
			Symbol:           col(rec, colIndex, "symbol"),
			Name:             col(rec, colIndex, "name"),
			PriceUSD:         decimalCol(rec, colIndex, "price_usd"),
			MarketCapUSD:     decimalCol(rec, colIndex, "market_cap_usd"),
			Volume24hUSD:     decimalCol(rec, colIndex, "volume_24h_usd"),
			PercentChange24h: decimalCol(rec, colIndex, "percent_change_24h"),
		})
	}
	return rows, nil
}

func col(rec []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func decimalCol(rec []string, idx map[string]int, name string) *decimal.Decimal {
	v := col(rec, idx, name)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil
	}
	return &d
}

// validateCSVRow enforces the structural requirements of RawCSVData in the
// original schema: symbol and name are required, non-empty fields. A row
// failing this is dropped before it ever reaches the raw table.
func validateCSVRow(row models.RawCSV) bool {
	return row.Symbol != "" && row.Name != ""
}

func rowToJSON(row models.RawCSV) ([]byte, error) {
	return json.Marshal(map[string]any{
		"symbol":             row.Symbol,
		"name":               row.Name,
		"price_usd":          row.PriceUSD,
		"market_cap_usd":     row.MarketCapUSD,
		"volume_24h_usd":     row.Volume24hUSD,
		"percent_change_24h": row.PercentChange24h,
	})
}
