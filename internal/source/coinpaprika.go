package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vanta-labs/cryptoetl/internal/dbstore"
	"github.com/vanta-labs/cryptoetl/internal/drift"
	"github.com/vanta-labs/cryptoetl/internal/models"
	"github.com/vanta-labs/cryptoetl/internal/normalize"
)

const coinPaprikaBaseURL = "https://api.coinpaprika.com/v1"

// CoinPaprika fetches the top-100 ticker listing from the CoinPaprika API.
type CoinPaprika struct {
	store    *dbstore.Store
	apiKey   string
	client   *http.Client
	limiter  *limiterWrapper
	detector *drift.Detector
}

// NewCoinPaprika builds the CoinPaprika adapter, rate-limited to
// requestsPerPeriod calls every periodSeconds.
func NewCoinPaprika(store *dbstore.Store, apiKey string, requestsPerPeriod, periodSeconds int) *CoinPaprika {
	d := drift.New("coinpaprika")
	d.SetExpectedSchema(drift.CoinPaprikaSchema)
	return &CoinPaprika{
		store:    store,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  newLimiterWrapper(requestsPerPeriod, periodSeconds),
		detector: d,
	}
}

func (s *CoinPaprika) Name() string { return "coinpaprika" }

type cpQuoteUSD struct {
	Price            *decimal.Decimal `json:"price"`
	Volume24h        *decimal.Decimal `json:"volume_24h"`
	MarketCap        *decimal.Decimal `json:"market_cap"`
	PercentChange1h  *decimal.Decimal `json:"percent_change_1h"`
	PercentChange24h *decimal.Decimal `json:"percent_change_24h"`
	PercentChange7d  *decimal.Decimal `json:"percent_change_7d"`
}

type cpTicker struct {
	ID                string                `json:"id"`
	Symbol            string                `json:"symbol"`
	Name              string                `json:"name"`
	Rank              *int                  `json:"rank"`
	CirculatingSupply *decimal.Decimal      `json:"circulating_supply"`
	TotalSupply       *decimal.Decimal      `json:"total_supply"`
	MaxSupply         *decimal.Decimal      `json:"max_supply"`
	Quotes            map[string]cpQuoteUSD `json:"quotes"`
}

// Sync fetches the current ticker listing, persists it raw, normalizes
// each record, resolves its master coin, and upserts the normalized row.
func (s *CoinPaprika) Sync(ctx context.Context, resolver masterResolver) (Result, error) {
	if err := s.limiter.wait(ctx); err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf("%s/tickers?limit=100", coinPaprikaBaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build coinpaprika request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch coinpaprika tickers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("coinpaprika returned status %d", resp.StatusCode)
	}

	var rawItems []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rawItems); err != nil {
		return Result{}, fmt.Errorf("decode coinpaprika response: %w", err)
	}

	records := make([]models.RawCoinPaprika, 0, len(rawItems))
	var invalid int
	for _, raw := range rawItems {
		var t cpTicker
		if err := json.Unmarshal(raw, &t); err != nil {
			log.Printf("[coinpaprika] skipping malformed ticker: %v", err)
			continue
		}
		if t.ID == "" {
			log.Printf("[coinpaprika] dropping ticker: missing required field id")
			invalid++
			continue
		}
		usd := t.Quotes["USD"]

		s.checkDrift(t, usd)

		records = append(records, models.RawCoinPaprika{
			CoinID:            t.ID,
			Symbol:            t.Symbol,
			Name:              t.Name,
			Rank:              t.Rank,
			PriceUSD:          usd.Price,
			Volume24hUSD:      usd.Volume24h,
			MarketCapUSD:      usd.MarketCap,
			CirculatingSupply: t.CirculatingSupply,
			TotalSupply:       t.TotalSupply,
			MaxSupply:         t.MaxSupply,
			PercentChange1h:   usd.PercentChange1h,
			PercentChange24h:  usd.PercentChange24h,
			PercentChange7d:   usd.PercentChange7d,
			RawJSON:           raw,
		})
	}

	dataTimestamp := time.Now().UTC()
	saved, err := s.store.SaveRawCoinPaprika(ctx, records, dataTimestamp)
	if err != nil {
		return Result{Fetched: len(records)}, fmt.Errorf("save raw coinpaprika: %w", err)
	}
	log.Printf("[coinpaprika] fetched=%d saved=%d", len(records), saved)

	result := Result{Fetched: len(records), Failed: invalid}
	normalized := make([]models.NormalizedCryptoData, 0, len(records))
	for _, r := range records {
		n := normalize.CoinPaprika(r, dataTimestamp)
		masterID, err := resolver.Resolve(ctx, n.Source, n.SourceID, n.Symbol, n.Name)
		if err != nil {
			log.Printf("[coinpaprika] entity resolution failed for %s: %v", n.SourceID, err)
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
		return result, fmt.Errorf("upsert normalized coinpaprika batch: %w", err)
	}
	return result, nil
}

func (s *CoinPaprika) checkDrift(t cpTicker, usd cpQuoteUSD) {
	data := map[string]any{
		"coin_id": t.ID,
		"symbol":  t.Symbol,
		"name":    t.Name,
	}
	if t.Rank != nil {
		data["rank"] = *t.Rank
	}
	if usd.Price != nil {
		f, _ := usd.Price.Float64()
		data["price_usd"] = f
	}
	if usd.Volume24h != nil {
		f, _ := usd.Volume24h.Float64()
		data["volume_24h_usd"] = f
	}
	if usd.MarketCap != nil {
		f, _ := usd.MarketCap.Float64()
		data["market_cap_usd"] = f
	}
	hasDrift, confidence, warnings := s.detector.DetectDrift(data)
	s.detector.LogDriftSummary(hasDrift, confidence, warnings)
}
