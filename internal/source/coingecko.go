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

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko fetches the top-100 market listing from the CoinGecko API.
type CoinGecko struct {
	store    *dbstore.Store
	apiKey   string
	client   *http.Client
	limiter  *limiterWrapper
	detector *drift.Detector
}

// NewCoinGecko builds the CoinGecko adapter, rate-limited to
// requestsPerPeriod calls every periodSeconds.
func NewCoinGecko(store *dbstore.Store, apiKey string, requestsPerPeriod, periodSeconds int) *CoinGecko {
	d := drift.New("coingecko")
	d.SetExpectedSchema(drift.CoinGeckoSchema)
	return &CoinGecko{
		store:    store,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  newLimiterWrapper(requestsPerPeriod, periodSeconds),
		detector: d,
	}
}

func (s *CoinGecko) Name() string { return "coingecko" }

type cgMarketEntry struct {
	ID                       string           `json:"id"`
	Symbol                   string           `json:"symbol"`
	Name                     string           `json:"name"`
	CurrentPrice             *decimal.Decimal `json:"current_price"`
	MarketCap                *decimal.Decimal `json:"market_cap"`
	MarketCapRank            *int             `json:"market_cap_rank"`
	TotalVolume              *decimal.Decimal `json:"total_volume"`
	High24h                  *decimal.Decimal `json:"high_24h"`
	Low24h                   *decimal.Decimal `json:"low_24h"`
	PriceChange24h           *decimal.Decimal `json:"price_change_24h"`
	PriceChangePercentage24h *decimal.Decimal `json:"price_change_percentage_24h"`
	CirculatingSupply        *decimal.Decimal `json:"circulating_supply"`
	TotalSupply              *decimal.Decimal `json:"total_supply"`
	MaxSupply                *decimal.Decimal `json:"max_supply"`
	ATH                      *decimal.Decimal `json:"ath"`
	ATL                      *decimal.Decimal `json:"atl"`
}

// Sync fetches the current market listing, persists it raw, normalizes
// each record, resolves its master coin, and upserts the normalized row.
func (s *CoinGecko) Sync(ctx context.Context, resolver masterResolver) (Result, error) {
	if err := s.limiter.wait(ctx); err != nil {
		return Result{}, err
	}

	url := fmt.Sprintf(
		"%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=100&page=1&sparkline=false",
		coinGeckoBaseURL,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build coingecko request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch coingecko markets: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var rawItems []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rawItems); err != nil {
		return Result{}, fmt.Errorf("decode coingecko response: %w", err)
	}

	records := make([]models.RawCoinGecko, 0, len(rawItems))
	var invalid int
	for _, raw := range rawItems {
		var e cgMarketEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			log.Printf("[coingecko] skipping malformed entry: %v", err)
			continue
		}
		if e.ID == "" {
			log.Printf("[coingecko] dropping entry: missing required field id")
			invalid++
			continue
		}

		s.checkDrift(e)

		records = append(records, models.RawCoinGecko{
			CoinID:                   e.ID,
			Symbol:                   e.Symbol,
			Name:                     e.Name,
			CurrentPrice:             e.CurrentPrice,
			MarketCap:                e.MarketCap,
			MarketCapRank:            e.MarketCapRank,
			TotalVolume:              e.TotalVolume,
			High24h:                  e.High24h,
			Low24h:                   e.Low24h,
			PriceChange24h:           e.PriceChange24h,
			PriceChangePercentage24h: e.PriceChangePercentage24h,
			CirculatingSupply:        e.CirculatingSupply,
			TotalSupply:              e.TotalSupply,
			MaxSupply:                e.MaxSupply,
			ATH:                      e.ATH,
			ATL:                      e.ATL,
			RawJSON:                  raw,
		})
	}

	dataTimestamp := time.Now().UTC()
	saved, err := s.store.SaveRawCoinGecko(ctx, records, dataTimestamp)
	if err != nil {
		return Result{Fetched: len(records)}, fmt.Errorf("save raw coingecko: %w", err)
	}
	log.Printf("[coingecko] fetched=%d saved=%d", len(records), saved)

	result := Result{Fetched: len(records), Failed: invalid}
	normalized := make([]models.NormalizedCryptoData, 0, len(records))
	for _, r := range records {
		n := normalize.CoinGecko(r, dataTimestamp)
		masterID, err := resolver.Resolve(ctx, n.Source, n.SourceID, n.Symbol, n.Name)
		if err != nil {
			log.Printf("[coingecko] entity resolution failed for %s: %v", n.SourceID, err)
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
		return result, fmt.Errorf("upsert normalized coingecko batch: %w", err)
	}
	return result, nil
}

func (s *CoinGecko) checkDrift(e cgMarketEntry) {
	data := map[string]any{
		"coin_id": e.ID,
		"symbol":  e.Symbol,
		"name":    e.Name,
	}
	if e.CurrentPrice != nil {
		f, _ := e.CurrentPrice.Float64()
		data["current_price"] = f
	}
	if e.MarketCap != nil {
		f, _ := e.MarketCap.Float64()
		data["market_cap"] = f
	}
	if e.TotalVolume != nil {
		f, _ := e.TotalVolume.Float64()
		data["total_volume"] = f
	}
	hasDrift, confidence, warnings := s.detector.DetectDrift(data)
	s.detector.LogDriftSummary(hasDrift, confidence, warnings)
}
