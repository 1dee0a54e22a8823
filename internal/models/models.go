// Package models defines the shapes shared across ingestion, persistence,
// and the read API: raw per-source payloads, the unified normalized
// record, entity-resolution rows, and run bookkeeping.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawCoinPaprika mirrors the CoinPaprika /tickers response after the
// USD-quote fields have been flattened out of the nested "quotes" object.
type RawCoinPaprika struct {
	CoinID            string
	Symbol            string
	Name              string
	Rank              *int
	PriceUSD          *decimal.Decimal
	Volume24hUSD      *decimal.Decimal
	MarketCapUSD      *decimal.Decimal
	CirculatingSupply *decimal.Decimal
	TotalSupply       *decimal.Decimal
	MaxSupply         *decimal.Decimal
	PercentChange1h   *decimal.Decimal
	PercentChange24h  *decimal.Decimal
	PercentChange7d   *decimal.Decimal
	RawJSON           []byte
}

// RawCoinGecko mirrors a single entry of CoinGecko's /coins/markets response.
type RawCoinGecko struct {
	CoinID                   string
	Symbol                   string
	Name                     string
	CurrentPrice             *decimal.Decimal
	MarketCap                *decimal.Decimal
	MarketCapRank            *int
	TotalVolume              *decimal.Decimal
	High24h                  *decimal.Decimal
	Low24h                   *decimal.Decimal
	PriceChange24h           *decimal.Decimal
	PriceChangePercentage24h *decimal.Decimal
	CirculatingSupply        *decimal.Decimal
	TotalSupply              *decimal.Decimal
	MaxSupply                *decimal.Decimal
	ATH                      *decimal.Decimal
	ATL                      *decimal.Decimal
	RawJSON                  []byte
}

// RawCSV mirrors one row of the local crypto_data.csv feed.
type RawCSV struct {
	Symbol           string
	Name             string
	PriceUSD         *decimal.Decimal
	MarketCapUSD     *decimal.Decimal
	Volume24hUSD     *decimal.Decimal
	PercentChange24h *decimal.Decimal
	RawJSON          []byte
	RowNumber        int
}

// NormalizedCryptoData is the unified schema every source's raw record is
// mapped into before persistence.
type NormalizedCryptoData struct {
	Source            string
	SourceID          string
	MasterCoinID      *int64
	Symbol            string
	Name              string
	PriceUSD          *decimal.Decimal
	MarketCapUSD      *decimal.Decimal
	Volume24hUSD      *decimal.Decimal
	Rank              *int
	CirculatingSupply *decimal.Decimal
	TotalSupply       *decimal.Decimal
	MaxSupply         *decimal.Decimal
	PercentChange24h  *decimal.Decimal
	AdditionalData    map[string]any
	DataTimestamp     time.Time
}

// MasterCoin is a resolved, source-independent cryptocurrency entity.
type MasterCoin struct {
	ID          int64
	Symbol      string
	Name        string
	CanonicalID string
}

// CoinSourceMapping links a (source, source_id) pair to a master coin.
type CoinSourceMapping struct {
	MasterCoinID int64
	Source       string
	SourceID     string
}

// ETLCheckpoint is the resume-on-failure bookkeeping row for one source.
type ETLCheckpoint struct {
	SourceName      string
	CheckpointValue string
	LastSuccessAt   *time.Time
	LastFailureAt   *time.Time
	FailureReason   *string
	Metadata        map[string]any
}

// ETLRun is one execution record for one source.
type ETLRun struct {
	RunID             string
	SourceName        string
	Status            string // "running", "success", "failed"
	StartedAt         time.Time
	CompletedAt       *time.Time
	DurationSeconds   *int
	RecordsFetched    int
	RecordsProcessed  int
	RecordsFailed     int
	ErrorMessage      *string
}

// CryptoDataResponse is one row of the /data API response.
type CryptoDataResponse struct {
	ID               int64            `json:"id"`
	Source           string           `json:"source"`
	Symbol           string           `json:"symbol"`
	Name             string           `json:"name"`
	PriceUSD         *decimal.Decimal `json:"price_usd"`
	MarketCapUSD     *decimal.Decimal `json:"market_cap_usd"`
	Volume24hUSD     *decimal.Decimal `json:"volume_24h_usd"`
	Rank             *int             `json:"rank"`
	PercentChange24h *decimal.Decimal `json:"percent_change_24h"`
	DataTimestamp    time.Time        `json:"data_timestamp"`
}

// PaginationMetadata describes a page of results.
type PaginationMetadata struct {
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalRecords int `json:"total_records"`
	TotalPages   int `json:"total_pages"`
}

// DataAPIResponse is the full /data response envelope.
type DataAPIResponse struct {
	RequestID    string               `json:"request_id"`
	APILatencyMS float64              `json:"api_latency_ms"`
	Data         []CryptoDataResponse `json:"data"`
	Pagination   PaginationMetadata   `json:"pagination"`
}

// ETLSourceStats is per-source aggregate stats for /stats.
type ETLSourceStats struct {
	Records     int        `json:"records"`
	LastRun     *time.Time `json:"last_run"`
	LastSuccess *time.Time `json:"last_success"`
	LastFailure *time.Time `json:"last_failure"`
}

// StatsResponse is the full /stats response.
type StatsResponse struct {
	TotalRuns               int                       `json:"total_runs"`
	LastSuccess             *time.Time                `json:"last_success"`
	LastFailure             *time.Time                `json:"last_failure"`
	TotalRecordsProcessed   int                       `json:"total_records_processed"`
	AverageDurationSeconds  *float64                  `json:"average_duration_seconds"`
	Sources                 map[string]ETLSourceStats `json:"sources"`
}

// ETLRunSummary is one entry of the /runs response.
type ETLRunSummary struct {
	RunID            string     `json:"run_id"`
	SourceName       string     `json:"source_name"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	DurationSeconds  *int       `json:"duration_seconds"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsFailed    int        `json:"records_failed"`
}

// RunComparison is the /compare-runs response.
type RunComparison struct {
	Run1ID                  string   `json:"run1_id"`
	Run2ID                  string   `json:"run2_id"`
	SourceName              string   `json:"source_name"`
	RecordsDiff             int      `json:"records_diff"`
	DurationDiffSeconds     int      `json:"duration_diff_seconds"`
	RecordsDiffPercentage   float64  `json:"records_diff_percentage"`
	DurationDiffPercentage  float64  `json:"duration_diff_percentage"`
	AnomalyDetected         bool     `json:"anomaly_detected"`
	AnomalyReasons          []string `json:"anomaly_reasons"`
}

// AnomalyReport is one entry of the /anomalies response.
type AnomalyReport struct {
	RunID      string   `json:"run_id"`
	SourceName string   `json:"source_name"`
	Anomalies  []string `json:"anomalies"`
	Severity   string   `json:"severity"` // low, medium, high
}

// HealthResponse is the /health response.
type HealthResponse struct {
	Status   string         `json:"status"`
	Database map[string]any `json:"database"`
	ETL      map[string]any `json:"etl"`
}
