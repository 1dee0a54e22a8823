package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vanta-labs/cryptoetl/internal/models"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCoinPaprika_FieldMapping(t *testing.T) {
	ts := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	raw := models.RawCoinPaprika{
		CoinID:           "btc-bitcoin",
		Symbol:           "btc",
		Name:             "Bitcoin",
		PriceUSD:         decPtr("65000.12"),
		PercentChange1h:  decPtr("0.5"),
		PercentChange7d:  nil,
	}

	got := CoinPaprika(raw, ts)

	if got.Source != "coinpaprika" {
		t.Errorf("expected source coinpaprika, got %q", got.Source)
	}
	if got.SourceID != "btc-bitcoin" {
		t.Errorf("expected source_id passed through unchanged, got %q", got.SourceID)
	}
	if got.Symbol != "BTC" {
		t.Errorf("expected symbol upper-cased to BTC, got %q", got.Symbol)
	}
	if got.PriceUSD == nil || !got.PriceUSD.Equal(decimal.RequireFromString("65000.12")) {
		t.Errorf("expected price_usd 65000.12, got %v", got.PriceUSD)
	}
	if got.AdditionalData["percent_change_1h"] != "0.5" {
		t.Errorf("expected additional_data.percent_change_1h = \"0.5\", got %v", got.AdditionalData["percent_change_1h"])
	}
	if got.AdditionalData["percent_change_7d"] != nil {
		t.Errorf("expected additional_data.percent_change_7d = nil for a nil source field, got %v", got.AdditionalData["percent_change_7d"])
	}
	if !got.DataTimestamp.Equal(ts) {
		t.Errorf("expected data_timestamp to be passed through, got %v", got.DataTimestamp)
	}
}

func TestCoinGecko_FieldMapping(t *testing.T) {
	ts := time.Now()
	raw := models.RawCoinGecko{
		CoinID:       "ethereum",
		Symbol:       "eth",
		Name:         "Ethereum",
		CurrentPrice: decPtr("3000"),
		High24h:      decPtr("3100"),
	}

	got := CoinGecko(raw, ts)

	if got.Source != "coingecko" {
		t.Errorf("expected source coingecko, got %q", got.Source)
	}
	if got.Symbol != "ETH" {
		t.Errorf("expected symbol ETH, got %q", got.Symbol)
	}
	if got.PriceUSD == nil || !got.PriceUSD.Equal(decimal.RequireFromString("3000")) {
		t.Errorf("expected price_usd sourced from current_price, got %v", got.PriceUSD)
	}
	if got.AdditionalData["high_24h"] != "3100" {
		t.Errorf("expected additional_data.high_24h = \"3100\", got %v", got.AdditionalData["high_24h"])
	}
	if got.AdditionalData["ath"] != nil {
		t.Errorf("expected additional_data.ath = nil when unset, got %v", got.AdditionalData["ath"])
	}
}

func TestCSV_SourceIDSynthesis(t *testing.T) {
	ts := time.Now()
	raw := models.RawCSV{
		Symbol:   "sol",
		Name:     "Solana",
		PriceUSD: decPtr("150"),
	}

	got := CSV(raw, ts)

	if got.Source != "csv" {
		t.Errorf("expected source csv, got %q", got.Source)
	}
	if got.SourceID != "csv_SOL" {
		t.Errorf("expected synthesized source_id csv_SOL, got %q", got.SourceID)
	}
	if got.Symbol != "SOL" {
		t.Errorf("expected symbol SOL, got %q", got.Symbol)
	}
}

func TestDecimalOrNil(t *testing.T) {
	if v := decimalOrNil(nil); v != nil {
		t.Errorf("expected nil *decimal.Decimal to produce nil, got %v", v)
	}
	d := decimal.RequireFromString("1.5")
	if v := decimalOrNil(&d); v != "1.5" {
		t.Errorf("expected \"1.5\", got %v", v)
	}
}

func TestUpper(t *testing.T) {
	if got := upper("btc"); got != "BTC" {
		t.Errorf("upper(\"btc\") = %q, want BTC", got)
	}
	if got := upper("already-UP"); got != "ALREADY-UP" {
		t.Errorf("upper(\"already-UP\") = %q, want ALREADY-UP", got)
	}
}
