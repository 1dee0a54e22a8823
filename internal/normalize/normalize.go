// Package normalize maps each source's raw record onto the unified
// NormalizedCryptoData schema. Each function is pure: given a raw record
// and the timestamp it was fetched at, it returns the normalized form with
// no I/O of its own.
package normalize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vanta-labs/cryptoetl/internal/models"
)

// CoinPaprika normalizes a CoinPaprika raw record.
func CoinPaprika(raw models.RawCoinPaprika, dataTimestamp time.Time) models.NormalizedCryptoData {
	return models.NormalizedCryptoData{
		Source:            "coinpaprika",
		SourceID:          raw.CoinID,
		Symbol:            upper(raw.Symbol),
		Name:              raw.Name,
		PriceUSD:          raw.PriceUSD,
		MarketCapUSD:      raw.MarketCapUSD,
		Volume24hUSD:      raw.Volume24hUSD,
		Rank:              raw.Rank,
		CirculatingSupply: raw.CirculatingSupply,
		TotalSupply:       raw.TotalSupply,
		MaxSupply:         raw.MaxSupply,
		PercentChange24h:  raw.PercentChange24h,
		AdditionalData: map[string]any{
			"percent_change_1h": decimalOrNil(raw.PercentChange1h),
			"percent_change_7d": decimalOrNil(raw.PercentChange7d),
		},
		DataTimestamp: dataTimestamp,
	}
}

// CoinGecko normalizes a CoinGecko raw record.
func CoinGecko(raw models.RawCoinGecko, dataTimestamp time.Time) models.NormalizedCryptoData {
	return models.NormalizedCryptoData{
		Source:            "coingecko",
		SourceID:          raw.CoinID,
		Symbol:            upper(raw.Symbol),
		Name:              raw.Name,
		PriceUSD:          raw.CurrentPrice,
		MarketCapUSD:      raw.MarketCap,
		Volume24hUSD:      raw.TotalVolume,
		Rank:              raw.MarketCapRank,
		CirculatingSupply: raw.CirculatingSupply,
		TotalSupply:       raw.TotalSupply,
		MaxSupply:         raw.MaxSupply,
		PercentChange24h:  raw.PriceChangePercentage24h,
		AdditionalData: map[string]any{
			"high_24h":         decimalOrNil(raw.High24h),
			"low_24h":          decimalOrNil(raw.Low24h),
			"price_change_24h": decimalOrNil(raw.PriceChange24h),
			"ath":              decimalOrNil(raw.ATH),
			"atl":              decimalOrNil(raw.ATL),
		},
		DataTimestamp: dataTimestamp,
	}
}

// CSV normalizes a CSV raw record. The source ID is synthesized as
// "csv_<SYMBOL>" since the CSV feed carries no independent identifier.
func CSV(raw models.RawCSV, dataTimestamp time.Time) models.NormalizedCryptoData {
	symbol := upper(raw.Symbol)
	return models.NormalizedCryptoData{
		Source:           "csv",
		SourceID:         fmt.Sprintf("csv_%s", symbol),
		Symbol:           symbol,
		Name:             raw.Name,
		PriceUSD:         raw.PriceUSD,
		MarketCapUSD:     raw.MarketCapUSD,
		Volume24hUSD:     raw.Volume24hUSD,
		PercentChange24h: raw.PercentChange24h,
		AdditionalData:   map[string]any{},
		DataTimestamp:    dataTimestamp,
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// decimalOrNil surfaces an optional decimal field for JSONB storage as a
// plain string (additional_data isn't queried on, only round-tripped), or
// nil when the source didn't supply the field.
func decimalOrNil(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
