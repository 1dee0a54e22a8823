// Package config loads CryptoETL's settings from the environment, matching
// the flat env-var-driven style the engine's own cmd/main.go already uses.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Settings holds every environment-driven knob for the service.
type Settings struct {
	DatabaseURL     string // DATABASE_URL — API/read pool
	DatabaseURLSync string // DATABASE_URL_SYNC — ingestion pool

	CoinPaprikaAPIKey string // COINPAPRIKA_API_KEY (optional)
	CoinGeckoAPIKey   string // COINGECKO_API_KEY (optional)

	APIHost string // API_HOST
	APIPort int    // API_PORT

	ETLScheduleMinutes    int // ETL_SCHEDULE_MINUTES
	ETLBatchSize          int // ETL_BATCH_SIZE
	ETLRateLimitRequests  int // ETL_RATE_LIMIT_REQUESTS
	ETLRateLimitPeriod    int // ETL_RATE_LIMIT_PERIOD (seconds)

	CSVDataPath string // CSV_DATA_PATH

	Environment string // ENVIRONMENT

	MigrationSecret string // MIGRATION_SECRET
	AllowedOrigins  string // ALLOWED_ORIGINS
}

// Load reads Settings from the environment. DATABASE_URL and
// DATABASE_URL_SYNC are required; everything else falls back to the same
// defaults as the Python original this service was rewritten from.
func Load() (Settings, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return Settings{}, fmt.Errorf("DATABASE_URL must be set")
	}
	dbURLSync := os.Getenv("DATABASE_URL_SYNC")
	if dbURLSync == "" {
		return Settings{}, fmt.Errorf("DATABASE_URL_SYNC must be set")
	}

	return Settings{
		DatabaseURL:     dbURL,
		DatabaseURLSync: dbURLSync,

		CoinPaprikaAPIKey: os.Getenv("COINPAPRIKA_API_KEY"),
		CoinGeckoAPIKey:   os.Getenv("COINGECKO_API_KEY"),

		APIHost: getEnvOrDefault("API_HOST", "0.0.0.0"),
		APIPort: getEnvIntOrDefault("API_PORT", 8000),

		ETLScheduleMinutes:   getEnvIntOrDefault("ETL_SCHEDULE_MINUTES", 30),
		ETLBatchSize:         getEnvIntOrDefault("ETL_BATCH_SIZE", 1000),
		ETLRateLimitRequests: getEnvIntOrDefault("ETL_RATE_LIMIT_REQUESTS", 10),
		ETLRateLimitPeriod:   getEnvIntOrDefault("ETL_RATE_LIMIT_PERIOD", 60),

		CSVDataPath: getEnvOrDefault("CSV_DATA_PATH", "/app/data/crypto_data.csv"),

		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		MigrationSecret: getEnvOrDefault("MIGRATION_SECRET", "cryptoetl-migrate-2024"),
		AllowedOrigins:  getEnvOrDefault("ALLOWED_ORIGINS", "*"),
	}, nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
