package main

import (
	"context"
	"fmt"
	"log"

	"github.com/vanta-labs/cryptoetl/internal/api"
	"github.com/vanta-labs/cryptoetl/internal/checkpoint"
	"github.com/vanta-labs/cryptoetl/internal/config"
	"github.com/vanta-labs/cryptoetl/internal/dbstore"
	"github.com/vanta-labs/cryptoetl/internal/metrics"
	"github.com/vanta-labs/cryptoetl/internal/orchestrator"
	"github.com/vanta-labs/cryptoetl/internal/resolver"
	"github.com/vanta-labs/cryptoetl/internal/source"
)

func main() {
	log.Println("Starting CryptoETL...")

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx := context.Background()

	store, err := dbstore.Connect(ctx, settings.DatabaseURL, settings.DatabaseURLSync)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to PostgreSQL: %v", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	res := resolver.New(store.IngestPool)
	metricsRegistry := metrics.New(store)

	orch := orchestrator.New(store, res, metricsRegistry)

	cpCoinPaprika := checkpoint.New(store.IngestPool, "coinpaprika")
	orch.Register(
		source.NewCoinPaprika(store, settings.CoinPaprikaAPIKey, settings.ETLRateLimitRequests, settings.ETLRateLimitPeriod),
		cpCoinPaprika,
	)

	cpCoinGecko := checkpoint.New(store.IngestPool, "coingecko")
	orch.Register(
		source.NewCoinGecko(store, settings.CoinGeckoAPIKey, settings.ETLRateLimitRequests, settings.ETLRateLimitPeriod),
		cpCoinGecko,
	)

	cpCSV := checkpoint.New(store.IngestPool, "csv")
	orch.Register(
		source.NewCSV(store, cpCSV, settings.CSVDataPath),
		cpCSV,
	)

	schedulerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	scheduler := orchestrator.NewScheduler(orch, settings.ETLScheduleMinutes)
	go scheduler.Run(schedulerCtx)

	if settings.Environment == "production" {
		log.Println("running in production mode")
	}

	r := api.NewRouter(store, metricsRegistry, settings.AllowedOrigins, settings.MigrationSecret)

	addr := fmt.Sprintf("%s:%d", settings.APIHost, settings.APIPort)
	log.Printf("API listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("FATAL: failed to start server: %v", err)
	}
}
