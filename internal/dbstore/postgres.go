// Package dbstore wraps the two Postgres connection pools CryptoETL uses —
// a small one for ingestion writes, a larger one for API reads — and every
// SQL statement the service issues against them.
package dbstore

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store holds both connection pools. APIPool serves the read API (sized to
// match concurrent request load); IngestPool serves the ETL orchestrator
// (sized to match a handful of concurrent per-source transactions).
type Store struct {
	APIPool    *pgxpool.Pool
	IngestPool *pgxpool.Pool
}

// Connect opens both pools and pings each. apiDSN backs the read API with
// up to 30 connections (pool_size=10 + max_overflow=20); ingestDSN backs
// ETL writes with up to 15 (pool_size=5 + max_overflow=10) — matching
// services/database.py's async/sync engine split.
func Connect(ctx context.Context, apiDSN, ingestDSN string) (*Store, error) {
	apiCfg, err := pgxpool.ParseConfig(apiDSN)
	if err != nil {
		return nil, fmt.Errorf("parsing API database config: %w", err)
	}
	apiCfg.MaxConns = 30 // pool_size=10 + max_overflow=20

	ingestCfg, err := pgxpool.ParseConfig(ingestDSN)
	if err != nil {
		return nil, fmt.Errorf("parsing ingest database config: %w", err)
	}
	ingestCfg.MaxConns = 15 // pool_size=5 + max_overflow=10

	apiPool, err := pgxpool.NewWithConfig(ctx, apiCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect API pool: %w", err)
	}
	if err := apiPool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("API pool ping failed: %w", err)
	}

	ingestPool, err := pgxpool.NewWithConfig(ctx, ingestCfg)
	if err != nil {
		apiPool.Close()
		return nil, fmt.Errorf("unable to connect ingest pool: %w", err)
	}
	if err := ingestPool.Ping(ctx); err != nil {
		apiPool.Close()
		return nil, fmt.Errorf("ingest pool ping failed: %w", err)
	}

	log.Println("[dbstore] connected to PostgreSQL (API + ingest pools)")
	return &Store{APIPool: apiPool, IngestPool: ingestPool}, nil
}

// Close releases both pools.
func (s *Store) Close() {
	if s.IngestPool != nil {
		s.IngestPool.Close()
	}
	if s.APIPool != nil {
		s.APIPool.Close()
	}
}

// InitSchema applies the embedded schema.sql, creating every table this
// service needs if it doesn't already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.IngestPool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Println("[dbstore] schema initialized")
	return nil
}

// PingLatency reports whether the API pool can reach the database and how
// long a round-trip SELECT 1 took.
func (s *Store) PingLatency(ctx context.Context) (bool, float64) {
	var ok int
	start := time.Now()
	err := s.APIPool.QueryRow(ctx, "SELECT 1").Scan(&ok)
	elapsed := time.Since(start)
	if err != nil {
		return false, 0
	}
	return true, float64(elapsed.Microseconds()) / 1000.0
}
