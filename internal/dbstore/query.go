package dbstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vanta-labs/cryptoetl/internal/models"
)

// DataFilter narrows a GetData query.
type DataFilter struct {
	Source    string
	Symbol    string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// GetData returns a page of normalized_crypto_data rows matching the
// filter, most recent first, plus the total matching row count.
func (s *Store) GetData(ctx context.Context, f DataFilter) ([]models.CryptoDataResponse, int, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Source != "" {
		where = append(where, "source = "+arg(f.Source))
	}
	if f.Symbol != "" {
		where = append(where, "UPPER(symbol) = UPPER("+arg(f.Symbol)+")")
	}
	if f.StartDate != nil {
		where = append(where, "data_timestamp >= "+arg(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "data_timestamp <= "+arg(*f.EndDate))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countSQL := "SELECT COUNT(*) FROM normalized_crypto_data " + whereSQL
	if err := s.APIPool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count normalized_crypto_data: %w", err)
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	limitArg := arg(pageSize)
	offsetArg := arg(offset)
	dataSQL := fmt.Sprintf(`
		SELECT id, source, symbol, name, price_usd, market_cap_usd,
		       volume_24h_usd, rank, percent_change_24h, data_timestamp
		FROM normalized_crypto_data
		%s
		ORDER BY data_timestamp DESC, id DESC
		LIMIT %s OFFSET %s
	`, whereSQL, limitArg, offsetArg)

	rows, err := s.APIPool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query normalized_crypto_data: %w", err)
	}
	defer rows.Close()

	var out []models.CryptoDataResponse
	for rows.Next() {
		var r models.CryptoDataResponse
		if err := rows.Scan(&r.ID, &r.Source, &r.Symbol, &r.Name, &r.PriceUSD,
			&r.MarketCapUSD, &r.Volume24hUSD, &r.Rank, &r.PercentChange24h,
			&r.DataTimestamp); err != nil {
			return nil, 0, fmt.Errorf("scan normalized_crypto_data row: %w", err)
		}
		out = append(out, r)
	}
	if out == nil {
		out = []models.CryptoDataResponse{}
	}
	return out, total, nil
}

// GetStats aggregates overall and per-source run statistics for /stats.
func (s *Store) GetStats(ctx context.Context) (models.StatsResponse, error) {
	var resp models.StatsResponse
	resp.Sources = map[string]models.ETLSourceStats{}

	const overallSQL = `
		SELECT
			COUNT(*) AS total_runs,
			MAX(CASE WHEN status = 'success' THEN completed_at END) AS last_success,
			MAX(CASE WHEN status = 'failed' THEN completed_at END) AS last_failure,
			COALESCE(SUM(records_processed), 0) AS total_records,
			AVG(duration_seconds) AS avg_duration
		FROM etl_runs
	`
	var avgDuration *float64
	if err := s.APIPool.QueryRow(ctx, overallSQL).Scan(
		&resp.TotalRuns, &resp.LastSuccess, &resp.LastFailure,
		&resp.TotalRecordsProcessed, &avgDuration,
	); err != nil {
		return resp, fmt.Errorf("query overall etl_runs stats: %w", err)
	}
	resp.AverageDurationSeconds = avgDuration

	const bySourceSQL = `
		SELECT
			source_name,
			COALESCE(SUM(records_processed), 0) AS total_records,
			MAX(completed_at) AS last_run,
			MAX(CASE WHEN status = 'success' THEN completed_at END) AS last_success,
			MAX(CASE WHEN status = 'failed' THEN completed_at END) AS last_failure
		FROM etl_runs
		GROUP BY source_name
	`
	rows, err := s.APIPool.Query(ctx, bySourceSQL)
	if err != nil {
		return resp, fmt.Errorf("query per-source etl_runs stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceName string
		var st models.ETLSourceStats
		if err := rows.Scan(&sourceName, &st.Records, &st.LastRun, &st.LastSuccess, &st.LastFailure); err != nil {
			return resp, fmt.Errorf("scan per-source etl_runs stats: %w", err)
		}
		resp.Sources[sourceName] = st
	}
	return resp, nil
}

// RunsFilter narrows a GetRuns query.
type RunsFilter struct {
	Limit  int
	Source string
	Status string
}

// GetRuns lists recent etl_runs, most recently started first.
func (s *Store) GetRuns(ctx context.Context, f RunsFilter) ([]models.ETLRunSummary, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Source != "" {
		where = append(where, "source_name = "+arg(f.Source))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	limitArg := arg(limit)

	sql := fmt.Sprintf(`
		SELECT run_id, source_name, status, started_at, completed_at,
		       duration_seconds, records_processed, records_failed
		FROM etl_runs
		%s
		ORDER BY started_at DESC
		LIMIT %s
	`, whereSQL, limitArg)

	rows, err := s.APIPool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query etl_runs: %w", err)
	}
	defer rows.Close()

	var out []models.ETLRunSummary
	for rows.Next() {
		var r models.ETLRunSummary
		if err := rows.Scan(&r.RunID, &r.SourceName, &r.Status, &r.StartedAt,
			&r.CompletedAt, &r.DurationSeconds, &r.RecordsProcessed, &r.RecordsFailed); err != nil {
			return nil, fmt.Errorf("scan etl_runs row: %w", err)
		}
		out = append(out, r)
	}
	if out == nil {
		out = []models.ETLRunSummary{}
	}
	return out, nil
}

// RunPair is the subset of etl_runs fields compare-runs needs for two runs.
type RunPair struct {
	RunID      string
	Source     string
	Records    int
	DurationS  int
}

// GetRunPair fetches the (source, records, duration) tuple for two run IDs.
func (s *Store) GetRunPair(ctx context.Context, run1, run2 string) (map[string]RunPair, error) {
	rows, err := s.APIPool.Query(ctx, `
		SELECT run_id, source_name, COALESCE(records_processed,0), COALESCE(duration_seconds,0)
		FROM etl_runs WHERE run_id IN ($1, $2)
	`, run1, run2)
	if err != nil {
		return nil, fmt.Errorf("query run pair: %w", err)
	}
	defer rows.Close()

	out := map[string]RunPair{}
	for rows.Next() {
		var rp RunPair
		if err := rows.Scan(&rp.RunID, &rp.Source, &rp.Records, &rp.DurationS); err != nil {
			return nil, fmt.Errorf("scan run pair row: %w", err)
		}
		out[rp.RunID] = rp
	}
	return out, nil
}

// AnomalyRun is one run's bookkeeping fields as used by anomaly detection.
type AnomalyRun struct {
	RunID    string
	Status   string
	Records  int
	Duration int
	Failed   int
}

// GetRunsSince returns runs started at or after cutoff, grouped by source,
// most recent first within each source — mirroring /anomalies' query.
func (s *Store) GetRunsSince(ctx context.Context, cutoff time.Time) (map[string][]AnomalyRun, error) {
	rows, err := s.APIPool.Query(ctx, `
		SELECT run_id, source_name, status, COALESCE(records_processed,0),
		       COALESCE(duration_seconds,0), COALESCE(records_failed,0)
		FROM etl_runs
		WHERE started_at >= $1
		ORDER BY source_name, started_at DESC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query runs since %s: %w", cutoff, err)
	}
	defer rows.Close()

	bySource := map[string][]AnomalyRun{}
	for rows.Next() {
		var source string
		var r AnomalyRun
		if err := rows.Scan(&r.RunID, &source, &r.Status, &r.Records, &r.Duration, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan anomaly run row: %w", err)
		}
		bySource[source] = append(bySource[source], r)
	}
	return bySource, nil
}

// LastSuccessfulRun returns the most recently completed run with
// status='success', used by /health.
func (s *Store) LastSuccessfulRun(ctx context.Context) (completedAt *time.Time, status string, recordsProcessed int, found bool, err error) {
	row := s.APIPool.QueryRow(ctx, `
		SELECT completed_at, status, COALESCE(records_processed,0)
		FROM etl_runs
		WHERE status = 'success'
		ORDER BY completed_at DESC
		LIMIT 1
	`)
	if scanErr := row.Scan(&completedAt, &status, &recordsProcessed); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, "", 0, false, nil
		}
		return nil, "", 0, false, scanErr
	}
	return completedAt, status, recordsProcessed, true, nil
}

// NormalizedRecordCount returns the total row count of normalized_crypto_data,
// for the normalized_records_total gauge.
func (s *Store) NormalizedRecordCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.APIPool.QueryRow(ctx, "SELECT COUNT(*) FROM normalized_crypto_data").Scan(&n); err != nil {
		return 0, fmt.Errorf("count normalized_crypto_data: %w", err)
	}
	return n, nil
}

// LastSuccessTimestamps returns, per source, the unix timestamp of its most
// recently completed successful run, for the etl_last_success_timestamp gauge.
func (s *Store) LastSuccessTimestamps(ctx context.Context) (map[string]float64, error) {
	rows, err := s.APIPool.Query(ctx, `
		SELECT source_name, EXTRACT(EPOCH FROM MAX(completed_at))
		FROM etl_runs
		WHERE status = 'success'
		GROUP BY source_name
	`)
	if err != nil {
		return nil, fmt.Errorf("query last success timestamps: %w", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var sourceName string
		var ts float64
		if err := rows.Scan(&sourceName, &ts); err != nil {
			return nil, fmt.Errorf("scan last success timestamp row: %w", err)
		}
		out[sourceName] = ts
	}
	return out, nil
}

// TableCounts returns row counts for every table this service manages, for
// the supplemented /admin/health-detailed endpoint.
func (s *Store) TableCounts(ctx context.Context) (map[string]int64, error) {
	tables := []string{
		"raw_coinpaprika", "raw_coingecko", "raw_csv",
		"normalized_crypto_data", "master_coins", "coin_source_mappings",
		"etl_checkpoints", "etl_runs",
	}
	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		if err := s.APIPool.QueryRow(ctx, "SELECT COUNT(*) FROM "+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		counts[t] = n
	}
	return counts, nil
}
