// Package metrics exposes the service's Prometheus collectors: ETL run
// counters/histograms, API request counters/histograms, and a handful of
// gauges refreshed from the database just before each scrape.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vanta-labs/cryptoetl/internal/dbstore"
)

// Registry owns every collector this service exports, registered against
// a private prometheus.Registry rather than the global default — so tests
// can build as many Registries as they like without collector collisions.
type Registry struct {
	reg *prometheus.Registry

	etlRunsTotal             *prometheus.CounterVec
	etlRecordsProcessedTotal *prometheus.CounterVec
	etlDurationSeconds       *prometheus.HistogramVec
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	dbConnectionsActive      prometheus.Gauge
	normalizedRecordsTotal   prometheus.Gauge
	etlLastSuccessTimestamp  *prometheus.GaugeVec

	store *dbstore.Store
}

// New builds a Registry with every collector registered. store supplies
// the database-backed gauge values refreshed on each Handler call.
func New(store *dbstore.Store) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg:   reg,
		store: store,

		etlRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_runs_total",
			Help: "Total number of ETL runs",
		}, []string{"source", "status"}),

		etlRecordsProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "etl_records_processed_total",
			Help: "Total number of records processed",
		}, []string{"source"}),

		etlDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "etl_duration_seconds",
			Help:    "ETL run duration in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"source"}),

		apiRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		}, []string{"endpoint", "method", "status_code"}),

		apiLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"endpoint"}),

		dbConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		}),

		normalizedRecordsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "normalized_records_total",
			Help: "Total number of records in normalized table",
		}),

		etlLastSuccessTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "etl_last_success_timestamp",
			Help: "Timestamp of last successful ETL run",
		}, []string{"source"}),
	}

	reg.MustRegister(
		r.etlRunsTotal,
		r.etlRecordsProcessedTotal,
		r.etlDurationSeconds,
		r.apiRequestsTotal,
		r.apiLatencySeconds,
		r.dbConnectionsActive,
		r.normalizedRecordsTotal,
		r.etlLastSuccessTimestamp,
	)
	return r
}

// RecordETLRun tracks the outcome of one orchestrator run.
func (r *Registry) RecordETLRun(sourceName, status string, durationSeconds float64, recordsProcessed int) {
	r.etlRunsTotal.WithLabelValues(sourceName, status).Inc()
	r.etlDurationSeconds.WithLabelValues(sourceName).Observe(durationSeconds)
	if status == "success" {
		r.etlRecordsProcessedTotal.WithLabelValues(sourceName).Add(float64(recordsProcessed))
	}
}

// RecordAPIRequest tracks one served HTTP request.
func (r *Registry) RecordAPIRequest(endpoint, method string, statusCode int, latencySeconds float64) {
	r.apiRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
	r.apiLatencySeconds.WithLabelValues(endpoint).Observe(latencySeconds)
}

// Handler refreshes the database-backed gauges and returns an
// http.Handler serving the current exposition-format snapshot.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.refreshGauges(req.Context())
		promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}).ServeHTTP(w, req)
	})
}

func (r *Registry) refreshGauges(ctx context.Context) {
	if r.store == nil {
		return
	}
	if count, err := r.store.NormalizedRecordCount(ctx); err == nil {
		r.normalizedRecordsTotal.Set(float64(count))
	}
	if timestamps, err := r.store.LastSuccessTimestamps(ctx); err == nil {
		for source, ts := range timestamps {
			r.etlLastSuccessTimestamp.WithLabelValues(source).Set(ts)
		}
	}
	stat := r.store.APIPool.Stat()
	r.dbConnectionsActive.Set(float64(stat.AcquiredConns() + stat.IdleConns()))
}
