package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vanta-labs/cryptoetl/internal/analytics"
	"github.com/vanta-labs/cryptoetl/internal/dbstore"
	"github.com/vanta-labs/cryptoetl/internal/models"
)

// queryIntRange parses the named query parameter as an integer in [min, max],
// returning def when the parameter is absent. On a non-integer value or a
// value outside the range it writes a 422 response itself and returns
// ok=false, mirroring the automatic Query(ge=..., le=...) validation of the
// FastAPI service this was rewritten from.
func queryIntRange(c *gin.Context, name string, def, min, max int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("%s must be an integer", name),
		})
		return 0, false
	}
	if n < min || n > max {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("%s must be between %d and %d", name, min, max),
		})
		return 0, false
	}
	return n, true
}

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "cryptoetl",
		"status":  "running",
	})
}

// handleHealth reports database connectivity and the most recent
// successful ETL run, defaulting to an "unknown" ETL status when no
// run has ever succeeded.
func (h *Handler) handleHealth(c *gin.Context) {
	connected, latencyMs := h.store.PingLatency(c.Request.Context())

	etl := gin.H{
		"last_run":          nil,
		"status":            "unknown",
		"records_processed": 0,
	}
	if completedAt, status, recordsProcessed, found, err := h.store.LastSuccessfulRun(c.Request.Context()); err == nil && found {
		etl["last_run"] = formatTimePtr(completedAt)
		etl["status"] = status
		etl["records_processed"] = recordsProcessed
	}

	status := "healthy"
	if !connected {
		status = "unhealthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"database": gin.H{
			"connected":  connected,
			"latency_ms": round2(latencyMs),
		},
		"etl": etl,
	})
}

// handleData serves a filtered, paginated slice of normalized_crypto_data.
// page must be >= 1 and page_size in [1, 1000]; either out of range
// responds 422 instead of silently clamping.
func (h *Handler) handleData(c *gin.Context) {
	start := time.Now()

	page, ok := queryIntRange(c, "page", 1, 1, math.MaxInt32)
	if !ok {
		return
	}
	pageSize, ok := queryIntRange(c, "page_size", 50, 1, 1000)
	if !ok {
		return
	}

	f := dbstore.DataFilter{
		Source:   c.Query("source"),
		Symbol:   c.Query("symbol"),
		Page:     page,
		PageSize: pageSize,
	}
	if v := c.Query("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.StartDate = &t
		}
	}
	if v := c.Query("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.EndDate = &t
		}
	}

	records, total, err := h.store.GetData(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(f.PageSize)))
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":    requestID(c),
		"api_latency_ms": round2(time.Since(start).Seconds() * 1000),
		"data":          records,
		"pagination": gin.H{
			"page":          f.Page,
			"page_size":     f.PageSize,
			"total_records": total,
			"total_pages":   totalPages,
		},
	})
}

func (h *Handler) handleStats(c *gin.Context) {
	stats, err := h.store.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleRuns lists recent etl_runs. limit must be in [1, 100]; out of
// range responds 422.
func (h *Handler) handleRuns(c *gin.Context) {
	limit, ok := queryIntRange(c, "limit", 10, 1, 100)
	if !ok {
		return
	}
	f := dbstore.RunsFilter{
		Limit:  limit,
		Source: c.Query("source"),
		Status: c.Query("status"),
	}

	runs, err := h.store.GetRuns(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// handleCompareRuns diffs two runs of the same source, both identified by
// run_id query params.
func (h *Handler) handleCompareRuns(c *gin.Context) {
	run1 := c.Query("run1_id")
	run2 := c.Query("run2_id")
	if run1 == "" || run2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run1_id and run2_id are required"})
		return
	}

	pair, err := h.store.GetRunPair(c.Request.Context(), run1, run2)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	comparison, err := analytics.CompareRuns(run1, run2, pair)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// handleAnomalies flags recent runs (within the lookback window, in
// [1, 168] hours) that deviate from their source's historical norm. An
// hours value outside that range responds 422.
func (h *Handler) handleAnomalies(c *gin.Context) {
	hours, ok := queryIntRange(c, "hours", 24, 1, 168)
	if !ok {
		return
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	bySource, err := h.store.GetRunsSince(c.Request.Context(), cutoff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	reports := analytics.DetectAnomalies(bySource)
	if reports == nil {
		reports = []models.AnomalyReport{}
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": reports, "window_hours": hours})
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
