// Package api implements the read-only HTTP surface: paginated data
// access, ETL statistics and run history, anomaly and comparison reports,
// Prometheus metrics, and a small admin surface for schema migration.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vanta-labs/cryptoetl/internal/dbstore"
	"github.com/vanta-labs/cryptoetl/internal/metrics"
)

// Handler holds every dependency the route handlers need.
type Handler struct {
	store           *dbstore.Store
	metrics         *metrics.Registry
	migrationSecret string
}

// NewRouter builds the gin.Engine serving every route this service exposes.
func NewRouter(store *dbstore.Store, m *metrics.Registry, allowedOrigins, migrationSecret string) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware(allowedOrigins))
	r.Use(requestTrackingMiddleware(m))

	h := &Handler{store: store, metrics: m, migrationSecret: migrationSecret}

	r.GET("/", h.handleRoot)
	r.GET("/health", h.handleHealth)
	r.GET("/data", h.handleData)
	r.GET("/stats", h.handleStats)
	r.GET("/runs", h.handleRuns)
	r.GET("/compare-runs", h.handleCompareRuns)
	r.GET("/anomalies", h.handleAnomalies)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	admin := r.Group("/admin")
	{
		admin.POST("/migrate", h.handleMigrate)
		admin.GET("/health-detailed", h.handleHealthDetailed)
	}

	return r
}

// corsMiddleware mirrors the engine's own manual CORS handling — a
// comma-separated ALLOWED_ORIGINS env var, "*" meaning wide open.
func corsMiddleware(allowedOrigins string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, x-migration-secret")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestIDKey is the gin context key each request's generated ID is
// stashed under, so /data can echo it back in its response envelope.
const requestIDKey = "request_id"

// requestTrackingMiddleware assigns every request a UUID (mirroring the
// request_id the read API's response bodies carry) and records its
// latency/status into the Prometheus registry.
func requestTrackingMiddleware(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()

		latency := time.Since(start).Seconds()
		c.Writer.Header().Set("X-Latency-MS", strconv.FormatFloat(latency*1000, 'f', 2, 64))
		if m != nil {
			m.RecordAPIRequest(c.FullPath(), c.Request.Method, c.Writer.Status(), latency)
		}
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
