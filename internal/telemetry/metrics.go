// Package telemetry provides application-level observability for BotVault:
// the slog default logger and Prometheus metrics.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP listener started by cmd/server (default port
// 9090, path /metrics). The endpoint is deliberately not part of the Gin
// router so it stays off the public ingress and out of rate limiting.
//
// HTTP metrics use c.FullPath() (route template such as /v1/credentials/:id)
// rather than the raw URL to prevent unbounded label cardinality from
// user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route template, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botvault_http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks latency by method and route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "botvault_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// EnvelopeOperationsTotal counts envelope cipher operations by direction
	// (encrypt/decrypt) and result (ok/integrity_error/error).
	EnvelopeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botvault_envelope_operations_total",
			Help: "Envelope encryption operations, by direction and result.",
		},
		[]string{"direction", "result"},
	)

	// BotVerificationsTotal counts bot token verification attempts by outcome
	// (ok/unauthorized/rate_limited/error). A spike in unauthorized is the
	// first sign of token guessing or replay after revocation.
	BotVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botvault_bot_verifications_total",
			Help: "Bot token verification attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	// AuditAppendFailuresTotal counts audit entries that could not be written.
	// Audit append is best-effort relative to the primary mutation, so this
	// counter is the reconciliation signal for missing entries.
	AuditAppendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "botvault_audit_append_failures_total",
			Help: "Audit log entries that failed to persist after a successful mutation.",
		},
	)

	// DBConnectionsOpen reports the connection pool state, polled every 30s.
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "botvault_db_connections_open",
			Help: "Open database connections in the pool.",
		},
	)
)

// PollDBStats periodically exports connection pool gauges until stop is
// closed. Run it from a background goroutine in cmd/server.
func PollDBStats(db *sql.DB, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := db.Stats()
			DBConnectionsOpen.Set(float64(stats.OpenConnections))
			slog.Debug("db pool stats", "open", stats.OpenConnections, "in_use", stats.InUse, "idle", stats.Idle)
		case <-stop:
			return
		}
	}
}
