// Package middleware provides the Gin HTTP middleware for BotVault: request
// IDs, metrics, request logging, security headers, and the two authentication
// schemes (owner sessions and bot bearer tokens). Everything here is
// registered in internal/api/router.go.
package middleware

import (
	"fmt"
	"time"

	"github.com/botvault/botvault/internal/telemetry"
	"github.com/gin-gonic/gin"
)

// Metrics records a request counter and latency histogram for every request.
// The path label uses the matched route template from c.FullPath(), not the
// raw URL, so credential and bot IDs never become label values. Unmatched
// requests (404/405) share the literal "<no-route>" to cap cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
