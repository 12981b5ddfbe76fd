// Package httperr maps vault service errors onto HTTP responses. Every
// handler routes its failures through Write so the error taxonomy is rendered
// consistently: the same vault error always produces the same status and the
// same body shape.
package httperr

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

// Write renders err as an HTTP response and aborts the request.
//
// Mapping:
//
//	ErrUnauthorized    → 401
//	ErrForbidden       → 403
//	ErrNotFound        → 404
//	RateLimitedError   → 429 with Retry-After
//	ValidationError    → 400 with the validation message
//	ErrIntegrity       → 500 (detail withheld, logged server-side)
//	anything else      → 500
func Write(c *gin.Context, err error) {
	var (
		rle *vault.RateLimitedError
		ve  *vault.ValidationError
	)
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, vault.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, vault.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &rle):
		retryAfter := int(rle.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	default:
		// Integrity failures land here on purpose: the caller learns nothing
		// beyond "server error", the log carries the detail.
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
