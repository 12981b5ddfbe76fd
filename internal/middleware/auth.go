// auth.go implements the two authentication schemes. Owner sessions are
// verified purely cryptographically; bot tokens run the vault service's full
// pipeline, where the stored record is authoritative over the signature.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

// Context keys set by the authentication middleware.
const (
	UserIDKey      = "user_id"
	UsernameKey    = "username"
	BotIdentityKey = "bot_identity"
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SessionAuth authenticates owner requests with a session bearer token. On
// success the owner's ID and username are stored in the context.
func SessionAuth(sessions *auth.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := sessions.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// BotVerifier runs the bot token verification pipeline. Implemented by
// *vault.Service.
type BotVerifier interface {
	VerifyBotAccess(ctx context.Context, rawToken string) (*vault.BotIdentity, error)
}

// BotAuth authenticates bot requests. All verification failures produce an
// identical 401; rate limiting produces a 429 with a Retry-After header.
func BotAuth(verifier BotVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.VerifyBotAccess(c.Request.Context(), bearerToken(c))
		if err != nil {
			var rle *vault.RateLimitedError
			switch {
			case errors.As(err, &rle):
				retryAfter := int(rle.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Header("Retry-After", strconv.Itoa(retryAfter))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			case errors.Is(err, vault.ErrUnauthorized):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.Set(BotIdentityKey, identity)
		c.Next()
	}
}

// BotIdentityFrom retrieves the authenticated bot identity set by BotAuth.
func BotIdentityFrom(c *gin.Context) (*vault.BotIdentity, bool) {
	v, ok := c.Get(BotIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*vault.BotIdentity)
	return identity, ok
}
