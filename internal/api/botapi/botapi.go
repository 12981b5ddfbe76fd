// Package botapi implements the machine-facing credential surface mounted
// under /v1. Requests reach these handlers only after the bot token pipeline
// has verified the caller; the resolved identity scopes every query to the
// bot's grants.
package botapi

import (
	"net/http"
	"time"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type exchangeRequest struct {
	BotID  string `json:"bot_id" binding:"required"`
	Secret string `json:"secret" binding:"required"`
	TTL    string `json:"ttl" binding:"required"`
}

// ExchangeTokenHandler handles POST /v1/token, the one /v1 route outside the
// bearer-token middleware: a bot trades its registration secret for a bearer
// token.
func ExchangeTokenHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req exchangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bot_id, secret, and ttl are required"})
			return
		}
		issued, err := svc.ExchangeBotSecret(c.Request.Context(), req.BotID, req.Secret, req.TTL)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		body := gin.H{
			"token_id": issued.Record.ID,
			"token":    issued.Token,
		}
		if issued.Record.Never() {
			body["expires_at"] = nil
		} else {
			body["expires_at"] = issued.Record.ExpiresAt.Format(time.RFC3339)
		}
		c.JSON(http.StatusCreated, body)
	}
}

// ListCredentialsHandler handles GET /v1/credentials. Only metadata for
// granted credentials is returned; nothing is decrypted.
func ListCredentialsHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := middleware.BotIdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		metas, err := svc.BotListCredentials(c.Request.Context(), identity)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		out := make([]gin.H, 0, len(metas))
		for _, m := range metas {
			out = append(out, gin.H{
				"id":         m.ID,
				"type":       m.Type,
				"label":      m.Label,
				"created_at": m.CreatedAt,
				"updated_at": m.UpdatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"credentials": out})
	}
}

// GetCredentialHandler handles GET /v1/credentials/:id. The read decrypts the
// secret and is always audited against both the bot and its owner.
func GetCredentialHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := middleware.BotIdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		cred, err := svc.BotGetCredential(c.Request.Context(), identity, c.Param("id"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":         cred.ID,
			"type":       cred.Type,
			"label":      cred.Label,
			"secret":     cred.Secret,
			"created_at": cred.CreatedAt,
			"updated_at": cred.UpdatedAt,
		})
	}
}
