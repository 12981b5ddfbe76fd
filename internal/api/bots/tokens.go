// tokens.go implements bearer token issuance and revocation for a bot.
package bots

import (
	"net/http"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type tokenIssueRequest struct {
	TTL string `json:"ttl" binding:"required"`
}

// ListTokensHandler handles GET /api/bots/:id/tokens.
func ListTokensHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokens, err := svc.ListBotTokens(c.Request.Context(), ownerID(c), c.Param("id"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		out := make([]gin.H, 0, len(tokens))
		for _, t := range tokens {
			out = append(out, tokenBody(t))
		}
		c.JSON(http.StatusOK, gin.H{"tokens": out})
	}
}

// IssueTokenHandler handles POST /api/bots/:id/tokens. The raw signed token
// appears in this response and nowhere else, ever.
func IssueTokenHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenIssueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl is required (30d, 90d, 1y, never)"})
			return
		}
		issued, err := svc.IssueBotToken(c.Request.Context(), ownerID(c), c.Param("id"), req.TTL)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		body := tokenBody(issued.Record)
		body["token"] = issued.Token
		c.JSON(http.StatusCreated, body)
	}
}

// RevokeTokenHandler handles DELETE /api/bots/:id/tokens/:tokenID. The token
// stops verifying the moment its record is gone.
func RevokeTokenHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.RevokeBotToken(c.Request.Context(), ownerID(c), c.Param("id"), c.Param("tokenID"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
	}
}
