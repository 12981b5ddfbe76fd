// Package connections implements the OAuth connection endpoints. Token sets
// are stored like any other secret; the API only ever returns connection
// status, never the tokens themselves.
package connections

import (
	"net/http"
	"time"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type createRequest struct {
	Label        string    `json:"label" binding:"required"`
	Provider     string    `json:"provider" binding:"required"`
	AccessToken  string    `json:"access_token" binding:"required"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

func statusBody(s vault.ConnectionStatus) gin.H {
	return gin.H{
		"id":         s.ID,
		"label":      s.Label,
		"provider":   s.Provider,
		"active":     s.Active,
		"expiry":     s.Expiry,
		"created_at": s.CreatedAt,
	}
}

// ListHandler handles GET /api/connections.
func ListHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := svc.ListConnections(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		out := make([]gin.H, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, statusBody(s))
		}
		c.JSON(http.StatusOK, gin.H{"connections": out})
	}
}

// CreateHandler handles POST /api/connections, storing a token set obtained
// from a completed provider authorization.
func CreateHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label, provider, and access_token are required"})
			return
		}
		status, err := svc.CreateConnection(c.Request.Context(), c.GetString(middleware.UserIDKey),
			req.Label, models.OAuthData{
				Provider:     req.Provider,
				AccessToken:  req.AccessToken,
				RefreshToken: req.RefreshToken,
				TokenType:    req.TokenType,
				Expiry:       req.Expiry,
			})
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusCreated, statusBody(*status))
	}
}

// RefreshHandler handles POST /api/connections/:id/refresh.
func RefreshHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := svc.RefreshConnection(c.Request.Context(), c.GetString(middleware.UserIDKey), c.Param("id"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, statusBody(*status))
	}
}
