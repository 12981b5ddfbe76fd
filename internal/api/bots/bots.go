// Package bots implements the owner-facing bot management endpoints: bot
// CRUD, bearer token issue/revoke, and permission grants.
package bots

import (
	"net/http"
	"time"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type botRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func ownerID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func botBody(b *models.Bot) gin.H {
	body := gin.H{
		"id":               b.ID,
		"name":             b.Name,
		"description":      b.Description,
		"is_active":        b.IsActive,
		"permission_count": b.PermissionCount,
		"created_at":       b.CreatedAt,
	}
	return body
}

// ListHandler handles GET /api/bots.
func ListHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bots, err := svc.ListBots(c.Request.Context(), ownerID(c))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		out := make([]gin.H, 0, len(bots))
		for _, b := range bots {
			out = append(out, botBody(b))
		}
		c.JSON(http.StatusOK, gin.H{"bots": out})
	}
}

// CreateHandler handles POST /api/bots. The response carries the registration
// secret exactly once; it is unrecoverable afterwards.
func CreateHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req botRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		created, err := svc.CreateBot(c.Request.Context(), ownerID(c), req.Name, req.Description)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		body := botBody(created.Bot)
		body["secret"] = created.Secret
		c.JSON(http.StatusCreated, body)
	}
}

// GetHandler handles GET /api/bots/:id.
func GetHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		bot, err := svc.GetBot(c.Request.Context(), ownerID(c), c.Param("id"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, botBody(bot))
	}
}

// UpdateHandler handles PUT /api/bots/:id. Omitting is_active keeps the bot
// active.
func UpdateHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req botRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}
		bot, err := svc.UpdateBot(c.Request.Context(), ownerID(c), c.Param("id"),
			req.Name, req.Description, isActive)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, botBody(bot))
	}
}

// DeleteHandler handles DELETE /api/bots/:id, revoking every outstanding
// token in the process.
func DeleteHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteBot(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "bot deleted"})
	}
}

// tokenBody renders a stored token record. The raw token itself is absent:
// only issuance ever returns it.
func tokenBody(t *models.BotToken) gin.H {
	body := gin.H{
		"id":         t.ID,
		"created_at": t.CreatedAt,
	}
	if t.Never() {
		body["expires_at"] = nil
	} else {
		body["expires_at"] = t.ExpiresAt.Format(time.RFC3339)
	}
	return body
}
