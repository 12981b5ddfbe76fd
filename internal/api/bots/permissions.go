// permissions.go implements the grant endpoints. Grants are replaced as a
// set: the submitted credential ID list becomes the bot's complete grant set.
package bots

import (
	"net/http"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type permissionsRequest struct {
	CredentialIDs []string `json:"credential_ids"`
}

// ListPermissionsHandler handles GET /api/bots/:id/permissions.
func ListPermissionsHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, err := svc.ListBotPermissions(c.Request.Context(), ownerID(c), c.Param("id"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		out := make([]gin.H, 0, len(perms))
		for _, p := range perms {
			out = append(out, gin.H{
				"credential_id": p.CredentialID,
				"level":         p.Level,
				"granted_at":    p.GrantedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"permissions": out})
	}
}

// ReplacePermissionsHandler handles PUT /api/bots/:id/permissions. An empty
// list revokes every grant.
func ReplacePermissionsHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req permissionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "credential_ids must be a list"})
			return
		}
		err := svc.UpdateBotPermissions(c.Request.Context(), ownerID(c), c.Param("id"), req.CredentialIDs)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "permissions updated", "count": len(req.CredentialIDs)})
	}
}
