// Package credentials implements the owner-facing credential endpoints.
// Listing never returns secrets; a secret appears only in the response to an
// explicit single-credential read, which is always audited.
package credentials

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
	Type   string `json:"type" binding:"required"`
	Label  string `json:"label" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

type updateRequest struct {
	Type   string  `json:"type" binding:"required"`
	Label  string  `json:"label" binding:"required"`
	Secret *string `json:"secret"`
}

type metaBody struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toMetaBody(m vault.CredentialMeta) metaBody {
	return metaBody{
		ID:        m.ID,
		Type:      string(m.Type),
		Label:     m.Label,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// ListHandler handles GET /api/credentials. The optional ?type= query filters
// by credential type.
func ListHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		metas, err := svc.ListCredentials(c.Request.Context(), ownerID(c),
			models.CredentialType(c.Query("type")))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		out := make([]metaBody, 0, len(metas))
		for _, m := range metas {
			out = append(out, toMetaBody(m))
		}
		c.JSON(http.StatusOK, gin.H{"credentials": out})
	}
}

// CreateHandler handles POST /api/credentials.
func CreateHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type, label, and secret are required"})
			return
		}
		meta, err := svc.CreateCredential(c.Request.Context(), ownerID(c),
			models.CredentialType(req.Type), req.Label, req.Secret)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusCreated, toMetaBody(*meta))
	}
}

// GetHandler handles GET /api/credentials/:id, returning the decrypted
// secret.
func GetHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, err := svc.GetCredential(c.Request.Context(), ownerID(c), c.Param("id"))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		body := toMetaBody(cred.CredentialMeta)
		c.JSON(http.StatusOK, gin.H{
			"id":         body.ID,
			"type":       body.Type,
			"label":      body.Label,
			"secret":     cred.Secret,
			"created_at": body.CreatedAt,
			"updated_at": body.UpdatedAt,
		})
	}
}

// UpdateHandler handles PUT /api/credentials/:id. Omitting the secret updates
// metadata only; supplying one re-encrypts the payload under a fresh key.
func UpdateHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type and label are required"})
			return
		}
		meta, err := svc.UpdateCredential(c.Request.Context(), ownerID(c), c.Param("id"),
			models.CredentialType(req.Type), req.Label, req.Secret)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, toMetaBody(*meta))
	}
}

// DeleteHandler handles DELETE /api/credentials/:id.
func DeleteHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteCredential(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "credential deleted"})
	}
}
