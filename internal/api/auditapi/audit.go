// Package auditapi exposes the owner's audit trail as a filtered, paginated
// read-only endpoint.
package auditapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/db/repositories"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

func entryBody(e *models.AuditLog) gin.H {
	body := gin.H{
		"id":          e.ID,
		"action":      e.Action,
		"target_type": e.TargetType,
		"target_id":   e.TargetID,
		"metadata":    e.Metadata,
		"created_at":  e.CreatedAt,
	}
	switch {
	case e.BotID != nil:
		body["actor_type"] = "bot"
		body["actor_id"] = *e.BotID
		if e.BotName != nil {
			body["actor_name"] = *e.BotName
		}
	case e.UserID != nil:
		body["actor_type"] = "user"
		body["actor_id"] = *e.UserID
		if e.Username != nil {
			body["actor_name"] = *e.Username
		}
	}
	return body
}

// ListHandler handles GET /api/audit-log. Supported query parameters:
// action (exact match), actor (substring against username or bot name),
// from and to (RFC 3339), page (1-based).
func ListHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := repositories.AuditFilters{
			Action: c.Query("action"),
			Actor:  c.Query("actor"),
		}
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
				return
			}
			filters.From = t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC 3339 timestamp"})
				return
			}
			filters.To = t
		}

		page := 1
		if v := c.Query("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
				return
			}
			page = n
		}

		result, err := svc.ListAuditLog(c.Request.Context(), c.GetString(middleware.UserIDKey), filters, page)
		if err != nil {
			httperr.Write(c, err)
			return
		}

		entries := make([]gin.H, 0, len(result.Entries))
		for _, e := range result.Entries {
			entries = append(entries, entryBody(e))
		}
		c.JSON(http.StatusOK, gin.H{
			"entries":     entries,
			"total":       result.Total,
			"page":        result.Page,
			"page_size":   result.PageSize,
			"total_pages": result.TotalPages,
		})
	}
}
