// settings.go implements the authenticated account settings endpoints:
// profile updates, password changes, and full account deletion.
package authapi

import (
	"net/http"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type profileRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type accountDeleteRequest struct {
	Password string `json:"password" binding:"required"`
}

// UpdateProfileHandler handles PUT /api/settings/profile.
func UpdateProfileHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and email are required"})
			return
		}
		user, err := svc.UpdateProfile(c.Request.Context(), c.GetString(middleware.UserIDKey), req.Username, req.Email)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, userBody(user))
	}
}

// ChangePasswordHandler handles PUT /api/settings/password.
func ChangePasswordHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordChangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current_password and new_password are required"})
			return
		}
		err := svc.ChangePassword(c.Request.Context(), c.GetString(middleware.UserIDKey),
			req.CurrentPassword, req.NewPassword)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	}
}

// DeleteAccountHandler handles DELETE /api/settings/account. Requires the
// current password; removes the account and everything it owns.
func DeleteAccountHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req accountDeleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
			return
		}
		if err := svc.DeleteAccount(c.Request.Context(), c.GetString(middleware.UserIDKey), req.Password); err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
	}
}
