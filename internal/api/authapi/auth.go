// Package authapi implements the owner authentication endpoints: signup,
// login, session introspection, magic-link login, and password recovery.
//
// The magic-link and recovery endpoints are enumeration-safe: the response
// for an unknown email is byte-identical to the response for a known one. In
// a full deployment the raw link token goes out by email; this API returns
// only an acknowledgement.
package authapi

import (
	"net/http"

	"github.com/botvault/botvault/internal/api/httperr"
	"github.com/botvault/botvault/internal/db/models"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type redeemRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func userBody(u *models.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
	}
}

func sessionBody(s *vault.Session) gin.H {
	return gin.H{
		"token": s.Token,
		"user":  userBody(s.User),
	}
}

// SignupHandler handles POST /api/auth/signup.
func SignupHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username, email, and password are required"})
			return
		}
		session, err := svc.Signup(c.Request.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusCreated, sessionBody(session))
	}
}

// LoginHandler handles POST /api/auth/login.
func LoginHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}
		session, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionBody(session))
	}
}

// MeHandler handles GET /api/auth/me for an authenticated owner.
func MeHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.GetUser(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, userBody(user))
	}
}

// LogoutHandler handles POST /api/auth/logout. Session tokens are stateless
// bearer tokens, so logout is an acknowledgement: the client discards the
// token and the session ends when it expires.
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// MagicLinkRequestHandler handles POST /api/auth/magic-link. The response
// never reveals whether the address is registered.
func MagicLinkRequestHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
			return
		}
		if _, err := svc.RequestMagicLink(c.Request.Context(), req.Email); err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "if the address is registered, a login link has been sent"})
	}
}

// MagicLinkRedeemHandler handles POST /api/auth/magic-link/redeem.
func MagicLinkRedeemHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req redeemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
			return
		}
		session, err := svc.RedeemMagicLink(c.Request.Context(), req.Token)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionBody(session))
	}
}

// RecoveryRequestHandler handles POST /api/auth/recovery. Same
// enumeration-safety contract as the magic-link request.
func RecoveryRequestHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
			return
		}
		if _, err := svc.RequestPasswordRecovery(c.Request.Context(), req.Email); err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "if the address is registered, a recovery link has been sent"})
	}
}

// PasswordResetHandler handles POST /api/auth/recovery/reset.
func PasswordResetHandler(svc *vault.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and password are required"})
			return
		}
		if err := svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	}
}
