// Package api wires together all HTTP routes.
//
// Route grouping:
//   - /api/auth/* is unauthenticated: these endpoints establish identity.
//   - Everything else under /api requires a user session token.
//   - /v1/* is the machine surface. It accepts bot bearer tokens only; a user
//     session token is not valid there, and vice versa.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/botvault/botvault/internal/api/auditapi"
	"github.com/botvault/botvault/internal/api/authapi"
	"github.com/botvault/botvault/internal/api/botapi"
	"github.com/botvault/botvault/internal/api/bots"
	"github.com/botvault/botvault/internal/api/connections"
	"github.com/botvault/botvault/internal/api/credentials"
	"github.com/botvault/botvault/internal/middleware"
	"github.com/botvault/botvault/internal/vault"
)

// NewRouter creates and configures the Gin router.
func NewRouter(svc *vault.Service, db *sql.DB, logger *slog.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.SecurityHeaders(middleware.APISecurityHeadersConfig()))

	router.GET("/healthz", healthCheckHandler(db))

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/signup", authapi.SignupHandler(svc))
		authGroup.POST("/login", authapi.LoginHandler(svc))
		authGroup.POST("/magic-link", authapi.MagicLinkRequestHandler(svc))
		authGroup.POST("/magic-link/redeem", authapi.MagicLinkRedeemHandler(svc))
		authGroup.POST("/recovery", authapi.RecoveryRequestHandler(svc))
		authGroup.POST("/recovery/reset", authapi.PasswordResetHandler(svc))
	}

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.SessionAuth(svc.Sessions()))
	{
		apiGroup.GET("/auth/me", authapi.MeHandler(svc))
		apiGroup.POST("/auth/logout", authapi.LogoutHandler())

		apiGroup.PUT("/settings/profile", authapi.UpdateProfileHandler(svc))
		apiGroup.PUT("/settings/password", authapi.ChangePasswordHandler(svc))
		apiGroup.DELETE("/settings/account", authapi.DeleteAccountHandler(svc))

		apiGroup.GET("/credentials", credentials.ListHandler(svc))
		apiGroup.POST("/credentials", credentials.CreateHandler(svc))
		apiGroup.GET("/credentials/:id", credentials.GetHandler(svc))
		apiGroup.PUT("/credentials/:id", credentials.UpdateHandler(svc))
		apiGroup.DELETE("/credentials/:id", credentials.DeleteHandler(svc))

		apiGroup.GET("/cards", credentials.ListCardsHandler(svc))
		apiGroup.POST("/cards", credentials.CreateCardHandler(svc))
		apiGroup.GET("/cards/:id", credentials.GetCardHandler(svc))
		apiGroup.DELETE("/cards/:id", credentials.DeleteCardHandler(svc))

		apiGroup.GET("/bots", bots.ListHandler(svc))
		apiGroup.POST("/bots", bots.CreateHandler(svc))
		apiGroup.GET("/bots/:id", bots.GetHandler(svc))
		apiGroup.PUT("/bots/:id", bots.UpdateHandler(svc))
		apiGroup.DELETE("/bots/:id", bots.DeleteHandler(svc))
		apiGroup.GET("/bots/:id/tokens", bots.ListTokensHandler(svc))
		apiGroup.POST("/bots/:id/tokens", bots.IssueTokenHandler(svc))
		apiGroup.DELETE("/bots/:id/tokens/:tokenID", bots.RevokeTokenHandler(svc))
		apiGroup.GET("/bots/:id/permissions", bots.ListPermissionsHandler(svc))
		apiGroup.PUT("/bots/:id/permissions", bots.ReplacePermissionsHandler(svc))

		apiGroup.GET("/audit-log", auditapi.ListHandler(svc))

		apiGroup.GET("/connections", connections.ListHandler(svc))
		apiGroup.POST("/connections", connections.CreateHandler(svc))
		apiGroup.POST("/connections/:id/refresh", connections.RefreshHandler(svc))
	}

	// The exchange route authenticates by registration secret, not bearer
	// token, so it sits outside the BotAuth group.
	router.POST("/v1/token", botapi.ExchangeTokenHandler(svc))

	botGroup := router.Group("/v1")
	botGroup.Use(middleware.BotAuth(svc))
	{
		botGroup.GET("/credentials", botapi.ListCredentialsHandler(svc))
		botGroup.GET("/credentials/:id", botapi.GetCredentialHandler(svc))
	}

	return router
}

// healthCheckHandler reports liveness and database reachability.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		if err := db.PingContext(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
		c.JSON(http.StatusOK, status)
	}
}
