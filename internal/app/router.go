// internal/app/router.go
package app

import (
	authHandler "medboard-service/internal/handlers/auth"
	"medboard-service/internal/middleware"
	"medboard-service/internal/pkg/rbac"
	"medboard-service/internal/websocket"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	WSHandler      *websocket.Handler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.ServeWS)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/reset-token", h.AuthHandler.RequestReset)
		authPublic.POST("/reset-confirm", h.AuthHandler.ConfirmReset)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.GET("/me", h.AuthHandler.Me)
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
		authProtected.PUT("/password", h.AuthHandler.ChangePassword)
	}

	// ==================== Account Administration ====================
	accounts := api.Group("/admin/accounts")
	accounts.Use(h.AuthMiddleware.Auth())
	{
		accounts.GET("", h.AuthMiddleware.RequireCapability(rbac.CapUserView), h.AuthHandler.ListAccounts)
		accounts.POST("", h.AuthMiddleware.RequireCapability(rbac.CapUserCreate), h.AuthHandler.CreateAccount)
		accounts.PUT("/:id", h.AuthMiddleware.RequireCapability(rbac.CapUserManage), h.AuthHandler.UpdateAccount)
	}
}
