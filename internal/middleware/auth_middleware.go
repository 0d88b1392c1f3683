// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"net/http"

	domain "medboard-service/internal/domain/auth"
	"medboard-service/internal/pkg/rbac"
	"medboard-service/internal/pkg/response"
	"medboard-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	authService *auth.AuthService
}

func NewAuthMiddleware(authService *auth.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Auth validates the bearer token and loads the caller's identity into the
// request context. Missing or bad tokens end the request with 401; the
// permission layer never runs for an unauthenticated caller.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.authService.VerifyToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("identity_id", claims.IdentityID)
		c.Set("jti", claims.ID)
		c.Set("claims", claims)
		c.Set("identity", &domain.Identity{
			ID:       claims.IdentityID,
			Username: claims.Username,
			Role:     claims.Role,
			IsActive: true,
		})

		c.Next()
	}
}

// RequireCapability gates a route on a single capability. Authenticated
// callers without the grant get 403, never 401; the two are distinct so a
// client can tell "log in again" apart from "you may not do this".
// MUST be used after Auth().
func (m *AuthMiddleware) RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}

		if !rbac.HasPermission(identity, capability) {
			err := errors.New("missing capability: " + capability)
			response.Error(c, http.StatusForbidden, "insufficient permissions", err)
			return
		}

		c.Next()
	}
}

// RequireRole gates a route on role membership. MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}

		if !rbac.HasAnyRole(identity, roles...) {
			err := errors.New("role not permitted")
			response.Error(c, http.StatusForbidden, "insufficient permissions", err)
			return
		}

		c.Next()
	}
}
