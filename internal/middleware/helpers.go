// internal/middleware/helpers.go
package middleware

import (
	"strings"

	domain "medboard-service/internal/domain/auth"
	"medboard-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// extractToken pulls the bearer token from the Authorization header.
func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetIdentityID gets the authenticated identity ID from context.
func GetIdentityID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("identity_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// MustGetIdentityID gets the identity ID from context or panics.
func MustGetIdentityID(c *gin.Context) int64 {
	id, exists := GetIdentityID(c)
	if !exists {
		panic("identity_id not found in context")
	}
	return id
}

// GetJTI gets the session JTI from context.
func GetJTI(c *gin.Context) (string, bool) {
	v, exists := c.Get("jti")
	if !exists {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

// GetClaims gets the verified token claims from context.
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// CurrentIdentity gets the authenticated identity snapshot from context.
func CurrentIdentity(c *gin.Context) (*domain.Identity, bool) {
	v, exists := c.Get("identity")
	if !exists {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok
}

// IsAuthenticated checks if the request carries a verified identity.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get("identity_id")
	return exists
}
