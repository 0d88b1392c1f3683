// internal/pkg/session/types.go
package session

import "time"

// Data is the server-side record kept in Redis for every issued token.
// The cache mirrors the token lifetime: entries expire together with the
// token they describe.
type Data struct {
	JTI            string    `json:"jti"`
	IdentityID     int64     `json:"identity_id"`
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	LoginAt        time.Time `json:"login_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
