// internal/domain/auth/dto.go
package auth

import "time"

// LoginRequest for admin login
type LoginRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse successful login response
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int       `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  Identity  `json:"identity"`
}

// WhoamiResponse is the identity snapshot returned by the verify endpoint.
type WhoamiResponse struct {
	Identity            Identity `json:"identity"`
	PasswordRotationDue bool     `json:"password_rotation_due"`
}

// ChangePasswordRequest for password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// CreateAccountRequest for creating admin accounts
type CreateAccountRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Role        string `json:"role" binding:"required"`
}

// IdentityUpdate is a partial identity patch. Nil fields are left unchanged.
type IdentityUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Role        *string `json:"role,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ResetTokenRequest asks for a one-time reset token.
type ResetTokenRequest struct {
	Username string `json:"username" binding:"required"`
}

// ResetConfirmRequest completes a reset using the one-time token.
type ResetConfirmRequest struct {
	Username    string `json:"username" binding:"required"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}
