// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

// Identity is an administrative account. Role and IsActive are the only
// fields authorization decisions may depend on.
type Identity struct {
	ID          int64     `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Email       string    `json:"email" db:"email"`
	Role        string    `json:"role" db:"role"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Credential is the stored secret for an identity. The hash is one-way;
// there is no decrypt path, only compare-and-verify.
type Credential struct {
	IdentityID        int64        `json:"-" db:"identity_id"`
	PasswordHash      string       `json:"-" db:"password_hash"`
	PasswordChangedAt sql.NullTime `json:"-" db:"password_changed_at"`
}

// LoginAudit tracks per-account login bookkeeping.
type LoginAudit struct {
	IdentityID          int64        `json:"identity_id" db:"identity_id"`
	LastLogin           sql.NullTime `json:"last_login" db:"last_login"`
	FailedLoginAttempts int          `json:"-" db:"failed_login_attempts"`
}
