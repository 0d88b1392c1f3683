// internal/repository/postgres/auth_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"medboard-service/internal/domain/auth"
	xerrors "medboard-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

// ========== Identity Methods ==========

// FindIdentityByUsername retrieves an account by its login name.
func (r *AuthRepository) FindIdentityByUsername(ctx context.Context, username string) (*auth.Identity, error) {
	query := `
		SELECT id, username, display_name, email, role, is_active,
		       created_at, updated_at
		FROM admin_accounts
		WHERE LOWER(username) = LOWER($1)
	`

	var identity auth.Identity
	err := r.db.QueryRow(ctx, query, username).Scan(
		&identity.ID, &identity.Username, &identity.DisplayName, &identity.Email,
		&identity.Role, &identity.IsActive,
		&identity.CreatedAt, &identity.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &identity, nil
}

// FindIdentityByID retrieves an account by ID.
func (r *AuthRepository) FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	query := `
		SELECT id, username, display_name, email, role, is_active,
		       created_at, updated_at
		FROM admin_accounts
		WHERE id = $1
	`

	var identity auth.Identity
	err := r.db.QueryRow(ctx, query, id).Scan(
		&identity.ID, &identity.Username, &identity.DisplayName, &identity.Email,
		&identity.Role, &identity.IsActive,
		&identity.CreatedAt, &identity.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &identity, nil
}

// ExistsByUsername reports whether an account with the login name exists.
func (r *AuthRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM admin_accounts WHERE LOWER(username) = LOWER($1))`
	if err := r.db.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// CreateAccount inserts a new account together with its credential.
func (r *AuthRepository) CreateAccount(ctx context.Context, identity *auth.Identity, passwordHash string) error {
	query := `
		INSERT INTO admin_accounts
			(username, display_name, email, role, is_active, password_hash, password_changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		identity.Username, identity.DisplayName, identity.Email,
		identity.Role, identity.IsActive, passwordHash,
	).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// UpdateIdentity applies a partial patch. Only non-nil fields change.
func (r *AuthRepository) UpdateIdentity(ctx context.Context, id int64, update *auth.IdentityUpdate) error {
	query := `
		UPDATE admin_accounts
		SET display_name = COALESCE($2, display_name),
		    email        = COALESCE($3, email),
		    role         = COALESCE($4, role),
		    is_active    = COALESCE($5, is_active),
		    updated_at   = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id,
		update.DisplayName, update.Email, update.Role, update.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ========== Credential Methods ==========

// GetCredential fetches the stored hash and its change timestamp.
func (r *AuthRepository) GetCredential(ctx context.Context, identityID int64) (*auth.Credential, error) {
	query := `
		SELECT id, password_hash, password_changed_at
		FROM admin_accounts
		WHERE id = $1
	`

	var cred auth.Credential
	err := r.db.QueryRow(ctx, query, identityID).Scan(
		&cred.IdentityID, &cred.PasswordHash, &cred.PasswordChangedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credential: %w", err)
	}

	return &cred, nil
}

// UpdatePassword replaces the hash and stamps the rotation clock.
func (r *AuthRepository) UpdatePassword(ctx context.Context, identityID int64, passwordHash string) error {
	query := `
		UPDATE admin_accounts
		SET password_hash = $2, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, identityID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// ========== Login Bookkeeping ==========

// UpdateLastLogin stamps a successful login and clears the failure counter.
func (r *AuthRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	query := `
		UPDATE admin_accounts
		SET last_login = NOW(), failed_login_attempts = 0
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// IncrementFailedLoginAttempts counts a rejected credential.
func (r *AuthRepository) IncrementFailedLoginAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE admin_accounts
		SET failed_login_attempts = failed_login_attempts + 1
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// GetLoginAudit fetches last-login bookkeeping for an account.
func (r *AuthRepository) GetLoginAudit(ctx context.Context, id int64) (*auth.LoginAudit, error) {
	query := `
		SELECT id, last_login, failed_login_attempts
		FROM admin_accounts
		WHERE id = $1
	`

	var audit auth.LoginAudit
	err := r.db.QueryRow(ctx, query, id).Scan(
		&audit.IdentityID, &audit.LastLogin, &audit.FailedLoginAttempts,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login audit: %w", err)
	}

	return &audit, nil
}

// ========== Listing ==========

// ListAccounts returns every account, newest first.
func (r *AuthRepository) ListAccounts(ctx context.Context) ([]*auth.Identity, error) {
	query := `
		SELECT id, username, display_name, email, role, is_active,
		       created_at, updated_at
		FROM admin_accounts
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*auth.Identity
	for rows.Next() {
		var identity auth.Identity
		if err := rows.Scan(
			&identity.ID, &identity.Username, &identity.DisplayName, &identity.Email,
			&identity.Role, &identity.IsActive,
			&identity.CreatedAt, &identity.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &identity)
	}
	return accounts, rows.Err()
}
