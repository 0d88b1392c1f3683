// internal/service/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medboard-service/internal/domain/auth"
	xerrors "medboard-service/internal/pkg/errors"
	"medboard-service/internal/pkg/jwt"
	"medboard-service/internal/pkg/password"
	"medboard-service/internal/pkg/rbac"
	"medboard-service/internal/pkg/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	tempPasswordLength = 16
	resetKeyPrefix     = "pwdreset:"
)

// IdentityStore is the persistence surface the service needs. The postgres
// repository satisfies it; tests substitute an in-memory fake.
type IdentityStore interface {
	FindIdentityByUsername(ctx context.Context, username string) (*auth.Identity, error)
	FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CreateAccount(ctx context.Context, identity *auth.Identity, passwordHash string) error
	UpdateIdentity(ctx context.Context, id int64, update *auth.IdentityUpdate) error
	GetCredential(ctx context.Context, identityID int64) (*auth.Credential, error)
	UpdatePassword(ctx context.Context, identityID int64, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id int64) error
	IncrementFailedLoginAttempts(ctx context.Context, id int64) error
	GetLoginAudit(ctx context.Context, id int64) (*auth.LoginAudit, error)
	ListAccounts(ctx context.Context) ([]*auth.Identity, error)
}

// Notifier pushes revocation events to connected consoles. The websocket hub
// implements it; tests pass a recording stub or nil.
type Notifier interface {
	ForceLogout(identityID int64, sessionID, reason string)
}

type AuthService struct {
	store          IdentityStore
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	notifier       Notifier
	cache          *redis.Client
	logger         *zap.Logger
}

func NewAuthService(
	store IdentityStore,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	rateLimiter *session.RateLimiter,
	notifier Notifier,
	cache *redis.Client,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		store:          store,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		notifier:       notifier,
		cache:          cache,
		logger:         logger,
	}
}

// ========== Login ==========

// Login authenticates a username/password pair and mints a session token.
// Credential failures and inactive accounts surface as distinct errors, but
// the active check runs only after the credential matched so a guessing
// attacker learns nothing about account state.
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, req.Username)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	identity, err := s.store.FindIdentityByUsername(ctx, req.Username)
	if err != nil {
		return nil, xerrors.ErrCredentialMismatch
	}

	cred, err := s.store.GetCredential(ctx, identity.ID)
	if err != nil {
		return nil, xerrors.ErrCredentialMismatch
	}

	if !password.Verify(req.Password, cred.PasswordHash) {
		if err := s.store.IncrementFailedLoginAttempts(ctx, identity.ID); err != nil {
			s.logger.Error("failed to record failed login", zap.Error(err))
		}
		s.logger.Info("login rejected",
			zap.String("username", req.Username),
			zap.String("ip", req.IPAddress),
			zap.Int64("attempts_remaining", remaining))
		return nil, xerrors.ErrCredentialMismatch
	}

	if !identity.IsActive {
		return nil, xerrors.ErrAccountInactive
	}

	if err := s.store.UpdateLastLogin(ctx, identity.ID); err != nil {
		s.logger.Error("failed to update last login", zap.Error(err))
	}
	if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, req.Username); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	return s.issueSession(ctx, identity, req.IPAddress, req.UserAgent)
}

// issueSession mints a token and registers the matching server-side session.
func (s *AuthService) issueSession(ctx context.Context, identity *auth.Identity, ipAddress, userAgent string) (*auth.LoginResponse, error) {
	token, jti, err := s.jwtManager.Generator.Generate(identity.ID, identity.Username, identity.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtManager.Generator.TTL())

	data := &session.Data{
		JTI:            jti,
		IdentityID:     identity.ID,
		Username:       identity.Username,
		Role:           identity.Role,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      expiresAt,
	}
	if err := s.sessionManager.CreateSession(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	s.logger.Info("login succeeded",
		zap.Int64("identity_id", identity.ID),
		zap.String("username", identity.Username),
		zap.String("role", identity.Role),
		zap.String("jti", jti))

	return &auth.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(s.jwtManager.Generator.TTL().Seconds()),
		ExpiresAt: expiresAt,
		Identity:  *identity,
	}, nil
}

// ========== Token Verification ==========

// VerifyToken checks signature, expiry, revocation, and session liveness.
// It never consults account state, so a deactivated account keeps its token
// until the token dies or the session is revoked.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	blacklisted, err := s.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		return nil, xerrors.ErrTokenRevoked
	}

	if _, err := s.sessionManager.GetSession(ctx, claims.IdentityID, claims.ID); err != nil {
		return nil, xerrors.ErrTokenRevoked
	}

	go s.sessionManager.TouchSession(context.Background(), claims.IdentityID, claims.ID)

	return claims, nil
}

// Whoami returns the live identity for the verify endpoint, plus whether its
// credential is past the rotation window.
func (s *AuthService) Whoami(ctx context.Context, identityID int64) (*auth.WhoamiResponse, error) {
	identity, err := s.store.FindIdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	rotationDue := false
	if cred, err := s.store.GetCredential(ctx, identityID); err == nil {
		var changedAt time.Time
		if cred.PasswordChangedAt.Valid {
			changedAt = cred.PasswordChangedAt.Time
		}
		rotationDue = password.ShouldRotate(changedAt, password.DefaultMaxAgeDays)
	}

	return &auth.WhoamiResponse{
		Identity:            *identity,
		PasswordRotationDue: rotationDue,
	}, nil
}

// ========== Logout ==========

// Logout revokes the current session. Revoking an already-dead session is
// not an error; logout is idempotent from the caller's point of view.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if err := s.sessionManager.InvalidateSession(ctx, claims.IdentityID, claims.ID); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	if err := s.sessionManager.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ForceLogout(claims.IdentityID, claims.ID, "logged out")
	}

	s.logger.Info("logout",
		zap.Int64("identity_id", claims.IdentityID),
		zap.String("jti", claims.ID))
	return nil
}

// LogoutAllSessions revokes every session the identity holds.
func (s *AuthService) LogoutAllSessions(ctx context.Context, identityID int64, reason string) error {
	if err := s.sessionManager.InvalidateAllUserSessions(ctx, identityID); err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}
	if s.notifier != nil {
		s.notifier.ForceLogout(identityID, "", reason)
	}
	return nil
}

// ========== Password Management ==========

// ChangePassword rotates a credential after re-verifying the current one.
// Every other session dies with the old credential.
func (s *AuthService) ChangePassword(ctx context.Context, identityID int64, req *auth.ChangePasswordRequest) error {
	cred, err := s.store.GetCredential(ctx, identityID)
	if err != nil {
		return err
	}

	if !password.Verify(req.CurrentPassword, cred.PasswordHash) {
		return xerrors.ErrCredentialMismatch
	}

	if result := password.ValidateStrength(req.NewPassword); !result.Valid {
		return fmt.Errorf("%w: %s", xerrors.ErrInvalidInput, strings.Join(result.Errors, "; "))
	}

	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, identityID, hash); err != nil {
		return err
	}

	if err := s.LogoutAllSessions(ctx, identityID, "password changed"); err != nil {
		s.logger.Error("failed to revoke sessions after password change", zap.Error(err))
	}

	s.logger.Info("password changed", zap.Int64("identity_id", identityID))
	return nil
}

// ========== Password Reset ==========

// RequestPasswordReset mints a one-time reset token for the account and
// remembers it server-side for the reset window. The token is for the reset
// flow only and never authenticates API calls.
func (s *AuthService) RequestPasswordReset(ctx context.Context, username string) (string, error) {
	allowed, err := s.rateLimiter.CheckPasswordResetAttempt(ctx, username)
	if err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return "", xerrors.ErrRateLimited
	}

	identity, err := s.store.FindIdentityByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	token, err := password.NewResetToken()
	if err != nil {
		return "", fmt.Errorf("failed to mint reset token: %w", err)
	}

	key := resetKeyPrefix + identity.Username
	if err := s.cache.Set(ctx, key, token, password.ResetTokenWindow).Err(); err != nil {
		return "", fmt.Errorf("failed to store reset token: %w", err)
	}

	s.logger.Info("password reset requested",
		zap.Int64("identity_id", identity.ID),
		zap.String("username", identity.Username))
	return token, nil
}

// ConfirmPasswordReset redeems a reset token. The token must match the one
// on record and still be inside its validity window; it is consumed either
// way once redeemed.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, req *auth.ResetConfirmRequest) error {
	identity, err := s.store.FindIdentityByUsername(ctx, req.Username)
	if err != nil {
		return xerrors.ErrUnauthorized
	}

	key := resetKeyPrefix + identity.Username
	stored, err := s.cache.Get(ctx, key).Result()
	if err != nil || stored != req.Token {
		return xerrors.ErrUnauthorized
	}
	if !password.ResetTokenValid(req.Token, time.Now()) {
		return xerrors.ErrUnauthorized
	}

	if result := password.ValidateStrength(req.NewPassword); !result.Valid {
		return fmt.Errorf("%w: %s", xerrors.ErrInvalidInput, strings.Join(result.Errors, "; "))
	}

	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return err
	}
	s.cache.Del(ctx, key)

	if err := s.LogoutAllSessions(ctx, identity.ID, "password reset"); err != nil {
		s.logger.Error("failed to revoke sessions after reset", zap.Error(err))
	}

	s.logger.Info("password reset completed", zap.Int64("identity_id", identity.ID))
	return nil
}

// ========== Account Administration ==========

// CreateAccount provisions an admin account with a generated temporary
// password, returned exactly once to the caller.
func (s *AuthService) CreateAccount(ctx context.Context, req *auth.CreateAccountRequest) (*auth.Identity, string, error) {
	if !rbac.KnownRole(req.Role) {
		return nil, "", fmt.Errorf("%w: unknown role %q", xerrors.ErrInvalidInput, req.Role)
	}

	exists, err := s.store.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, "", xerrors.ErrConflict
	}

	tempPassword, err := password.GenerateRandomSecret(tempPasswordLength)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate temporary password: %w", err)
	}
	hash, err := password.Hash(tempPassword)
	if err != nil {
		return nil, "", err
	}

	identity := &auth.Identity{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Role:        req.Role,
		IsActive:    true,
	}
	if err := s.store.CreateAccount(ctx, identity, hash); err != nil {
		return nil, "", err
	}

	s.logger.Info("account created",
		zap.Int64("identity_id", identity.ID),
		zap.String("username", identity.Username),
		zap.String("role", identity.Role))
	return identity, tempPassword, nil
}

// UpdateAccount applies a partial patch. Deactivating an account also kills
// its live sessions.
func (s *AuthService) UpdateAccount(ctx context.Context, id int64, update *auth.IdentityUpdate) (*auth.Identity, error) {
	if update.Role != nil && !rbac.KnownRole(*update.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", xerrors.ErrInvalidInput, *update.Role)
	}

	if err := s.store.UpdateIdentity(ctx, id, update); err != nil {
		return nil, err
	}

	if update.IsActive != nil && !*update.IsActive {
		if err := s.LogoutAllSessions(ctx, id, "account deactivated"); err != nil {
			s.logger.Error("failed to revoke sessions on deactivation", zap.Error(err))
		}
	}

	return s.store.FindIdentityByID(ctx, id)
}

// ListAccounts returns every admin account.
func (s *AuthService) ListAccounts(ctx context.Context) ([]*auth.Identity, error) {
	return s.store.ListAccounts(ctx)
}

// ========== Bootstrap ==========

// EnsureSuperAdmin creates the initial super admin account on first boot.
// With no configured password a random one is generated and logged once.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, username, pass, email string) error {
	exists, err := s.store.ExistsByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check super admin: %w", err)
	}
	if exists {
		return nil
	}

	generated := false
	if pass == "" {
		pass, err = password.GenerateRandomSecret(tempPasswordLength)
		if err != nil {
			return fmt.Errorf("failed to generate super admin password: %w", err)
		}
		generated = true
	}

	hash, err := password.Hash(pass)
	if err != nil {
		return err
	}

	identity := &auth.Identity{
		Username:    username,
		DisplayName: "Super Administrator",
		Email:       email,
		Role:        rbac.RoleSuperAdmin,
		IsActive:    true,
	}
	if err := s.store.CreateAccount(ctx, identity, hash); err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	if generated {
		// printed once at bootstrap; rotate it immediately after first login
		s.logger.Warn("generated initial super admin password",
			zap.String("username", username),
			zap.String("password", pass))
	} else {
		s.logger.Info("super admin account created", zap.String("username", username))
	}
	return nil
}
