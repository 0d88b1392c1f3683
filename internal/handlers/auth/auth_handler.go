// internal/handlers/auth/auth_handler.go
package auth

import (
	"errors"
	"net/http"
	"strconv"

	"medboard-service/internal/domain/auth"
	"medboard-service/internal/middleware"
	xerrors "medboard-service/internal/pkg/errors"
	"medboard-service/internal/pkg/response"
	authService "medboard-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *authService.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(svc *authService.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: svc,
		logger:      logger,
	}
}

// statusFor maps service errors onto HTTP statuses. Login failures and
// inactive accounts both answer 401 but with distinct error bodies.
func statusFor(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, xerrors.ErrCredentialMismatch),
		errors.Is(err, xerrors.ErrAccountInactive),
		errors.Is(err, xerrors.ErrUnauthorized),
		errors.Is(err, xerrors.ErrMalformedToken),
		errors.Is(err, xerrors.ErrBadSignature),
		errors.Is(err, xerrors.ErrTokenExpired),
		errors.Is(err, xerrors.ErrTokenRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, xerrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errGenericRetry is what callers see in place of an infrastructure failure.
var errGenericRetry = errors.New("something went wrong, please try again")

// respondError maps a service error onto the response envelope. Infrastructure
// failures are logged with the full chain but the body carries only a generic
// retry message, so internals never leak to the caller.
func (h *AuthHandler) respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
		response.Error(c, status, message, errGenericRetry)
		return
	}
	response.Error(c, status, message, err)
}

// ========== Login ==========

// Login handles admin login (public endpoint).
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	loginResp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		h.logger.Info("login failed",
			zap.String("username", req.Username),
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		h.respondError(c, "login failed", err)
		return
	}

	response.Success(c, http.StatusOK, "login successful", loginResp)
}

// ========== Session ==========

// Me returns the caller's live identity (requires auth).
func (h *AuthHandler) Me(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	whoami, err := h.authService.Whoami(c.Request.Context(), identityID)
	if err != nil {
		h.respondError(c, "failed to load identity", err)
		return
	}

	response.Success(c, http.StatusOK, "ok", whoami)
}

// Logout revokes the current session (requires auth).
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.logger.Error("logout failed",
			zap.Int64("identity_id", claims.IdentityID),
			zap.Error(err),
		)
		h.respondError(c, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// LogoutAll revokes every session the caller holds (requires auth).
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	if err := h.authService.LogoutAllSessions(c.Request.Context(), identityID, "logged out everywhere"); err != nil {
		h.respondError(c, "logout all failed", err)
		return
	}

	response.Success(c, http.StatusOK, "all sessions logged out", nil)
}

// ========== Password Management ==========

// ChangePassword rotates the caller's credential (requires auth).
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req auth.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), identityID, &req); err != nil {
		h.respondError(c, "password change failed", err)
		return
	}

	response.Success(c, http.StatusOK, "password changed", nil)
}

// RequestReset mints a one-time reset token (public endpoint). The response
// is the same whether or not the account exists.
func (h *AuthHandler) RequestReset(c *gin.Context) {
	var req auth.ResetTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	token, err := h.authService.RequestPasswordReset(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, xerrors.ErrRateLimited) {
			response.TooManyRequests(c, "too many reset requests")
			return
		}
		// account enumeration guard: unknown usernames get the same answer
		h.logger.Info("reset request for unknown or failing account",
			zap.String("username", req.Username), zap.Error(err))
		response.Success(c, http.StatusOK, "reset token issued if the account exists", nil)
		return
	}

	// delivered out of band in production; returned here for operator tooling
	response.Success(c, http.StatusOK, "reset token issued if the account exists", gin.H{"token": token})
}

// ConfirmReset redeems a reset token (public endpoint).
func (h *AuthHandler) ConfirmReset(c *gin.Context) {
	var req auth.ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.authService.ConfirmPasswordReset(c.Request.Context(), &req); err != nil {
		h.respondError(c, "password reset failed", err)
		return
	}

	response.Success(c, http.StatusOK, "password reset", nil)
}

// ========== Account Administration ==========

// CreateAccount provisions a new admin account (requires user.create).
func (h *AuthHandler) CreateAccount(c *gin.Context) {
	var req auth.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	identity, tempPassword, err := h.authService.CreateAccount(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, "account creation failed", err)
		return
	}

	h.logger.Info("account created by admin",
		zap.Int64("created_id", identity.ID),
		zap.Int64("created_by", middleware.MustGetIdentityID(c)),
	)

	response.Success(c, http.StatusCreated, "account created", gin.H{
		"identity":           identity,
		"temporary_password": tempPassword,
	})
}

// UpdateAccount patches an account (requires user.manage).
func (h *AuthHandler) UpdateAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid account id", err)
		return
	}

	var update auth.IdentityUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	identity, err := h.authService.UpdateAccount(c.Request.Context(), id, &update)
	if err != nil {
		h.respondError(c, "account update failed", err)
		return
	}

	response.Success(c, http.StatusOK, "account updated", identity)
}

// ListAccounts returns every admin account (requires user.view).
func (h *AuthHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.authService.ListAccounts(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to list accounts", err)
		return
	}

	response.Success(c, http.StatusOK, "ok", gin.H{"accounts": accounts})
}
