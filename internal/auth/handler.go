package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/entitlement"
	"github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// EmailCooldown throttles repeated emails to the same address.
type EmailCooldown interface {
	ReserveEmail(ctx context.Context, purpose, email string) (bool, error)
}

// Handler contains HTTP handlers for web authentication endpoints
type Handler struct {
	service         *Service
	cooldown        EmailCooldown
	isProduction    bool
	sessionDuration time.Duration
	refreshDuration time.Duration
}

func NewHandler(service *Service, cooldown EmailCooldown, isProduction bool, sessionDuration, refreshDuration time.Duration) *Handler {
	return &Handler{
		service:         service,
		cooldown:        cooldown,
		isProduction:    isProduction,
		sessionDuration: sessionDuration,
		refreshDuration: refreshDuration,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Name     string `json:"name" validate:"max=100"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// IdentityRequest carries a provider ID token.
type IdentityRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

// EmailChangeRequest asks for a confirmation link at a new address.
type EmailChangeRequest struct {
	NewEmail string `json:"new_email" validate:"required,email,max=254"`
}

// UserResponse represents a user in API responses. Access fields are
// resolved at response time.
type UserResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	HasAccess          bool       `json:"hasAccess"`
	SubscriptionActive bool       `json:"subscriptionActive"`
	TrialEndsAt        *time.Time `json:"trialEndsAt"`
	TrialActive        bool       `json:"trialActive"`
	DaysLeft           int        `json:"daysLeft"`
}

// NewUserResponse resolves u's entitlement at now.
func NewUserResponse(u *user.User, now time.Time) UserResponse {
	status := entitlement.Resolve(u.Entitlement(), now)
	return UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		HasAccess:          status.HasAccess,
		SubscriptionActive: u.SubscriptionActive,
		TrialEndsAt:        u.TrialEndsAt,
		TrialActive:        status.TrialActive,
		DaysLeft:           status.DaysLeft,
	}
}

// SessionResponse is returned to non-browser clients and carries the tokens.
type SessionResponse struct {
	*SessionTokens
	User UserResponse `json:"user"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an account with email and password. The free trial starts immediately.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration credentials"
// @Success      201 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	newUser, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			logger.Warn("registration failed: email already exists")
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		case isValidationError(err):
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully", "user_id", newUser.ID)

	h.startSession(w, r, newUser, http.StatusCreated)
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive a session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	logger = logger.WithFields(map[string]any{"email": req.Email})

	u, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in successfully", "user_id", u.ID)

	h.startSession(w, r, u, http.StatusOK)
}

// Identity handles sign-in with a Google ID token
// @Summary      Sign in with Google
// @Description  Verify a Google ID token and start a session, creating the account on first use
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body IdentityRequest true "Google ID token"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid identity token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/identity [post]
func (h *Handler) Identity(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req IdentityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, err := h.service.SignInWithIdentity(r.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, ErrInvalidIdentityToken) || errors.Is(err, ErrIdentityEmailMissing) {
			logger.Warn("identity sign-in rejected", "error", err.Error())
			respondError(w, "invalid identity token", httputil.CodeInvalidIdentityToken, http.StatusUnauthorized)
			return
		}
		logger.Error("identity sign-in failed", "error", err.Error())
		respondError(w, "failed to sign in", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user signed in with identity provider", "user_id", u.ID)

	h.startSession(w, r, u, http.StatusOK)
}

// Refresh handles session refresh
// @Summary      Refresh session
// @Description  Rotate the refresh token and reissue the session with current subscription state
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token (or refresh_token cookie)"
// @Success      200 {object} SessionResponse
// @Failure      400 {object} httputil.ErrorResponse "Refresh token missing"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired refresh token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	refreshToken := refreshTokenFromRequest(r)
	if refreshToken == "" {
		logger.Warn("refresh token missing from both body and cookie")
		respondError(w, "refresh token required", httputil.CodeRefreshTokenRequired, http.StatusBadRequest)
		return
	}

	tokens, err := h.service.RefreshSession(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrRefreshTokenRevoked) || errors.Is(err, ErrRefreshTokenExpired) {
			logger.Warn("session refresh failed: invalid or expired token", "error", err.Error())
			ClearAuthCookies(w)
			respondError(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
			return
		}
		logger.Error("session refresh failed: internal error", "error", err.Error())
		respondError(w, "failed to refresh session", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Debug("session refreshed", "user_id", tokens.Session.UserID)

	h.writeSession(w, r, tokens, sessionUserResponse(tokens.Session, h.service.now()), http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Revoke the refresh token and clear cookies
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Optional refresh token"
// @Success      200 {object} map[string]string
// @Router       /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if refreshToken := refreshTokenFromRequest(r); refreshToken != "" {
		if err := h.service.RevokeRefreshToken(r.Context(), refreshToken); err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
			// still clear cookies
			logger.Warn("failed to revoke refresh token", "error", err)
		}
	}

	ClearAuthCookies(w)

	logger.Info("user logged out successfully")

	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Send a password reset link to the user's email. Always returns success to prevent email enumeration.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		respondError(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if !h.reserveEmail(r, PurposePasswordReset, req.Email) {
		respondError(w, "please wait before requesting another reset", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	// always nil
	_ = h.service.RequestPasswordReset(r.Context(), req.Email)

	respondJSON(w, map[string]string{
		"message": "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles password reset with token
// @Summary      Reset password
// @Description  Reset a user's password using a valid reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Reset token and new password"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrVerificationTokenNotFound), errors.Is(err, ErrVerificationTokenExpired):
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		case isValidationError(err):
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password reset successfully")

	respondJSON(w, map[string]string{
		"message": "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// RequestEmailChange sends a confirmation link to a new address
// @Summary      Request email change
// @Description  Send a confirmation link to the new address. The change applies once the link is opened.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body EmailChangeRequest true "New email"
// @Success      202 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Invalid request"
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Router       /auth/email-change [post]
func (h *Handler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	var req EmailChangeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	if !h.reserveEmail(r, PurposeEmailChange, req.NewEmail) {
		respondError(w, "please wait before requesting another email", httputil.CodeCooldownActive, http.StatusTooManyRequests)
		return
	}

	err := h.service.RequestEmailChange(r.Context(), userID, req.NewEmail)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrDuplicateEmail):
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		case errors.Is(err, user.ErrNotFound):
			respondError(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrSameEmail), isValidationError(err):
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		default:
			logger.Error("email change request failed", "error", err.Error())
			respondError(w, "failed to request email change", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, map[string]string{
		"message": "Check your new inbox for a confirmation link.",
	}, http.StatusAccepted)
}

// ConfirmEmailChange applies a pending email change
// @Summary      Confirm email change
// @Tags         auth
// @Produce      json
// @Param        token query string true "Confirmation token"
// @Success      200 {object} map[string]string
// @Failure      400 {object} httputil.ErrorResponse "Invalid or expired token"
// @Failure      409 {object} httputil.ErrorResponse "Email already exists"
// @Router       /auth/email-change/confirm [get]
func (h *Handler) ConfirmEmailChange(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		return
	}

	userID, err := h.service.ConfirmEmailChange(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrVerificationTokenNotFound), errors.Is(err, ErrVerificationTokenExpired):
			respondError(w, "invalid or expired token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		case errors.Is(err, user.ErrDuplicateEmail):
			respondError(w, "email already exists", httputil.CodeEmailAlreadyExists, http.StatusConflict)
		default:
			logger.Error("email change confirmation failed", "error", err.Error())
			respondError(w, "failed to change email", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("email changed", "user_id", userID)

	respondJSON(w, map[string]string{"message": "Email updated."}, http.StatusOK)
}

// startSession issues a session for u and writes it to the client.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *user.User, status int) {
	tokens, err := h.service.IssueSession(r.Context(), u)
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to issue session", "error", err.Error())
		respondError(w, "failed to start session", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}
	h.writeSession(w, r, tokens, NewUserResponse(u, h.service.now()), status)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, tokens *SessionTokens, userResp UserResponse, status int) {
	if ShouldUseCookies(r) {
		SetAuthCookies(w, tokens.SessionToken, tokens.RefreshToken, h.isProduction, h.sessionDuration, h.refreshDuration)
		// tokens stay in cookies only
		respondJSON(w, map[string]any{"user": userResp}, status)
		return
	}
	respondJSON(w, SessionResponse{SessionTokens: tokens, User: userResp}, status)
}

// sessionUserResponse describes the user from the session snapshot alone.
func sessionUserResponse(claims *SessionClaims, now time.Time) UserResponse {
	status := entitlement.Resolve(claims.Entitlement(), now)
	return UserResponse{
		ID:                 claims.UserID,
		Email:              claims.Email,
		HasAccess:          status.HasAccess,
		SubscriptionActive: claims.SubscriptionActive,
		TrialEndsAt:        claims.TrialEndsAt,
		TrialActive:        status.TrialActive,
		DaysLeft:           status.DaysLeft,
	}
}

// reserveEmail applies the per-address cooldown. Redis errors fail open.
func (h *Handler) reserveEmail(r *http.Request, purpose, email string) bool {
	if h.cooldown == nil {
		return true
	}
	ok, err := h.cooldown.ReserveEmail(r.Context(), purpose, email)
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to check email cooldown", "error", err.Error())
		return true
	}
	if !ok {
		logging.GetLoggerFromContext(r.Context()).Warn("email on cooldown", "purpose", purpose)
	}
	return ok
}

func refreshTokenFromRequest(r *http.Request) string {
	var req RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err == nil && req.RefreshToken != "" {
		return strings.TrimSpace(req.RefreshToken)
	}
	if cookieToken, err := GetRefreshTokenFromCookie(r); err == nil {
		return strings.TrimSpace(cookieToken)
	}
	return ""
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrInvalidEmailFormat)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
