package auth

import (
	"errors"
	"net/http"

	"github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/metrics"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// MobileHandler serves the sign-in endpoints used by the mobile app.
type MobileHandler struct {
	service *Service
}

func NewMobileHandler(service *Service) *MobileHandler {
	return &MobileHandler{service: service}
}

// MobileTokenResponse is returned by both mobile sign-in endpoints.
type MobileTokenResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Login exchanges credentials for a mobile bearer token
// @Summary      Mobile login
// @Tags         mobile
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} MobileTokenResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/mobile/auth/login [post]
func (h *MobileHandler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("mobile login failed: invalid credentials")
			metrics.AuthFailuresTotal.WithLabelValues("mobile", httputil.CodeInvalidCredentials).Inc()
			respondError(w, "invalid email or password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("mobile login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	h.issue(w, r, u)
}

// Identity exchanges a Google ID token for a mobile bearer token
// @Summary      Mobile sign in with Google
// @Tags         mobile
// @Accept       json
// @Produce      json
// @Param        request body IdentityRequest true "Google ID token"
// @Success      200 {object} MobileTokenResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid identity token"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/mobile/auth/identity [post]
func (h *MobileHandler) Identity(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req IdentityRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, err := h.service.SignInWithIdentity(r.Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, ErrInvalidIdentityToken) || errors.Is(err, ErrIdentityEmailMissing) {
			logger.Warn("mobile identity sign-in rejected", "error", err.Error())
			metrics.AuthFailuresTotal.WithLabelValues("mobile", httputil.CodeInvalidIdentityToken).Inc()
			respondError(w, "invalid identity token", httputil.CodeInvalidIdentityToken, http.StatusUnauthorized)
			return
		}
		logger.Error("mobile identity sign-in failed", "error", err.Error())
		respondError(w, "failed to sign in", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	h.issue(w, r, u)
}

func (h *MobileHandler) issue(w http.ResponseWriter, r *http.Request, u *user.User) {
	token, err := h.service.IssueMobileToken(u)
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to issue mobile token", "error", err.Error())
		respondError(w, "failed to issue token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logging.GetLoggerFromContext(r.Context()).Info("mobile token issued", "user_id", u.ID)

	respondJSON(w, MobileTokenResponse{
		Token: token,
		User:  NewUserResponse(u, h.service.now()),
	}, http.StatusOK)
}
