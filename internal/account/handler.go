package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/redmonkez12/fitcoach-api/internal/auth"
	"github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// StartTrialResponse is returned when a trial begins.
type StartTrialResponse struct {
	Success     bool      `json:"success"`
	TrialEndsAt time.Time `json:"trialEndsAt"`
}

// Me returns the current user
// @Summary      Current user
// @Description  Profile and entitlement recomputed from storage. The hasAccess claim inside the token is not consulted.
// @Tags         mobile
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} auth.UserResponse
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/mobile/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to load user", "user_id", userID, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondJSON(w, auth.NewUserResponse(u, h.service.now()), http.StatusOK)
}

// StartTrial begins the free trial
// @Summary      Start trial
// @Description  Start the one-time free trial for the current user
// @Tags         mobile
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} StartTrialResponse
// @Failure      400 {object} httputil.ErrorResponse "Trial already used"
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /api/mobile/trial/start [post]
func (h *Handler) StartTrial(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	endsAt, err := h.service.StartTrial(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrTrialAlreadyUsed):
			httputil.RespondErrorWithCode(w, "Trial already used", httputil.CodeTrialAlreadyUsed, http.StatusBadRequest)
		case errors.Is(err, user.ErrNotFound):
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
		default:
			logger.Error("failed to start trial", "user_id", userID, "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to start trial", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	httputil.RespondJSON(w, StartTrialResponse{Success: true, TrialEndsAt: endsAt}, http.StatusOK)
}
