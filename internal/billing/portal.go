package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	billingsession "github.com/stripe/stripe-go/v82/billingportal/session"

	"github.com/redmonkez12/fitcoach-api/internal/auth"
	"github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

var (
	ErrNoBillingAccount  = errors.New("user has no billing account")
	ErrPortalUnavailable = errors.New("billing portal unavailable")
)

// PortalSessionCreator is the Stripe call the portal needs.
type PortalSessionCreator interface {
	New(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// NewStripePortalClient returns a client bound to secretKey, leaving the
// package-level stripe.Key untouched.
func NewStripePortalClient(secretKey string) PortalSessionCreator {
	return &billingsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
}

// UserReader loads the user a portal session is for.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// PortalService opens Stripe customer portal sessions.
type PortalService struct {
	sessions  PortalSessionCreator
	users     UserReader
	returnURL string
	timeout   time.Duration
}

func NewPortalService(sessions PortalSessionCreator, users UserReader, returnURL string, timeout time.Duration) *PortalService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PortalService{sessions: sessions, users: users, returnURL: returnURL, timeout: timeout}
}

// CreatePortalURL returns a one-time portal URL for userID. Outbound calls
// are bounded by the configured timeout.
func (s *PortalService) CreatePortalURL(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.BillingCustomerID == "" {
		return "", ErrNoBillingAccount
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(u.BillingCustomerID),
		ReturnURL: stripe.String(s.returnURL),
	}
	params.Context = ctx

	sess, err := s.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPortalUnavailable, err)
	}
	return sess.URL, nil
}

// PortalHandler serves POST /api/billing/portal for web sessions.
type PortalHandler struct {
	portal *PortalService
}

func NewPortalHandler(portal *PortalService) *PortalHandler {
	return &PortalHandler{portal: portal}
}

// PortalResponse carries the redirect target.
type PortalResponse struct {
	URL string `json:"url"`
}

// CreateSession opens a billing portal session
// @Summary      Open billing portal
// @Description  Create a Stripe customer portal session for the signed-in user
// @Tags         billing
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} PortalResponse
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      409 {object} httputil.ErrorResponse "No billing account"
// @Failure      502 {object} httputil.ErrorResponse "Billing provider unavailable"
// @Router       /api/billing/portal [post]
func (h *PortalHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	url, err := h.portal.CreatePortalURL(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrNoBillingAccount):
			httputil.RespondErrorWithCode(w, "no billing account for this user", httputil.CodeNoBillingAccount, http.StatusConflict)
		case errors.Is(err, ErrPortalUnavailable):
			logger.Error("billing portal session failed", "user_id", userID, "error", err.Error())
			httputil.RespondErrorWithCode(w, "billing is temporarily unavailable, please try again", httputil.CodeBillingUpstream, http.StatusBadGateway)
		default:
			logger.Error("billing portal failed", "user_id", userID, "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to open billing portal", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	httputil.RespondJSON(w, PortalResponse{URL: url}, http.StatusOK)
}
