package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/httputil"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/metrics"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

const maxWebhookBody = 1 << 20

// UserStore is the storage the ingester writes through.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	FindByBillingRef(ctx context.Context, subscriptionID, customerID string) (*user.User, error)
	ApplyBillingChange(ctx context.Context, userID uuid.UUID, change user.BillingChange) (bool, error)
}

// Deduper remembers processed event ids.
type Deduper interface {
	Seen(ctx context.Context, vendor, eventID string) (bool, error)
	Mark(ctx context.Context, vendor, eventID string) error
}

// Ingester verifies, classifies and applies deliveries for one vendor.
// Every write is an absolute single-row update, so concurrent and repeated
// deliveries need no locking.
type Ingester[E any] struct {
	adapter Adapter[E]
	users   UserStore
	dedup   Deduper
}

func NewIngester[E any](adapter Adapter[E], users UserStore, dedup Deduper) *Ingester[E] {
	return &Ingester[E]{adapter: adapter, users: users, dedup: dedup}
}

// Ingest processes one raw delivery. A nil error means the vendor should
// not retry.
func (in *Ingester[E]) Ingest(ctx context.Context, header http.Header, body []byte) (Outcome, error) {
	logger := logging.GetLoggerFromContext(ctx).With("vendor", in.adapter.Vendor())

	evt, err := in.adapter.Verify(header, body)
	if err != nil {
		return OutcomeRejected, err
	}

	eventID := in.adapter.EventID(evt)
	logger = logger.With("event_id", eventID)

	if in.dedup != nil && eventID != "" {
		seen, err := in.dedup.Seen(ctx, in.adapter.Vendor(), eventID)
		if err != nil {
			// the row update is idempotent; carry on without the shortcut
			logger.Warn("webhook dedup lookup failed", "error", err)
		} else if seen {
			return OutcomeDuplicate, nil
		}
	}

	effect := in.adapter.Classify(evt)
	if effect == Ignore {
		logger.Debug("webhook event ignored")
		return OutcomeIgnored, nil
	}

	u, err := in.resolveUser(ctx, in.adapter.LookupKey(evt))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			logger.Warn("webhook references unknown user", "effect", effect.String())
			return OutcomeUnknownUser, nil
		}
		return OutcomeFailed, err
	}

	applied, err := in.users.ApplyBillingChange(ctx, u.ID, in.adapter.Change(evt, effect))
	if err != nil {
		return OutcomeFailed, err
	}

	if in.dedup != nil && eventID != "" {
		if err := in.dedup.Mark(ctx, in.adapter.Vendor(), eventID); err != nil {
			logger.Warn("failed to record webhook event", "error", err)
		}
	}

	if !applied {
		logger.Info("webhook event older than stored state", "user_id", u.ID, "effect", effect.String())
		return OutcomeStale, nil
	}

	logger.Info("webhook event applied", "user_id", u.ID, "effect", effect.String())
	return OutcomeApplied, nil
}

func (in *Ingester[E]) resolveUser(ctx context.Context, lookup UserLookup) (*user.User, error) {
	if lookup.empty() {
		return nil, user.ErrNotFound
	}

	if lookup.UserID != uuid.Nil {
		u, err := in.users.GetByID(ctx, lookup.UserID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if lookup.SubscriptionID == "" && lookup.CustomerID == "" {
			return nil, user.ErrNotFound
		}
	}

	return in.users.FindByBillingRef(ctx, lookup.SubscriptionID, lookup.CustomerID)
}

// ServeHTTP reads the raw body so signatures are checked over the exact bytes sent.
func (in *Ingester[E]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vendor := in.adapter.Vendor()
	logger := logging.GetLoggerFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(vendor, string(OutcomeRejected)).Inc()
		httputil.RespondErrorWithCode(w, "unreadable body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	outcome, err := in.Ingest(r.Context(), r.Header, body)
	metrics.WebhookEventsTotal.WithLabelValues(vendor, string(outcome)).Inc()

	switch {
	case err == nil:
		httputil.RespondJSON(w, map[string]any{"received": true, "outcome": outcome}, http.StatusOK)
	case errors.Is(err, ErrVerification):
		logger.Warn("webhook verification failed", "vendor", vendor, "error", err.Error())
		httputil.RespondErrorWithCode(w, "verification failed", httputil.CodeWebhookVerification, in.adapter.RejectStatus())
	case errors.Is(err, ErrMalformedPayload):
		logger.Warn("malformed webhook payload", "vendor", vendor, "error", err.Error())
		httputil.RespondErrorWithCode(w, "malformed payload", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
	default:
		logger.Error("webhook processing failed", "vendor", vendor, "error", err.Error())
		httputil.RespondErrorWithCode(w, "processing failed", httputil.CodeWebhookProcessing, http.StatusInternalServerError)
	}
}
