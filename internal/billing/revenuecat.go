package billing

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// RevenueCat event types.
const (
	RCInitialPurchase      = "INITIAL_PURCHASE"
	RCRenewal              = "RENEWAL"
	RCProductChange        = "PRODUCT_CHANGE"
	RCUncancellation       = "UNCANCELLATION"
	RCCancellation         = "CANCELLATION"
	RCExpiration           = "EXPIRATION"
	RCBillingIssue         = "BILLING_ISSUE"
	RCSubscriptionPaused   = "SUBSCRIPTION_PAUSED"
	RCNonRenewingPurchase  = "NON_RENEWING_PURCHASE"
	RCTransfer             = "TRANSFER"
	RCTest                 = "TEST"
	RCSubscriptionExtended = "SUBSCRIPTION_EXTENDED"
)

type rcPayload struct {
	APIVersion string  `json:"api_version"`
	Event      RCEvent `json:"event"`
}

// RCEvent is a RevenueCat webhook event.
type RCEvent struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	AppUserID         string `json:"app_user_id"`
	OriginalAppUserID string `json:"original_app_user_id"`
	EventTimestampMs  int64  `json:"event_timestamp_ms"`
	Subscriber        struct {
		OriginalAppUserID string `json:"original_app_user_id"`
	} `json:"subscriber"`
}

func (e RCEvent) originalAppUserID() string {
	if e.OriginalAppUserID != "" {
		return e.OriginalAppUserID
	}
	return e.Subscriber.OriginalAppUserID
}

// RevenueCatAdapter handles mobile billing aggregator webhooks.
type RevenueCatAdapter struct {
	secret []byte
}

func NewRevenueCatAdapter(sharedSecret string) *RevenueCatAdapter {
	return &RevenueCatAdapter{secret: []byte(sharedSecret)}
}

func (a *RevenueCatAdapter) Vendor() string { return "revenuecat" }

func (a *RevenueCatAdapter) RejectStatus() int { return http.StatusUnauthorized }

// Verify compares the Authorization bearer with the shared secret in
// constant time. An unset secret rejects everything.
func (a *RevenueCatAdapter) Verify(header http.Header, body []byte) (RCEvent, error) {
	if len(a.secret) == 0 {
		return RCEvent{}, fmt.Errorf("%w: webhook secret not configured", ErrVerification)
	}

	scheme, presented, ok := strings.Cut(header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return RCEvent{}, fmt.Errorf("%w: missing bearer", ErrVerification)
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), a.secret) != 1 {
		return RCEvent{}, fmt.Errorf("%w: secret mismatch", ErrVerification)
	}

	var p rcPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return RCEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Event.Type == "" {
		return RCEvent{}, fmt.Errorf("%w: event type missing", ErrMalformedPayload)
	}
	return p.Event, nil
}

func (a *RevenueCatAdapter) EventID(evt RCEvent) string { return evt.ID }

func (a *RevenueCatAdapter) Classify(evt RCEvent) Effect {
	switch evt.Type {
	case RCInitialPurchase, RCRenewal, RCProductChange, RCUncancellation:
		return Grant
	case RCCancellation, RCExpiration, RCBillingIssue, RCSubscriptionPaused:
		return Revoke
	default:
		return Ignore
	}
}

// LookupKey treats app_user_id as our user id, falling back to the
// original app user id.
func (a *RevenueCatAdapter) LookupKey(evt RCEvent) UserLookup {
	for _, raw := range []string{evt.AppUserID, evt.originalAppUserID()} {
		if id, err := uuid.Parse(raw); err == nil {
			return UserLookup{UserID: id}
		}
	}
	return UserLookup{}
}

func (a *RevenueCatAdapter) Change(evt RCEvent, effect Effect) user.BillingChange {
	change := user.BillingChange{
		Source:             user.SourceRevenueCat,
		SubscriptionActive: effect == Grant,
	}
	if evt.EventTimestampMs > 0 {
		change.EventAt = time.UnixMilli(evt.EventTimestampMs)
	}
	if effect == Grant {
		change.CustomerID = evt.originalAppUserID()
		if change.CustomerID == "" {
			change.CustomerID = evt.AppUserID
		}
	}
	return change
}
