// Package billing applies subscription webhooks from the payment processor
// and the mobile billing aggregator to user rows.
package billing

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/user"
)

var (
	// ErrVerification means the delivery did not come from the vendor.
	ErrVerification = errors.New("webhook verification failed")
	// ErrMalformedPayload means the delivery was authentic but unreadable.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Effect is what an event does to a user's subscription flag.
type Effect int

const (
	Ignore Effect = iota
	Grant
	Revoke
)

func (e Effect) String() string {
	switch e {
	case Grant:
		return "grant"
	case Revoke:
		return "revoke"
	default:
		return "ignore"
	}
}

// Outcome is how a delivery was settled.
type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeStale       Outcome = "stale"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeUnknownUser Outcome = "unknown_user"
	OutcomeRejected    Outcome = "rejected"
	OutcomeFailed      Outcome = "failed"
)

// UserLookup names the local user an event refers to. UserID wins when set;
// the vendor references are tried after it.
type UserLookup struct {
	UserID         uuid.UUID
	SubscriptionID string
	CustomerID     string
}

func (l UserLookup) empty() bool {
	return l.UserID == uuid.Nil && l.SubscriptionID == "" && l.CustomerID == ""
}

// Adapter turns one vendor's deliveries into billing changes.
type Adapter[E any] interface {
	Vendor() string
	// Verify authenticates the raw delivery and parses it. Errors wrap
	// ErrVerification or ErrMalformedPayload.
	Verify(header http.Header, body []byte) (E, error)
	EventID(evt E) string
	Classify(evt E) Effect
	LookupKey(evt E) UserLookup
	Change(evt E, effect Effect) user.BillingChange
	// RejectStatus is returned for deliveries that fail verification.
	RejectStatus() int
}
