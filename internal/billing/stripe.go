package billing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// StripeEvent is the part of a Stripe event the ingester needs.
type StripeEvent struct {
	ID        string
	Type      stripe.EventType
	Created   time.Time
	Lookup    UserLookup
	SubStatus stripe.SubscriptionStatus
}

// StripeAdapter handles payment processor webhooks.
type StripeAdapter struct {
	secret string
}

func NewStripeAdapter(webhookSecret string) *StripeAdapter {
	return &StripeAdapter{secret: webhookSecret}
}

func (a *StripeAdapter) Vendor() string { return "stripe" }

func (a *StripeAdapter) RejectStatus() int { return http.StatusBadRequest }

// Verify checks Stripe-Signature over the raw body before anything is parsed.
func (a *StripeAdapter) Verify(header http.Header, body []byte) (StripeEvent, error) {
	if a.secret == "" {
		return StripeEvent{}, fmt.Errorf("%w: webhook secret not configured", ErrVerification)
	}

	event, err := webhook.ConstructEventWithOptions(body, header.Get("Stripe-Signature"), a.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return StripeEvent{}, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	evt := StripeEvent{
		ID:      event.ID,
		Type:    event.Type,
		Created: time.Unix(event.Created, 0),
	}
	if event.Data == nil {
		return evt, nil
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return evt, fmt.Errorf("%w: checkout session: %v", ErrMalformedPayload, err)
		}
		evt.Lookup = UserLookup{
			UserID:         userIDFrom(cs.ClientReferenceID, cs.Metadata),
			SubscriptionID: subscriptionID(cs.Subscription),
			CustomerID:     customerID(cs.Customer),
		}

	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return evt, fmt.Errorf("%w: invoice: %v", ErrMalformedPayload, err)
		}
		lookup := UserLookup{
			UserID:     userIDFrom("", inv.Metadata),
			CustomerID: customerID(inv.Customer),
		}
		if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
			details := inv.Parent.SubscriptionDetails
			lookup.SubscriptionID = subscriptionID(details.Subscription)
			if lookup.UserID == uuid.Nil {
				lookup.UserID = userIDFrom("", details.Metadata)
			}
		}
		evt.Lookup = lookup

	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return evt, fmt.Errorf("%w: subscription: %v", ErrMalformedPayload, err)
		}
		evt.Lookup = UserLookup{
			UserID:         userIDFrom("", sub.Metadata),
			SubscriptionID: sub.ID,
			CustomerID:     customerID(sub.Customer),
		}
		evt.SubStatus = sub.Status
	}

	return evt, nil
}

func (a *StripeAdapter) EventID(evt StripeEvent) string { return evt.ID }

// Classify maps event types to effects. Types not listed are ignored.
func (a *StripeAdapter) Classify(evt StripeEvent) Effect {
	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeInvoicePaid:
		return Grant
	case stripe.EventTypeInvoicePaymentFailed, stripe.EventTypeCustomerSubscriptionDeleted:
		return Revoke
	case stripe.EventTypeCustomerSubscriptionUpdated:
		if evt.SubStatus == stripe.SubscriptionStatusActive || evt.SubStatus == stripe.SubscriptionStatusTrialing {
			return Grant
		}
		return Revoke
	default:
		return Ignore
	}
}

func (a *StripeAdapter) LookupKey(evt StripeEvent) UserLookup { return evt.Lookup }

func (a *StripeAdapter) Change(evt StripeEvent, effect Effect) user.BillingChange {
	change := user.BillingChange{
		Source:             user.SourceStripe,
		SubscriptionActive: effect == Grant,
		EventAt:            evt.Created,
	}
	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		change.CustomerID = evt.Lookup.CustomerID
		change.SubscriptionID = evt.Lookup.SubscriptionID
	case stripe.EventTypeCustomerSubscriptionDeleted:
		change.ClearSubscriptionID = true
	}
	return change
}

// userIDFrom reads our user id from client_reference_id or metadata.user_id.
func userIDFrom(clientReferenceID string, metadata map[string]string) uuid.UUID {
	for _, raw := range []string{clientReferenceID, metadata["user_id"]} {
		if raw == "" {
			continue
		}
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(s *stripe.Subscription) string {
	if s == nil {
		return ""
	}
	return s.ID
}
