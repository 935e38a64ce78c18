package user

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/entitlement"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // empty for identity-provider-only accounts

	TrialEndsAt  *time.Time `json:"trialEndsAt"`
	HasUsedTrial bool       `json:"-"`

	SubscriptionActive      bool   `json:"subscriptionActive"`
	FreeOverride            bool   `json:"-"`
	BillingCustomerID       string `json:"-"`
	BillingSubscriptionID   string `json:"-"`
	MobileBillingCustomerID string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Entitlement returns the fields the resolver needs.
func (u *User) Entitlement() entitlement.Input {
	return entitlement.Input{
		TrialEndsAt:        u.TrialEndsAt,
		SubscriptionActive: u.SubscriptionActive,
		FreeOverride:       u.FreeOverride,
	}
}

// HasPassword reports whether the account can sign in with credentials.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// NewUser is the input to Repository.Create.
type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
	TrialEndsAt  time.Time
}

// BillingSource identifies which vendor a billing change came from.
// Each source keeps its own ordering watermark.
type BillingSource int

const (
	SourceStripe BillingSource = iota
	SourceRevenueCat
)

func (s BillingSource) String() string {
	if s == SourceRevenueCat {
		return "revenuecat"
	}
	return "stripe"
}

// BillingChange is an absolute assignment to a user's subscription fields.
// Applying the same change twice leaves the row unchanged.
type BillingChange struct {
	Source             BillingSource
	SubscriptionActive bool
	// Empty means leave the stored value alone.
	CustomerID     string
	SubscriptionID string
	// ClearSubscriptionID nulls the stored subscription id.
	ClearSubscriptionID bool
	// EventAt is the vendor's event time. Zero disables the ordering guard.
	EventAt time.Time
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
