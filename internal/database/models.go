package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the users table row.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Email        string    `bun:"email,notnull,unique"`
	Name         string    `bun:"name,notnull,default:''"`
	PasswordHash *string   `bun:"password_hash"`

	TrialEndsAt  *time.Time `bun:"trial_ends_at"`
	HasUsedTrial bool       `bun:"has_used_trial,notnull,default:false"`

	SubscriptionActive      bool       `bun:"subscription_active,notnull,default:false"`
	FreeOverride            bool       `bun:"free_override,notnull,default:false"`
	BillingCustomerID       *string    `bun:"billing_customer_id"`
	BillingSubscriptionID   *string    `bun:"billing_subscription_id"`
	BillingEventAt          *time.Time `bun:"billing_event_at"`
	MobileBillingCustomerID *string    `bun:"mobile_billing_customer_id"`
	MobileBillingEventAt    *time.Time `bun:"mobile_billing_event_at"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// VerificationToken is a single-use token authorizing one state change.
// Only the SHA-256 of the token is stored.
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vt"`

	TokenHash  string    `bun:"token_hash,pk"`
	Identifier string    `bun:"identifier,notnull"`
	Payload    string    `bun:"payload,notnull,default:''"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
