package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// UserRepository is the subset of user storage the auth flows need.
type UserRepository interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// SessionTokenService creates and verifies web session tokens.
type SessionTokenService interface {
	CreateToken(claims SessionClaims, duration time.Duration) (string, error)
	VerifyToken(tokenStr string) (*SessionClaims, error)
}

// MobileTokenIssuer signs mobile bearer tokens.
type MobileTokenIssuer interface {
	CreateToken(u *user.User) (string, error)
	VerifyToken(tokenStr string) (*MobileClaims, uuid.UUID, error)
}

// IdentityVerifier validates a third-party ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*IdentityClaims, error)
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendWelcomeEmail(ctx context.Context, toEmail, name string, trialEndsAt time.Time) error
	SendPasswordResetEmail(ctx context.Context, toEmail, token string) error
	SendEmailChangeEmail(ctx context.Context, toEmail, token string) error
}

// AccountWriter performs the state changes a verification token can authorize.
type AccountWriter interface {
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error
}

// VerificationTokenStore issues single-use tokens and consumes them together
// with the change they authorize.
type VerificationTokenStore interface {
	Create(ctx context.Context, identifier, payload string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, token, purpose string, apply func(ctx context.Context, w AccountWriter, vt *VerificationToken) error) error
}
