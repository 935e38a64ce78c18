package auth

import (
	"errors"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/entitlement"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// SessionClaims is the web session snapshot. The subscription fields are
// copied from the user row whenever a session is issued or refreshed.
type SessionClaims struct {
	UserID             uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	TrialEndsAt        *time.Time `json:"trialEndsAt"`
	SubscriptionActive bool       `json:"subscriptionActive"`
	FreeOverride       bool       `json:"freeOverride"`
	IssuedAt           time.Time  `json:"issuedAt"`
	ExpiresAt          time.Time  `json:"expiresAt"`
}

// Entitlement returns the resolver input carried by the session.
func (c *SessionClaims) Entitlement() entitlement.Input {
	return entitlement.Input{
		TrialEndsAt:        c.TrialEndsAt,
		SubscriptionActive: c.SubscriptionActive,
		FreeOverride:       c.FreeOverride,
	}
}

// SessionClaimsFor builds the session snapshot for u.
func SessionClaimsFor(u *user.User) SessionClaims {
	return SessionClaims{
		UserID:             u.ID,
		Email:              u.Email,
		TrialEndsAt:        u.TrialEndsAt,
		SubscriptionActive: u.SubscriptionActive,
		FreeOverride:       u.FreeOverride,
	}
}

// PasetoService issues and verifies web session tokens.
// Uses v4.local (symmetric encryption with XChaCha20-Poly1305)
type PasetoService struct {
	symmetricKey paseto.V4SymmetricKey
	now          func() time.Time
}

func NewPasetoService(symmetricKey []byte) (*PasetoService, error) {
	if len(symmetricKey) != 32 {
		return nil, fmt.Errorf("symmetric key must be exactly 32 bytes, got %d", len(symmetricKey))
	}

	key, err := paseto.V4SymmetricKeyFromBytes(symmetricKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create symmetric key: %w", err)
	}

	return &PasetoService{
		symmetricKey: key,
		now:          time.Now,
	}, nil
}

// CreateToken encrypts claims into a token valid for duration.
// IssuedAt and ExpiresAt on the input are ignored.
func (s *PasetoService) CreateToken(claims SessionClaims, duration time.Duration) (string, error) {
	now := s.now()

	token := paseto.NewToken()
	token.SetIssuedAt(now)
	token.SetExpiration(now.Add(duration))
	token.SetString("user_id", claims.UserID.String())
	token.SetString("email", claims.Email)
	if claims.TrialEndsAt != nil {
		token.SetString("trial_ends_at", claims.TrialEndsAt.UTC().Format(time.RFC3339Nano))
	}
	if err := token.Set("subscription_active", claims.SubscriptionActive); err != nil {
		return "", fmt.Errorf("failed to set claim: %w", err)
	}
	if err := token.Set("free_override", claims.FreeOverride); err != nil {
		return "", fmt.Errorf("failed to set claim: %w", err)
	}

	return token.V4Encrypt(s.symmetricKey, nil), nil
}

// VerifyToken decrypts a session token and returns its claims.
func (s *PasetoService) VerifyToken(tokenStr string) (*SessionClaims, error) {
	// Expiry is checked below against s.now so it can be told apart from tampering.
	parser := paseto.NewParserWithoutExpiryCheck()

	token, err := parser.ParseV4Local(s.symmetricKey, tokenStr, nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	expiresAt, err := token.GetExpiration()
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !s.now().Before(expiresAt) {
		return nil, ErrExpiredToken
	}

	issuedAt, err := token.GetIssuedAt()
	if err != nil {
		return nil, ErrInvalidToken
	}

	rawID, err := token.GetString("user_id")
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	email, err := token.GetString("email")
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &SessionClaims{
		UserID:    userID,
		Email:     email,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}

	if raw, err := token.GetString("trial_ends_at"); err == nil {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, ErrInvalidToken
		}
		claims.TrialEndsAt = &t
	}
	if err := token.Get("subscription_active", &claims.SubscriptionActive); err != nil {
		return nil, ErrInvalidToken
	}
	if err := token.Get("free_override", &claims.FreeOverride); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
