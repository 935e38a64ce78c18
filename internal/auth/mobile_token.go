package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/entitlement"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// MobileClaims are carried by the mobile bearer token.
// HasAccess is a snapshot for display; the server never authorizes on it.
type MobileClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	HasAccess bool   `json:"hasAccess"`
	jwt.RegisteredClaims
}

// MobileTokenService signs HS256 bearer tokens for the mobile app.
type MobileTokenService struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewMobileTokenService(secret []byte, duration time.Duration) (*MobileTokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("mobile token secret is empty")
	}
	return &MobileTokenService{
		secret:   secret,
		duration: duration,
		now:      time.Now,
	}, nil
}

// CreateToken signs a token for u. The access flag is resolved at issue time.
func (s *MobileTokenService) CreateToken(u *user.User) (string, error) {
	now := s.now()
	status := entitlement.Resolve(u.Entitlement(), now)

	claims := MobileClaims{
		UserID:    u.ID.String(),
		Email:     u.Email,
		HasAccess: status.HasAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign mobile token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks signature, algorithm and expiry and returns the claims.
func (s *MobileTokenService) VerifyToken(tokenStr string) (*MobileClaims, uuid.UUID, error) {
	claims := &MobileClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(_ *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, uuid.Nil, ErrExpiredToken
		}
		return nil, uuid.Nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, uuid.Nil, ErrInvalidToken
	}

	return claims, userID, nil
}

// Duration is the lifetime of issued tokens.
func (s *MobileTokenService) Duration() time.Duration {
	return s.duration
}
