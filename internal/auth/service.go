package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrSameEmail          = errors.New("new email matches the current one")
)

// Argon2id parameters - tuned for security vs performance balance
// Time: 3, Memory: 64MB, Threads: 4, KeyLen: 32 bytes
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// SessionTokens is what a browser receives after sign-in or refresh.
type SessionTokens struct {
	SessionToken string         `json:"session_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	Session      *SessionClaims `json:"session"`
}

// Options carries durations from config.
type Options struct {
	SessionDuration      time.Duration
	RefreshTokenDuration time.Duration
	TrialDuration        time.Duration
	PasswordResetTTL     time.Duration
	EmailChangeTTL       time.Duration
}

// Service handles authentication business logic
type Service struct {
	users          UserRepository
	refreshTokens  RefreshTokenRepository
	verifications  VerificationTokenStore
	sessions       SessionTokenService
	mobileTokens   MobileTokenIssuer
	identity       IdentityVerifier
	emailService   EmailService
	logger         *logging.Logger
	opts           Options
	now            func() time.Time
	sendInParallel bool
}

func NewService(
	users UserRepository,
	refreshTokens RefreshTokenRepository,
	verifications VerificationTokenStore,
	sessions SessionTokenService,
	mobileTokens MobileTokenIssuer,
	identity IdentityVerifier,
	emailService EmailService,
	logger *logging.Logger,
	opts Options,
) *Service {
	return &Service{
		users:          users,
		refreshTokens:  refreshTokens,
		verifications:  verifications,
		sessions:       sessions,
		mobileTokens:   mobileTokens,
		identity:       identity,
		emailService:   emailService,
		logger:         logger,
		opts:           opts,
		now:            time.Now,
		sendInParallel: true,
	}
}

// Register creates a password account with its trial already running.
func (s *Service) Register(ctx context.Context, email, password, name string) (*user.User, error) {
	email = user.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: passwordHash,
		TrialEndsAt:  s.now().Add(s.opts.TrialDuration),
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, user.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.sendWelcome(newUser)

	return newUser, nil
}

// Authenticate checks credentials and returns the stored user.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !existingUser.HasPassword() || !s.verifyPassword(existingUser.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return existingUser, nil
}

// SignInWithIdentity verifies a provider ID token and returns the matching
// user, creating one with a fresh trial on first sign-in.
func (s *Service) SignInWithIdentity(ctx context.Context, idToken string) (*user.User, error) {
	claims, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	existingUser, err := s.users.GetByEmail(ctx, claims.Email)
	if err == nil {
		return existingUser, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Email:       claims.Email,
		Name:        claims.Name,
		TrialEndsAt: s.now().Add(s.opts.TrialDuration),
	})
	if errors.Is(err, user.ErrDuplicateEmail) {
		// Lost a race with a concurrent first sign-in.
		return s.users.GetByEmail(ctx, claims.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created from identity provider", "user_id", newUser.ID)
	s.sendWelcome(newUser)

	return newUser, nil
}

// IssueSession is the single place a web session is minted. Every sign-in
// method and every refresh ends here, so all sessions carry the same fields.
func (s *Service) IssueSession(ctx context.Context, u *user.User) (*SessionTokens, error) {
	claims := SessionClaimsFor(u)

	sessionToken, err := s.sessions.CreateToken(claims, s.opts.SessionDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	refreshToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := s.now().Add(s.opts.RefreshTokenDuration)
	if err := s.refreshTokens.StoreRefreshToken(ctx, u.ID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	now := s.now()
	claims.IssuedAt = now
	claims.ExpiresAt = now.Add(s.opts.SessionDuration)

	return &SessionTokens{
		SessionToken: sessionToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.opts.SessionDuration.Seconds()),
		Session:      &claims,
	}, nil
}

// RefreshSession rotates the refresh token and re-reads the user row so
// billing changes made since the last refresh reach the browser.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (*SessionTokens, error) {
	rt, err := s.refreshTokens.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	// A failed read keeps the old token usable for a retry.
	existingUser, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			_ = s.refreshTokens.RevokeRefreshToken(ctx, refreshToken)
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Revoke before issuing so a stolen token cannot be replayed.
	if err := s.refreshTokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	return s.IssueSession(ctx, existingUser)
}

// RevokeRefreshToken revokes a refresh token
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return s.refreshTokens.RevokeRefreshToken(ctx, refreshToken)
}

// IssueMobileToken signs a bearer token for u.
func (s *Service) IssueMobileToken(u *user.User) (string, error) {
	return s.mobileTokens.CreateToken(u)
}

// RequestPasswordReset emails a reset link. It never reveals whether the
// address has an account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = user.NormalizeEmail(email)

	existingUser, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			s.logger.Warn("failed to get user for password reset", "error", err)
		}
		return nil
	}

	token, err := s.verifications.Create(ctx, Identifier(PurposePasswordReset, existingUser.Email), "", s.opts.PasswordResetTTL)
	if err != nil {
		s.logger.Warn("failed to create password reset token", "error", err)
		return nil
	}

	s.send(func(ctx context.Context) error {
		return s.emailService.SendPasswordResetEmail(ctx, existingUser.Email, token)
	}, "password reset", existingUser.Email)

	return nil
}

// ResetPassword consumes a reset token and sets the new password in one transaction.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	var userID uuid.UUID
	err = s.verifications.Consume(ctx, token, PurposePasswordReset, func(ctx context.Context, w AccountWriter, vt *VerificationToken) error {
		u, err := s.users.GetByEmail(ctx, vt.Subject())
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return ErrVerificationTokenNotFound
			}
			return err
		}
		userID = u.ID
		return w.UpdatePassword(ctx, u.ID, passwordHash)
	})
	if err != nil {
		return err
	}

	if err := s.refreshTokens.RevokeAllUserTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password reset", "user_id", userID, "error", err)
	}

	return nil
}

// RequestEmailChange sends a confirmation link to the new address.
func (s *Service) RequestEmailChange(ctx context.Context, userID uuid.UUID, newEmail string) error {
	newEmail = user.NormalizeEmail(newEmail)
	if err := validateEmail(newEmail); err != nil {
		return err
	}

	existingUser, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if existingUser.Email == newEmail {
		return ErrSameEmail
	}

	if _, err := s.users.GetByEmail(ctx, newEmail); err == nil {
		return user.ErrDuplicateEmail
	} else if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	token, err := s.verifications.Create(ctx, Identifier(PurposeEmailChange, userID.String()), newEmail, s.opts.EmailChangeTTL)
	if err != nil {
		return fmt.Errorf("failed to create email change token: %w", err)
	}

	s.send(func(ctx context.Context) error {
		return s.emailService.SendEmailChangeEmail(ctx, newEmail, token)
	}, "email change", newEmail)

	return nil
}

// ConfirmEmailChange consumes the token and applies the stored address.
func (s *Service) ConfirmEmailChange(ctx context.Context, token string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.verifications.Consume(ctx, token, PurposeEmailChange, func(ctx context.Context, w AccountWriter, vt *VerificationToken) error {
		id, err := uuid.Parse(vt.Subject())
		if err != nil {
			return ErrVerificationTokenNotFound
		}
		userID = id
		return w.UpdateEmail(ctx, id, vt.Payload)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return userID, nil
}

func (s *Service) sendWelcome(u *user.User) {
	if u.TrialEndsAt == nil {
		return
	}
	trialEndsAt := *u.TrialEndsAt
	s.send(func(ctx context.Context) error {
		return s.emailService.SendWelcomeEmail(ctx, u.Email, u.Name, trialEndsAt)
	}, "welcome", u.Email)
}

// send delivers email off the request path; failures are logged only.
func (s *Service) send(fn func(ctx context.Context) error, kind, to string) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(logging.WithLogger(ctx, s.logger)); err != nil {
			s.logger.Warn("failed to send email", "kind", kind, "email", to, "error", err)
		}
	}
	if s.sendInParallel {
		go run()
		return
	}
	run()
}

func validateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmailFormat
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}

// hashPassword creates an argon2id hash of the password
func (s *Service) hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		argon2KeyLen,
	)

	// Encode as: $argon2id$v=19$m=65536,t=3,p=4$salt$hash
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		encodedSalt,
		encodedHash,
	), nil
}

// verifyPassword checks if a password matches the stored hash
func (s *Service) verifyPassword(encodedHash, password string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	inputHash := argon2.IDKey(
		[]byte(password),
		salt,
		iterations,
		memory,
		threads,
		uint32(len(decodedHash)),
	)

	return subtle.ConstantTimeCompare(decodedHash, inputHash) == 1
}

// generateRandomToken creates a cryptographically secure random token
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
