package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, nu user.NewUser) (*user.User, error) {
	args := m.Called(ctx, nu)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

type mockRefreshRepo struct{ mock.Mock }

func (m *mockRefreshRepo) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	return m.Called(ctx, userID, token, expiresAt).Error(0)
}

func (m *mockRefreshRepo) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	args := m.Called(ctx, token)
	rt, _ := args.Get(0).(*RefreshToken)
	return rt, args.Error(1)
}

func (m *mockRefreshRepo) RevokeRefreshToken(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockRefreshRepo) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type mockVerifications struct{ mock.Mock }

func (m *mockVerifications) Create(ctx context.Context, identifier, payload string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, identifier, payload, ttl)
	return args.String(0), args.Error(1)
}

func (m *mockVerifications) Consume(ctx context.Context, token, purpose string, apply func(ctx context.Context, w AccountWriter, vt *VerificationToken) error) error {
	args := m.Called(ctx, token, purpose)
	if vt, ok := args.Get(0).(*VerificationToken); ok {
		w, _ := args.Get(1).(AccountWriter)
		return apply(ctx, w, vt)
	}
	return args.Error(2)
}

type mockAccountWriter struct{ mock.Mock }

func (m *mockAccountWriter) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return m.Called(ctx, userID, passwordHash).Error(0)
}

func (m *mockAccountWriter) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error {
	return m.Called(ctx, userID, email).Error(0)
}

type mockIdentity struct{ mock.Mock }

func (m *mockIdentity) Verify(ctx context.Context, rawToken string) (*IdentityClaims, error) {
	args := m.Called(ctx, rawToken)
	c, _ := args.Get(0).(*IdentityClaims)
	return c, args.Error(1)
}

type mockEmail struct{ mock.Mock }

func (m *mockEmail) SendWelcomeEmail(ctx context.Context, toEmail, name string, trialEndsAt time.Time) error {
	return m.Called(ctx, toEmail, name, trialEndsAt).Error(0)
}

func (m *mockEmail) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	return m.Called(ctx, toEmail, token).Error(0)
}

func (m *mockEmail) SendEmailChangeEmail(ctx context.Context, toEmail, token string) error {
	return m.Called(ctx, toEmail, token).Error(0)
}

type serviceFixture struct {
	svc       *Service
	users     *mockUserRepo
	refresh   *mockRefreshRepo
	verify    *mockVerifications
	identity  *mockIdentity
	email     *mockEmail
	sessions  *PasetoService
	mobile    *MobileTokenService
	now       time.Time
	trialSpan time.Duration
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	f := &serviceFixture{
		users:     new(mockUserRepo),
		refresh:   new(mockRefreshRepo),
		verify:    new(mockVerifications),
		identity:  new(mockIdentity),
		email:     new(mockEmail),
		sessions:  newTestPaseto(t, now),
		mobile:    newTestMobileTokens(t, "mobile-secret", now),
		now:       now,
		trialSpan: 7 * 24 * time.Hour,
	}

	f.svc = NewService(f.users, f.refresh, f.verify, f.sessions, f.mobile, f.identity, f.email, logging.NewNopLogger(), Options{
		SessionDuration:      15 * time.Minute,
		RefreshTokenDuration: 30 * 24 * time.Hour,
		TrialDuration:        f.trialSpan,
		PasswordResetTTL:     time.Hour,
		EmailChangeTTL:       24 * time.Hour,
	})
	f.svc.now = func() time.Time { return now }
	f.svc.sendInParallel = false

	return f
}

func TestService_Register(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	trialEnds := f.now.Add(f.trialSpan)

	created := &user.User{ID: uuid.New(), Email: "new@example.com", Name: "New", TrialEndsAt: &trialEnds, HasUsedTrial: true}

	f.users.On("Create", ctx, mock.MatchedBy(func(nu user.NewUser) bool {
		return nu.Email == "new@example.com" && nu.Name == "New" && nu.TrialEndsAt.Equal(trialEnds) &&
			nu.PasswordHash != "" && nu.PasswordHash != "password123"
	})).Return(created, nil)
	f.email.On("SendWelcomeEmail", mock.Anything, "new@example.com", "New", trialEnds).Return(nil)

	u, err := f.svc.Register(ctx, " New@Example.com ", "password123", " New ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	f.users.AssertExpectations(t)
	f.email.AssertExpectations(t)
}

func TestService_Register_Validation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "", "password123", "")
	assert.ErrorIs(t, err, ErrEmailRequired)
	_, err = f.svc.Register(ctx, "nope", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidEmailFormat)
	_, err = f.svc.Register(ctx, "a@example.com", "short", "")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Register_Duplicate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.users.On("Create", ctx, mock.Anything).Return(nil, user.ErrDuplicateEmail)

	_, err := f.svc.Register(ctx, "dup@example.com", "password123", "")
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
	f.email.AssertNotCalled(t, "SendWelcomeEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Authenticate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	hash, err := f.svc.hashPassword("correct-horse")
	require.NoError(t, err)
	stored := &user.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: hash}
	identityOnly := &user.User{ID: uuid.New(), Email: "g@example.com"}

	f.users.On("GetByEmail", ctx, "a@example.com").Return(stored, nil)
	f.users.On("GetByEmail", ctx, "g@example.com").Return(identityOnly, nil)
	f.users.On("GetByEmail", ctx, "missing@example.com").Return(nil, user.ErrNotFound)

	u, err := f.svc.Authenticate(ctx, "a@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, u.ID)

	_, err = f.svc.Authenticate(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "missing@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "g@example.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_IssueSession_CarriesSubscriptionState(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	u := &user.User{ID: uuid.New(), Email: "a@example.com", SubscriptionActive: true}
	f.refresh.On("StoreRefreshToken", ctx, u.ID, mock.AnythingOfType("string"), f.now.Add(30*24*time.Hour)).Return(nil)

	tokens, err := f.svc.IssueSession(ctx, u)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(900), tokens.ExpiresIn)

	claims, err := f.sessions.VerifyToken(tokens.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.True(t, claims.SubscriptionActive)
}

func TestService_RefreshSession_ReReadsUser(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	userID := uuid.New()
	// the session was issued before the payment webhook landed
	afterWebhook := &user.User{ID: userID, Email: "a@example.com", SubscriptionActive: true}

	f.refresh.On("GetRefreshToken", ctx, "old").Return(&RefreshToken{UserID: userID}, nil)
	f.refresh.On("RevokeRefreshToken", ctx, "old").Return(nil)
	f.users.On("GetByID", ctx, userID).Return(afterWebhook, nil)
	f.refresh.On("StoreRefreshToken", ctx, userID, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	tokens, err := f.svc.RefreshSession(ctx, "old")
	require.NoError(t, err)
	assert.NotEqual(t, "old", tokens.RefreshToken)

	claims, err := f.sessions.VerifyToken(tokens.SessionToken)
	require.NoError(t, err)
	assert.True(t, claims.SubscriptionActive)

	f.refresh.AssertExpectations(t)
}

func TestService_RefreshSession_Errors(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	gone := uuid.New()

	f.refresh.On("GetRefreshToken", ctx, "unknown").Return(nil, ErrRefreshTokenNotFound)
	f.refresh.On("GetRefreshToken", ctx, "revoked").Return(nil, ErrRefreshTokenRevoked)
	f.refresh.On("GetRefreshToken", ctx, "orphan").Return(&RefreshToken{UserID: gone}, nil)
	f.refresh.On("RevokeRefreshToken", ctx, "orphan").Return(nil)
	f.users.On("GetByID", ctx, gone).Return(nil, user.ErrNotFound)

	_, err := f.svc.RefreshSession(ctx, "unknown")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.svc.RefreshSession(ctx, "revoked")
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
	_, err = f.svc.RefreshSession(ctx, "orphan")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_RefreshSession_KeepsTokenOnReadFailure(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	dbDown := errors.New("connection reset")

	f.refresh.On("GetRefreshToken", ctx, "old").Return(&RefreshToken{UserID: userID}, nil)
	f.users.On("GetByID", ctx, userID).Return(nil, dbDown)

	_, err := f.svc.RefreshSession(ctx, "old")
	require.ErrorIs(t, err, dbDown)
	f.refresh.AssertNotCalled(t, "RevokeRefreshToken", ctx, "old")
}

func TestService_SignInWithIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("existing user", func(t *testing.T) {
		f := newServiceFixture(t)
		existing := &user.User{ID: uuid.New(), Email: "g@example.com"}
		f.identity.On("Verify", ctx, "id-token").Return(&IdentityClaims{Subject: "s", Email: "g@example.com"}, nil)
		f.users.On("GetByEmail", ctx, "g@example.com").Return(existing, nil)

		u, err := f.svc.SignInWithIdentity(ctx, "id-token")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, u.ID)
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("first sign-in creates user with trial", func(t *testing.T) {
		f := newServiceFixture(t)
		trialEnds := f.now.Add(f.trialSpan)
		created := &user.User{ID: uuid.New(), Email: "g@example.com", Name: "G", TrialEndsAt: &trialEnds}

		f.identity.On("Verify", ctx, "id-token").Return(&IdentityClaims{Subject: "s", Email: "g@example.com", Name: "G"}, nil)
		f.users.On("GetByEmail", ctx, "g@example.com").Return(nil, user.ErrNotFound).Once()
		f.users.On("Create", ctx, user.NewUser{Email: "g@example.com", Name: "G", TrialEndsAt: trialEnds}).Return(created, nil)
		f.email.On("SendWelcomeEmail", mock.Anything, "g@example.com", "G", trialEnds).Return(nil)

		u, err := f.svc.SignInWithIdentity(ctx, "id-token")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
		assert.False(t, u.HasPassword())
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newServiceFixture(t)
		f.identity.On("Verify", ctx, "bad").Return(nil, ErrInvalidIdentityToken)

		_, err := f.svc.SignInWithIdentity(ctx, "bad")
		assert.ErrorIs(t, err, ErrInvalidIdentityToken)
	})
}

func TestService_IssueMobileToken(t *testing.T) {
	f := newServiceFixture(t)
	u := &user.User{ID: uuid.New(), Email: "m@example.com", FreeOverride: true}

	token, err := f.svc.IssueMobileToken(u)
	require.NoError(t, err)

	claims, userID, err := f.mobile.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)
	assert.True(t, claims.HasAccess)
}

func TestService_RequestPasswordReset(t *testing.T) {
	ctx := context.Background()

	t.Run("known email", func(t *testing.T) {
		f := newServiceFixture(t)
		u := &user.User{ID: uuid.New(), Email: "a@example.com"}
		f.users.On("GetByEmail", ctx, "a@example.com").Return(u, nil)
		f.verify.On("Create", ctx, "reset:a@example.com", "", time.Hour).Return("raw-token", nil)
		f.email.On("SendPasswordResetEmail", mock.Anything, "a@example.com", "raw-token").Return(nil)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "A@example.com"))
		f.email.AssertExpectations(t)
	})

	t.Run("unknown email is silent", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", ctx, "nobody@example.com").Return(nil, user.ErrNotFound)

		require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
		f.verify.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_ResetPassword(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := &user.User{ID: uuid.New(), Email: "a@example.com"}
	writer := new(mockAccountWriter)

	f.verify.On("Consume", ctx, "raw-token", PurposePasswordReset).
		Return(&VerificationToken{Identifier: "reset:a@example.com"}, writer, nil)
	f.users.On("GetByEmail", ctx, "a@example.com").Return(u, nil)
	writer.On("UpdatePassword", ctx, u.ID, mock.MatchedBy(func(h string) bool {
		return f.svc.verifyPassword(h, "brand-new-pass")
	})).Return(nil)
	f.refresh.On("RevokeAllUserTokens", ctx, u.ID).Return(nil)

	require.NoError(t, f.svc.ResetPassword(ctx, "raw-token", "brand-new-pass"))

	writer.AssertExpectations(t)
	f.refresh.AssertExpectations(t)
}

func TestService_ResetPassword_BadToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.verify.On("Consume", ctx, "bad", PurposePasswordReset).Return(nil, nil, ErrVerificationTokenNotFound)

	err := f.svc.ResetPassword(ctx, "bad", "brand-new-pass")
	assert.ErrorIs(t, err, ErrVerificationTokenNotFound)
	f.refresh.AssertNotCalled(t, "RevokeAllUserTokens", mock.Anything, mock.Anything)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "bad", "short"), ErrPasswordTooShort)
}

func TestService_EmailChange(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	u := &user.User{ID: uuid.New(), Email: "old@example.com"}

	f.users.On("GetByID", ctx, u.ID).Return(u, nil)
	f.users.On("GetByEmail", ctx, "new@example.com").Return(nil, user.ErrNotFound)
	f.users.On("GetByEmail", ctx, "taken@example.com").Return(&user.User{ID: uuid.New()}, nil)
	f.verify.On("Create", ctx, "email-change:"+u.ID.String(), "new@example.com", 24*time.Hour).Return("change-token", nil)
	f.email.On("SendEmailChangeEmail", mock.Anything, "new@example.com", "change-token").Return(nil)

	require.NoError(t, f.svc.RequestEmailChange(ctx, u.ID, "New@example.com"))
	assert.ErrorIs(t, f.svc.RequestEmailChange(ctx, u.ID, "taken@example.com"), user.ErrDuplicateEmail)
	assert.ErrorIs(t, f.svc.RequestEmailChange(ctx, u.ID, "old@example.com"), ErrSameEmail)

	writer := new(mockAccountWriter)
	f.verify.On("Consume", ctx, "change-token", PurposeEmailChange).
		Return(&VerificationToken{Identifier: "email-change:" + u.ID.String(), Payload: "new@example.com"}, writer, nil)
	writer.On("UpdateEmail", ctx, u.ID, "new@example.com").Return(nil)

	gotID, err := f.svc.ConfirmEmailChange(ctx, "change-token")
	require.NoError(t, err)
	assert.Equal(t, u.ID, gotID)
	writer.AssertExpectations(t)
}

func TestService_ConfirmEmailChange_Conflict(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	id := uuid.New()
	writer := new(mockAccountWriter)

	f.verify.On("Consume", ctx, "tok", PurposeEmailChange).
		Return(&VerificationToken{Identifier: "email-change:" + id.String(), Payload: "taken@example.com"}, writer, nil)
	writer.On("UpdateEmail", ctx, id, "taken@example.com").Return(user.ErrDuplicateEmail)

	_, err := f.svc.ConfirmEmailChange(ctx, "tok")
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)
}

func TestService_EmailFailureDoesNotFailRegistration(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	trialEnds := f.now.Add(f.trialSpan)

	f.users.On("Create", ctx, mock.Anything).Return(&user.User{ID: uuid.New(), Email: "a@example.com", TrialEndsAt: &trialEnds}, nil)
	f.email.On("SendWelcomeEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	_, err := f.svc.Register(ctx, "a@example.com", "password123", "")
	assert.NoError(t, err)
}

func TestPasswordHashing(t *testing.T) {
	svc := &Service{}

	hash, err := svc.hashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	assert.True(t, svc.verifyPassword(hash, "s3cret-pass"))
	assert.False(t, svc.verifyPassword(hash, "other"))
	assert.False(t, svc.verifyPassword("garbage", "s3cret-pass"))

	again, err := svc.hashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again)
}
