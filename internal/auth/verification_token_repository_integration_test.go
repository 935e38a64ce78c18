package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fitcoach-api/internal/database"
	"github.com/redmonkez12/fitcoach-api/internal/database/databasetest"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

func TestVerificationTokenRepository_Integration(t *testing.T) {
	db := databasetest.NewDB(t)
	repo := NewVerificationTokenRepository(db)
	users := user.NewRepository(db)
	ctx := context.Background()

	u, err := users.Create(ctx, user.NewUser{Email: "v@example.com", PasswordHash: "old", TrialEndsAt: time.Now()})
	require.NoError(t, err)

	t.Run("consume applies the change once", func(t *testing.T) {
		token, err := repo.Create(ctx, Identifier(PurposePasswordReset, u.Email), "", time.Hour)
		require.NoError(t, err)

		err = repo.Consume(ctx, token, PurposePasswordReset, func(ctx context.Context, w AccountWriter, vt *VerificationToken) error {
			assert.Equal(t, u.Email, vt.Subject())
			return w.UpdatePassword(ctx, u.ID, "new-hash")
		})
		require.NoError(t, err)

		got, err := users.GetByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)

		err = repo.Consume(ctx, token, PurposePasswordReset, func(context.Context, AccountWriter, *VerificationToken) error {
			t.Fatal("apply must not run for a consumed token")
			return nil
		})
		assert.ErrorIs(t, err, ErrVerificationTokenNotFound)
	})

	t.Run("failed apply keeps the token", func(t *testing.T) {
		token, err := repo.Create(ctx, Identifier(PurposePasswordReset, u.Email), "", time.Hour)
		require.NoError(t, err)

		boom := errors.New("boom")
		err = repo.Consume(ctx, token, PurposePasswordReset, func(context.Context, AccountWriter, *VerificationToken) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)

		err = repo.Consume(ctx, token, PurposePasswordReset, func(context.Context, AccountWriter, *VerificationToken) error {
			return nil
		})
		assert.NoError(t, err)
	})

	t.Run("new token replaces the outstanding one", func(t *testing.T) {
		first, err := repo.Create(ctx, Identifier(PurposePasswordReset, u.Email), "", time.Hour)
		require.NoError(t, err)
		second, err := repo.Create(ctx, Identifier(PurposePasswordReset, u.Email), "", time.Hour)
		require.NoError(t, err)

		noop := func(context.Context, AccountWriter, *VerificationToken) error { return nil }
		assert.ErrorIs(t, repo.Consume(ctx, first, PurposePasswordReset, noop), ErrVerificationTokenNotFound)
		assert.NoError(t, repo.Consume(ctx, second, PurposePasswordReset, noop))
	})

	t.Run("purpose mismatch", func(t *testing.T) {
		token, err := repo.Create(ctx, Identifier(PurposeEmailChange, u.ID.String()), "x@example.com", time.Hour)
		require.NoError(t, err)

		noop := func(context.Context, AccountWriter, *VerificationToken) error { return nil }
		assert.ErrorIs(t, repo.Consume(ctx, token, PurposePasswordReset, noop), ErrVerificationTokenNotFound)
	})

	t.Run("expired token is removed", func(t *testing.T) {
		token, err := repo.Create(ctx, Identifier(PurposeEmailChange, uuid.NewString()), "y@example.com", time.Minute)
		require.NoError(t, err)

		repo.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { repo.now = time.Now }()

		noop := func(context.Context, AccountWriter, *VerificationToken) error { return nil }
		assert.ErrorIs(t, repo.Consume(ctx, token, PurposeEmailChange, noop), ErrVerificationTokenExpired)

		n, err := db.NewSelect().Model((*database.VerificationToken)(nil)).Where("token_hash = ?", hashToken(token)).Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
