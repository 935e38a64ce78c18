package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/fitcoach-api/internal/database"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

const (
	PurposePasswordReset = "reset"
	PurposeEmailChange   = "email-change"
)

var (
	ErrVerificationTokenNotFound = errors.New("invalid or expired token")
	ErrVerificationTokenExpired  = errors.New("token has expired")
)

// VerificationToken is a consumed token handed to the apply callback.
type VerificationToken struct {
	Identifier string
	Payload    string
	ExpiresAt  time.Time
}

// Subject is the part of the identifier after the purpose prefix.
func (t *VerificationToken) Subject() string {
	_, subject, _ := strings.Cut(t.Identifier, ":")
	return subject
}

// Identifier builds "<purpose>:<subject>".
func Identifier(purpose, subject string) string {
	return purpose + ":" + subject
}

// VerificationTokenRepository stores verification tokens in Postgres.
type VerificationTokenRepository struct {
	db  *bun.DB
	now func() time.Time
}

func NewVerificationTokenRepository(db *bun.DB) *VerificationTokenRepository {
	return &VerificationTokenRepository{db: db, now: time.Now}
}

// Create replaces any outstanding token for identifier and returns the new raw token.
func (r *VerificationTokenRepository) Create(ctx context.Context, identifier, payload string, ttl time.Duration) (string, error) {
	token, err := generateRandomToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*database.VerificationToken)(nil)).
			Where("identifier = ?", identifier).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewInsert().
			Model(&database.VerificationToken{
				TokenHash:  hashToken(token),
				Identifier: identifier,
				Payload:    payload,
				ExpiresAt:  r.now().Add(ttl),
			}).
			Exec(ctx)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}

	return token, nil
}

// Consume deletes the token and runs apply in the same transaction. If apply
// fails the token survives. Expired tokens are removed and reported.
func (r *VerificationTokenRepository) Consume(ctx context.Context, token, purpose string, apply func(ctx context.Context, w AccountWriter, vt *VerificationToken) error) error {
	tokenHash := hashToken(token)
	expired := false

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(database.VerificationToken)
		err := tx.NewSelect().
			Model(row).
			Where("token_hash = ?", tokenHash).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrVerificationTokenNotFound
			}
			return err
		}

		if !strings.HasPrefix(row.Identifier, purpose+":") {
			return ErrVerificationTokenNotFound
		}
		if !r.now().Before(row.ExpiresAt) {
			expired = true
			return ErrVerificationTokenExpired
		}

		if _, err := tx.NewDelete().
			Model((*database.VerificationToken)(nil)).
			Where("token_hash = ?", tokenHash).
			Exec(ctx); err != nil {
			return err
		}

		return apply(ctx, user.NewRepository(tx), &VerificationToken{
			Identifier: row.Identifier,
			Payload:    row.Payload,
			ExpiresAt:  row.ExpiresAt,
		})
	})

	if expired {
		if _, delErr := r.db.NewDelete().
			Model((*database.VerificationToken)(nil)).
			Where("token_hash = ?", tokenHash).
			Exec(ctx); delErr != nil {
			return fmt.Errorf("failed to delete expired token: %w", delErr)
		}
	}

	return err
}
