package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/fitcoach-api/internal/database"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrDuplicateEmail   = errors.New("email already exists")
	ErrTrialAlreadyUsed = errors.New("trial already used")
)

const uniqueViolation = "23505"

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx bun.IDB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a user whose trial starts immediately; the trial latch is set in the same insert.
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	trialEndsAt := nu.TrialEndsAt
	dbUser := &database.User{
		Email:        NormalizeEmail(nu.Email),
		Name:         nu.Name,
		PasswordHash: nullString(nu.PasswordHash),
		TrialEndsAt:  &trialEndsAt,
		HasUsedTrial: true,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", NormalizeEmail(email))
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// FindByBillingRef looks a user up by processor subscription id, then by customer id.
func (r *Repository) FindByBillingRef(ctx context.Context, subscriptionID, customerID string) (*User, error) {
	if subscriptionID != "" {
		u, err := r.getOne(ctx, "billing_subscription_id = ?", subscriptionID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	if customerID != "" {
		return r.getOne(ctx, "billing_customer_id = ?", customerID)
	}
	return nil, ErrNotFound
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// StartTrial sets the trial end for a user who has never had a trial.
// The latch check and write are one conditional update, so concurrent calls
// cannot both succeed.
func (r *Repository) StartTrial(ctx context.Context, userID uuid.UUID, endsAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("trial_ends_at = ?", endsAt).
		Set("has_used_trial = ?", true).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Where("has_used_trial = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to start trial: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	exists, err := r.db.NewSelect().
		Model((*database.User)(nil)).
		Where("id = ?", userID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrTrialAlreadyUsed
}

// ApplyBillingChange writes change to the user's row as one statement.
// It reports false when the row already reflects a newer event from the same
// source, in which case nothing is written.
func (r *Repository) ApplyBillingChange(ctx context.Context, userID uuid.UUID, change BillingChange) (bool, error) {
	q := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("subscription_active = ?", change.SubscriptionActive).
		Set("updated_at = NOW()").
		Where("id = ?", userID)

	eventCol := "billing_event_at"
	customerCol := "billing_customer_id"
	if change.Source == SourceRevenueCat {
		eventCol = "mobile_billing_event_at"
		customerCol = "mobile_billing_customer_id"
	}

	if change.CustomerID != "" {
		q = q.Set("? = ?", bun.Ident(customerCol), change.CustomerID)
	}

	if change.Source == SourceStripe {
		switch {
		case change.ClearSubscriptionID:
			q = q.Set("billing_subscription_id = NULL")
		case change.SubscriptionID != "":
			q = q.Set("billing_subscription_id = ?", change.SubscriptionID)
		}
	}

	if !change.EventAt.IsZero() {
		eventAt := change.EventAt.UTC()
		q = q.Set("? = ?", bun.Ident(eventCol), eventAt).
			WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
				return q.Where("? IS NULL", bun.Ident(eventCol)).
					WhereOr("? <= ?", bun.Ident(eventCol), eventAt)
			})
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to apply billing change: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// SetFreeOverride grants or removes a manual comp.
func (r *Repository) SetFreeOverride(ctx context.Context, userID uuid.UUID, free bool) error {
	return r.updateOne(ctx, userID, "free_override = ?", free)
}

// UpdatePassword updates a user's password hash
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	return r.updateOne(ctx, userID, "password_hash = ?", passwordHash)
}

// UpdateEmail changes a user's email address.
func (r *Repository) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error {
	err := r.updateOne(ctx, userID, "email = ?", NormalizeEmail(email))
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *Repository) updateOne(ctx context.Context, userID uuid.UUID, set string, arg any) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set(set, arg).
		Set("updated_at = NOW()").
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                      dbu.ID,
		Email:                   dbu.Email,
		Name:                    dbu.Name,
		PasswordHash:            deref(dbu.PasswordHash),
		TrialEndsAt:             dbu.TrialEndsAt,
		HasUsedTrial:            dbu.HasUsedTrial,
		SubscriptionActive:      dbu.SubscriptionActive,
		FreeOverride:            dbu.FreeOverride,
		BillingCustomerID:       deref(dbu.BillingCustomerID),
		BillingSubscriptionID:   deref(dbu.BillingSubscriptionID),
		MobileBillingCustomerID: deref(dbu.MobileBillingCustomerID),
		CreatedAt:               dbu.CreatedAt,
		UpdatedAt:               dbu.UpdatedAt,
	}
}
