// Package account serves the signed-in user's profile and trial lifecycle.
// Every response is resolved from the stored row, never from token claims.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/metrics"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// UserRepository is the user storage the account flows need.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	StartTrial(ctx context.Context, userID uuid.UUID, endsAt time.Time) error
}

type Service struct {
	users         UserRepository
	trialDuration time.Duration
	logger        *logging.Logger
	now           func() time.Time
}

func NewService(users UserRepository, trialDuration time.Duration, logger *logging.Logger) *Service {
	return &Service{
		users:         users,
		trialDuration: trialDuration,
		logger:        logger,
		now:           time.Now,
	}
}

// Me loads the current user row.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// StartTrial opens the one trial a user is allowed and returns its end.
func (s *Service) StartTrial(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	endsAt := s.now().Add(s.trialDuration).UTC()

	if err := s.users.StartTrial(ctx, userID, endsAt); err != nil {
		switch {
		case errors.Is(err, user.ErrTrialAlreadyUsed):
			metrics.TrialStartsTotal.WithLabelValues("already_used").Inc()
		case errors.Is(err, user.ErrNotFound):
			metrics.TrialStartsTotal.WithLabelValues("not_found").Inc()
		default:
			metrics.TrialStartsTotal.WithLabelValues("error").Inc()
			return time.Time{}, fmt.Errorf("failed to start trial: %w", err)
		}
		return time.Time{}, err
	}

	metrics.TrialStartsTotal.WithLabelValues("started").Inc()
	s.logger.WithFields(map[string]any{
		"user_id":       userID,
		"trial_ends_at": endsAt,
	}).Info("trial started")
	return endsAt, nil
}
