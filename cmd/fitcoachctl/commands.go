package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/redmonkez12/fitcoach-api/cmd/fitcoachctl/ui"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// userStore is the slice of user storage the operator commands touch.
type userStore interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	SetFreeOverride(ctx context.Context, userID uuid.UUID, free bool) error
	StartTrial(ctx context.Context, userID uuid.UUID, endsAt time.Time) error
}

// env opens storage lazily so --help works without a database.
type env struct {
	openStore     func(ctx context.Context) (userStore, func(), error)
	migrate       func(ctx context.Context) error
	confirm       func(title string) (bool, error)
	trialDuration time.Duration
	now           func() time.Time
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "fitcoachctl",
		Short:         "Operator tooling for FitCoach accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	userCmd := &cobra.Command{Use: "user", Short: "Inspect users"}
	userCmd.AddCommand(&cobra.Command{
		Use:   "show <email|id>",
		Short: "Show a user and their current entitlement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withUser(cmd, args[0], func(_ userStore, u *user.User) error {
				ui.PrintUser(cmd.OutOrStdout(), u, e.now())
				return nil
			})
		},
	})

	compCmd := &cobra.Command{Use: "comp", Short: "Grant or revoke free access"}
	for _, grant := range []bool{true, false} {
		grant := grant
		use, short := "revoke <email|id>", "Remove a manual free-access override"
		if grant {
			use, short = "grant <email|id>", "Give a user free access regardless of billing"
		}
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.setFreeOverride(cmd, args[0], grant)
			},
		}
		c.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")
		compCmd.AddCommand(c)
	}

	trialCmd := &cobra.Command{Use: "trial", Short: "Manage trials"}
	trialCmd.AddCommand(&cobra.Command{
		Use:   "start <email|id>",
		Short: "Start the one-time trial for a user who never had one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withUser(cmd, args[0], func(s userStore, u *user.User) error {
				endsAt := e.now().Add(e.trialDuration).UTC()
				if err := s.StartTrial(cmd.Context(), u.ID, endsAt); err != nil {
					return err
				}
				ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Trial started for %s, ends %s", u.Email, endsAt.Format(time.RFC3339)))
				return nil
			})
		},
	})

	root.AddCommand(userCmd, compCmd, trialCmd, &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.migrate(cmd.Context()); err != nil {
				return err
			}
			ui.PrintSuccess(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	})

	return root
}

func (e *env) setFreeOverride(cmd *cobra.Command, ref string, grant bool) error {
	yes, _ := cmd.Flags().GetBool("yes")

	return e.withUser(cmd, ref, func(s userStore, u *user.User) error {
		if u.FreeOverride == grant {
			ui.PrintSuccess(cmd.OutOrStdout(), "Nothing to do")
			return nil
		}

		if !yes {
			verb := "Remove free access from"
			if grant {
				verb = "Give free access to"
			}
			ok, err := e.confirm(fmt.Sprintf("%s %s?", verb, u.Email))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
		}

		if err := s.SetFreeOverride(cmd.Context(), u.ID, grant); err != nil {
			return err
		}

		updated, err := s.GetByID(cmd.Context(), u.ID)
		if err != nil {
			return err
		}
		ui.PrintUser(cmd.OutOrStdout(), updated, e.now())
		return nil
	})
}

func (e *env) withUser(cmd *cobra.Command, ref string, fn func(userStore, *user.User) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, closeFn, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	var u *user.User
	if id, perr := uuid.Parse(ref); perr == nil {
		u, err = s.GetByID(ctx, id)
	} else {
		u, err = s.GetByEmail(ctx, user.NormalizeEmail(ref))
	}
	if errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("no user matches %q", ref)
	}
	if err != nil {
		return err
	}

	return fn(s, u)
}
