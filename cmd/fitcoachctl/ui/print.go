package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/redmonkez12/fitcoach-api/internal/entitlement"
	"github.com/redmonkez12/fitcoach-api/internal/user"
)

// PrintUser prints a user row and the entitlement resolved at now.
func PrintUser(w io.Writer, u *user.User, now time.Time) {
	status := entitlement.Resolve(u.Entitlement(), now)

	fmt.Fprintln(w, emailStyle.Render(u.Email))
	row(w, "ID", u.ID.String())
	row(w, "Name", u.Name)
	row(w, "State", stateBadge(entitlement.StateOf(u.Entitlement(), now)))
	row(w, "Has access", access(status.HasAccess))
	row(w, "Subscription", yesNo(u.SubscriptionActive))
	row(w, "Free override", yesNo(u.FreeOverride))
	if u.TrialEndsAt != nil {
		row(w, "Trial ends", fmt.Sprintf("%s (%d days left)", u.TrialEndsAt.UTC().Format(time.RFC3339), status.DaysLeft))
	} else {
		row(w, "Trial ends", refStyle.Render("never started"))
	}
	if u.BillingCustomerID != "" {
		row(w, "Stripe", u.BillingCustomerID+" "+refStyle.Render(u.BillingSubscriptionID))
	}
	if u.MobileBillingCustomerID != "" {
		row(w, "RevenueCat", u.MobileBillingCustomerID)
	}
	fmt.Fprintln(w)
}

// PrintSuccess prints a one-line confirmation.
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, grantedStyle.Render(msg))
}

// PrintError prints an error message.
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, deniedStyle.Render("Error: "+msg))
}

// Confirm asks a yes/no question on the terminal.
func Confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

func row(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label)+value)
}

func access(ok bool) string {
	if ok {
		return grantedStyle.Render("yes")
	}
	return deniedStyle.Render("no")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
