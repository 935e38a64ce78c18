package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/redmonkez12/fitcoach-api/internal/entitlement"
)

var (
	emailStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	grantedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	deniedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	refStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Width(14).
			Foreground(lipgloss.Color("245"))
)

// stateColors keys on the resolved entitlement state.
var stateColors = map[entitlement.State]lipgloss.Color{
	entitlement.StateNoTrialNoSub:      lipgloss.Color("241"),
	entitlement.StateTrialActive:       lipgloss.Color("214"),
	entitlement.StateTrialExpiredNoSub: lipgloss.Color("196"),
	entitlement.StateSubscribed:        lipgloss.Color("42"),
}

func stateBadge(s entitlement.State) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(stateColors[s]).
		Render(s.String())
}
