// Package entitlement derives whether a user may use the paid product right now.
//
// Access is never stored. It is recomputed from three persisted facts (an active
// subscription, a manual free override, and the trial end time) every time a
// token is issued, a session is refreshed, or a guarded request arrives.
package entitlement

import (
	"time"
)

const day = 24 * time.Hour

// Input is the subset of a user record that drives entitlement.
type Input struct {
	TrialEndsAt        *time.Time
	SubscriptionActive bool
	FreeOverride       bool
}

// Status is the derived entitlement at a point in time.
type Status struct {
	HasAccess   bool `json:"hasAccess"`
	TrialActive bool `json:"trialActive"`
	DaysLeft    int  `json:"daysLeft"`
}

// State is the conceptual lifecycle position of a user.
type State int

const (
	StateNoTrialNoSub State = iota
	StateTrialActive
	StateTrialExpiredNoSub
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateNoTrialNoSub:
		return "no_trial_no_sub"
	case StateTrialActive:
		return "trial_active"
	case StateTrialExpiredNoSub:
		return "trial_expired_no_sub"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Resolve computes access for in at now. It has no side effects.
func Resolve(in Input, now time.Time) Status {
	trialActive := in.TrialEndsAt != nil && in.TrialEndsAt.After(now)

	return Status{
		HasAccess:   in.SubscriptionActive || in.FreeOverride || trialActive,
		TrialActive: trialActive,
		DaysLeft:    DaysLeft(in.TrialEndsAt, now),
	}
}

// DaysLeft is ceil((trialEndsAt - now) / 24h), floored at zero.
func DaysLeft(trialEndsAt *time.Time, now time.Time) int {
	if trialEndsAt == nil {
		return 0
	}
	remaining := trialEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / day)
	if remaining%day != 0 {
		days++
	}
	return days
}

// StateOf maps in to its lifecycle state. A free override counts as subscribed.
func StateOf(in Input, now time.Time) State {
	switch {
	case in.SubscriptionActive || in.FreeOverride:
		return StateSubscribed
	case in.TrialEndsAt == nil:
		return StateNoTrialNoSub
	case in.TrialEndsAt.After(now):
		return StateTrialActive
	default:
		return StateTrialExpiredNoSub
	}
}
