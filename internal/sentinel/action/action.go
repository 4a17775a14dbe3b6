package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/access"
)

// ErrUnknownAction is returned for command names outside the supported set.
var ErrUnknownAction = errors.New("unknown action")

// Action is an operator command against an endpoint.
type Action string

const (
	Quarantine  Action = "Quarantine"
	Isolate     Action = "Isolate"
	DisableUsb  Action = "Disable USB"
	ViewDetails Action = "View Details"
)

// Actions lists the supported commands.
var Actions = []Action{Quarantine, Isolate, DisableUsb, ViewDetails}

// Parse resolves a command name, case-insensitively.
func Parse(s string) (Action, error) {
	for _, a := range Actions {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Required returns the permissions the action needs.
func (a Action) Required() []access.Permission {
	switch a {
	case Quarantine, Isolate:
		return []access.Permission{access.TakeActions}
	case DisableUsb:
		return []access.Permission{access.TakeActions, access.DisableUsb}
	case ViewDetails:
		return []access.Permission{access.ViewData}
	default:
		return nil
	}
}

// Quarantines reports whether the action moves the endpoint to Quarantined.
func (a Action) Quarantines() bool {
	return a == Quarantine || a == Isolate
}

// Mutating reports whether the action is an endpoint command recorded as an Admin event.
func (a Action) Mutating() bool {
	return a != ViewDetails
}

// Describe renders the Admin event description for the action.
func Describe(a Action, role access.Role, hostname string) string {
	return fmt.Sprintf("Admin action '%s' by %s on endpoint %s", a, role, hostname)
}
