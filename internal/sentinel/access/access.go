package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/config"
)

// ErrPermissionDenied is returned when a role lacks the permission an operation needs.
var ErrPermissionDenied = errors.New("permission denied")

// Role is the immutable role of the acting user.
type Role string

const (
	Administrator   Role = "Administrator"
	SecurityAnalyst Role = "Security Analyst"
	Auditor         Role = "Auditor"
)

// Roles lists the built-in roles.
var Roles = []Role{Administrator, SecurityAnalyst, Auditor}

// ParseRole resolves a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Permission is an atomic capability.
type Permission string

const (
	ViewData       Permission = "ViewData"
	TakeActions    Permission = "TakeActions"
	DisableUsb     Permission = "DisableUsb"
	ManageSettings Permission = "ManageSettings"
)

// Permissions lists every permission.
var Permissions = []Permission{ViewData, TakeActions, DisableUsb, ManageSettings}

// DefaultPolicy is the built-in role to permission mapping.
func DefaultPolicy() map[Role][]Permission {
	return map[Role][]Permission{
		Administrator:   {ViewData, TakeActions, DisableUsb, ManageSettings},
		SecurityAnalyst: {ViewData, TakeActions},
		Auditor:         {ViewData},
	}
}

// Gate answers authorization questions from a static role mapping.
type Gate struct {
	grants map[Role]map[Permission]struct{}
}

// NewGate validates mapping and builds a gate. Every role in roles must have an entry;
// a missing entry or an unknown permission is a configuration error. A nil roles
// list means the built-in Roles.
func NewGate(mapping map[Role][]Permission, roles []Role) (*Gate, error) {
	if roles == nil {
		roles = Roles
	}
	known := make(map[Permission]struct{}, len(Permissions))
	for _, p := range Permissions {
		known[p] = struct{}{}
	}

	g := &Gate{grants: make(map[Role]map[Permission]struct{}, len(mapping))}
	for _, r := range roles {
		perms, ok := mapping[r]
		if !ok {
			return nil, fmt.Errorf("%w: role %q has no permission mapping", config.ErrConfiguration, r)
		}
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			if _, ok := known[p]; !ok {
				return nil, fmt.Errorf("%w: role %q maps unknown permission %q", config.ErrConfiguration, r, p)
			}
			set[p] = struct{}{}
		}
		g.grants[r] = set
	}
	return g, nil
}

// MustDefaultGate returns a gate over DefaultPolicy.
func MustDefaultGate() *Gate {
	g, err := NewGate(DefaultPolicy(), nil)
	if err != nil {
		panic(err)
	}
	return g
}

// PermissionsFor returns the permissions of role in the order of Permissions.
func (g *Gate) PermissionsFor(role Role) []Permission {
	var out []Permission
	for _, p := range Permissions {
		if _, ok := g.grants[role][p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// CanPerform reports whether role holds permission.
func (g *Gate) CanPerform(role Role, permission Permission) bool {
	_, ok := g.grants[role][permission]
	return ok
}

// Require returns ErrPermissionDenied naming the first permission role lacks.
func (g *Gate) Require(role Role, permissions ...Permission) error {
	for _, p := range permissions {
		if !g.CanPerform(role, p) {
			return fmt.Errorf("%w: %s lacks %s", ErrPermissionDenied, role, p)
		}
	}
	return nil
}
