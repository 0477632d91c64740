// Package access decides whether a principal may reach a protected route.
package access

import (
	"github.com/agoras/agoras/core/profile"
)

// HomePath is where every denied principal is sent.
const HomePath = "/"

// Reason explains a Decision.
type Reason string

const (
	Granted        Reason = "granted"
	NoPrincipal    Reason = "no_principal"
	RoleNotAllowed Reason = "role_not_allowed"
)

// Decision is the outcome of the gate for one request.
type Decision struct {
	Allowed    bool   `json:"-"`
	Reason     Reason `json:"-"`
	RedirectTo string `json:"redirect,omitempty"`
}

// Decide lets principal through when it has a profile whose role is one of required.
// An empty required set only asks for a profile. Nothing is cached: callers pass a freshly loaded profile.
func Decide(principal *profile.Profile, required ...profile.Role) Decision {
	if principal == nil || principal.ID == "" || !principal.Role.Valid() {
		return deny(NoPrincipal)
	}
	if len(required) > 0 && !principal.Role.In(required...) {
		return deny(RoleNotAllowed)
	}
	return Decision{Allowed: true, Reason: Granted}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason, RedirectTo: HomePath}
}
