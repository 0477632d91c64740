package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agoras/agoras/core/profile"
)

func TestDecide(t *testing.T) {
	family := []profile.Role{profile.RoleParent, profile.RoleStudent}
	withRole := func(role profile.Role) *profile.Profile {
		return &profile.Profile{ID: "8f3c2b50-7d0e-4f66-9b8e-0d7c3b1f5a21", Email: "x@agoras.no", Role: role}
	}

	tests := []struct {
		name      string
		principal *profile.Profile
		required  []profile.Role
		want      Decision
	}{
		{name: "no principal", required: family, want: Decision{Reason: NoPrincipal, RedirectTo: "/"}},
		{name: "session without profile", principal: &profile.Profile{}, required: family, want: Decision{Reason: NoPrincipal, RedirectTo: "/"}},
		{name: "unknown role", principal: withRole("owner"), want: Decision{Reason: NoPrincipal, RedirectTo: "/"}},
		{name: "student in family", principal: withRole(profile.RoleStudent), required: family, want: Decision{Allowed: true, Reason: Granted}},
		{name: "parent in family", principal: withRole(profile.RoleParent), required: family, want: Decision{Allowed: true, Reason: Granted}},
		{name: "teacher not in family", principal: withRole(profile.RoleTeacher), required: family, want: Decision{Reason: RoleNotAllowed, RedirectTo: "/"}},
		{name: "admin not in family", principal: withRole(profile.RoleAdmin), required: family, want: Decision{Reason: RoleNotAllowed, RedirectTo: "/"}},
		{name: "admin only", principal: withRole(profile.RoleAdmin), required: []profile.Role{profile.RoleAdmin}, want: Decision{Allowed: true, Reason: Granted}},
		{name: "any role", principal: withRole(profile.RoleTeacher), want: Decision{Allowed: true, Reason: Granted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.principal, tt.required...))
		})
	}
}

func TestDecide_sameRedirectForEveryDenial(t *testing.T) {
	noPrincipal := Decide(nil, profile.RoleAdmin)
	wrongRole := Decide(&profile.Profile{ID: "1", Role: profile.RoleParent}, profile.RoleAdmin)

	assert.False(t, noPrincipal.Allowed)
	assert.False(t, wrongRole.Allowed)
	assert.Equal(t, noPrincipal.RedirectTo, wrongRole.RedirectTo)
}
