package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/agoras/agoras/core/access"
	"github.com/agoras/agoras/core/profile"
)

// gate lets the request through when the principal holds one of roles (any role when empty).
func gate(roles ...profile.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var principal *profile.Profile
			if p, ok := ctx.Get(contextProfileKey).(profile.Profile); ok {
				principal = &p
			}
			if decision := access.Decide(principal, roles...); !decision.Allowed {
				return &deniedError{decision: decision}
			}
			return next(ctx)
		}
	}
}

// withGate appends the gate of roles to the authentication chain.
func withGate(authed []echo.MiddlewareFunc, roles ...profile.Role) []echo.MiddlewareFunc {
	mw := make([]echo.MiddlewareFunc, 0, len(authed)+1)
	mw = append(mw, authed...)
	return append(mw, gate(roles...))
}
