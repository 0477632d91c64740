package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core/profile"
)

func (s *Server) registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	dg := g.Group("/dashboard")
	dg.GET("/admin", s.adminDashboard, withGate(authed, profile.RoleAdmin)...)
	dg.GET("/mentor", s.mentorDashboard, withGate(authed, profile.RoleTeacher)...)
	dg.GET("/family", s.familyDashboard, withGate(authed, profile.RoleParent, profile.RoleStudent)...)
}

func (s *Server) adminDashboard(ctx echo.Context) error {
	overview, err := s.deps.DashboardSvc.Admin(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building admin dashboard")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (s *Server) mentorDashboard(ctx echo.Context) error {
	p, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	overview, err := s.deps.DashboardSvc.Mentor(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "building mentor dashboard")
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (s *Server) familyDashboard(ctx echo.Context) error {
	p, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	overview, err := s.deps.DashboardSvc.Family(ctx.Request().Context(), p)
	if err != nil {
		return errors.Wrap(err, "building family dashboard")
	}
	return ctx.JSON(http.StatusOK, overview)
}
