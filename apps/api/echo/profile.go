package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core/profile"
)

func (s *Server) registerProfileAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	pg := g.Group("/profiles")

	admin := withGate(authed, profile.RoleAdmin)
	pg.GET("", s.queryProfiles, admin...)
	pg.DELETE("", s.destroyProfiles, admin...)
	pg.GET("/roles", s.queryRoles, admin...)

	// detail endpoints
	pg.GET("/:id", s.retrieveProfile, withGate(authed)...)
	pg.PUT("/:id", s.updateProfile, withGate(authed)...)
	pg.DELETE("/:id", s.destroyProfile, admin...)
}

func (s *Server) queryProfiles(ctx echo.Context) error {
	filter := new(profile.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []profile.Profile{})
	}
	filter.Clean()

	var err error
	if filter.CreatedFrom, err = parseTimeParam(ctx, "created_from"); err != nil {
		return err
	}
	if filter.CreatedTo, err = parseTimeParam(ctx, "created_to"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	profiles, err := s.deps.ProfileSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying profiles")
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	return ctx.JSON(http.StatusOK, profiles)
}

func (s *Server) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, profile.Roles)
}

// retrieveProfile answers 404 for profiles other than the principal's, unless they are an admin.
func (s *Server) retrieveProfile(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if !(actor.ID == id || actor.IsAdmin()) {
		return errHttpNotFound
	}

	p, err := s.deps.ProfileSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding profile by ID")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (s *Server) updateProfile(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data profile.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	p, err := s.deps.ProfileSvc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (s *Server) destroyProfile(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	if err = s.deps.ProfileSvc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting profile")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) destroyProfiles(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var query DestroyMultipleRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err = s.deps.ProfileSvc.Delete(ctx.Request().Context(), actor, query.IDs...); err != nil {
		return errors.Wrap(err, "deleting profiles")
	}
	return ctx.NoContent(http.StatusNoContent)
}
