package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/profile"
)

func (s *Server) registerBookingAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	bg := g.Group("/bookings")

	anyRole := withGate(authed)
	families := withGate(authed, profile.RoleAdmin, profile.RoleParent, profile.RoleStudent)
	admin := withGate(authed, profile.RoleAdmin)

	bg.GET("", s.queryBookings, anyRole...)
	bg.POST("", s.createBooking, families...)
	bg.DELETE("", s.destroyBookings, admin...)

	// detail endpoints
	bg.GET("/:id", s.retrieveBooking, anyRole...)
	bg.PUT("/:id", s.updateBooking, admin...)
	bg.PATCH("/:id/status", s.setBookingStatus, anyRole...)
	bg.DELETE("/:id", s.destroyBooking, admin...)
}

func (s *Server) queryBookings(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	filter := new(booking.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []booking.Booking{})
	}
	if filter.ScheduledFrom, err = parseTimeParam(ctx, "scheduled_from"); err != nil {
		return err
	}
	if filter.ScheduledTo, err = parseTimeParam(ctx, "scheduled_to"); err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	bookings, err := s.deps.BookingSvc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying bookings")
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	return ctx.JSON(http.StatusOK, bookings)
}

func (s *Server) createBooking(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data booking.NewBooking
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	b, err := s.deps.BookingSvc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating booking")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (s *Server) retrieveBooking(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	b, err := s.deps.BookingSvc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (s *Server) updateBooking(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data booking.UpdateBooking
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBooking")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	b, err := s.deps.BookingSvc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (s *Server) setBookingStatus(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}

	var data booking.StatusChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err = data.Validate(s.deps.Validate); err != nil {
		return err
	}

	b, err := s.deps.BookingSvc.SetStatus(ctx.Request().Context(), actor, ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting booking status")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (s *Server) destroyBooking(ctx echo.Context) error {
	actor, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	if err = s.deps.BookingSvc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting booking")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) destroyBookings(ctx echo.Context) error {
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

	if err = s.deps.BookingSvc.Delete(ctx.Request().Context(), actor, query.IDs...); err != nil {
		return errors.Wrap(err, "deleting bookings")
	}
	return ctx.NoContent(http.StatusNoContent)
}
