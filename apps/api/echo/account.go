package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/session"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	// AuthResponse is returned whenever a session starts.
	AuthResponse struct {
		Token   string          `json:"token"`
		Profile profile.Profile `json:"profile"`
	}

	// SessionResponse describes the current login.
	SessionResponse struct {
		Session session.Session `json:"session"`
		Profile profile.Profile `json:"profile"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (s *Server) registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", s.signUp)
	ag.POST("/login", s.login)
	ag.POST("/password-reset", s.resetPassword)
	ag.POST("/password-reset-confirm", s.confirmPasswordReset)

	// authed endpoints
	ag.POST("/logout", s.logout, authed...)
	ag.GET("/session", s.currentSession, withGate(authed)...)
	ag.POST("/token-refresh", s.refreshTokenHandler, withGate(authed)...)
}

// limit counts an attempt on key and fails once the limit is reached.
func (s *Server) limit(ctx echo.Context, key string) error {
	allowed, err := s.deps.Limiter.Allow(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "checking rate limit")
	}
	if !allowed {
		return session.ErrRateLimited
	}
	return nil
}

func (s *Server) signUp(ctx echo.Context) error {
	var data profile.SignUp
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SignUp")
	}
	if err := data.Validate(s.deps.Validate, s.deps.ProfileSvc); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	p, err := s.deps.ProfileSvc.SignUp(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	token, err := s.IssueToken(reqCtx, p)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}
	return ctx.JSON(http.StatusCreated, AuthResponse{Token: token, Profile: p})
}

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	key := "login:" + data.Email + ":" + ctx.RealIP()
	if err := s.limit(ctx, key); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	p, err := s.deps.ProfileSvc.Authenticate(reqCtx, data.Email, data.Password)
	if err != nil {
		if errors.Cause(err) == profile.ErrAuthenticationFailed {
			return core.NewValidationError(profile.ErrAuthenticationFailed)
		}
		return errors.Wrap(err, "authenticating")
	}
	if err = s.deps.Limiter.Reset(reqCtx, key); err != nil {
		s.deps.Logger.Warn("resetting login attempts", err)
	}

	token, err := s.IssueToken(reqCtx, p)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: token, Profile: p})
}

func (s *Server) logout(ctx echo.Context) error {
	if sess, ok := ctx.Get(contextSessionKey).(session.Session); ok {
		if err := s.deps.Sessions.Delete(ctx.Request().Context(), sess.ID); err != nil {
			return errors.Wrap(err, "deleting session")
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) currentSession(ctx echo.Context) error {
	p, err := getContextProfile(ctx)
	if err != nil {
		return err
	}
	sess, ok := ctx.Get(contextSessionKey).(session.Session)
	if !ok {
		return errUnauthorized
	}
	return ctx.JSON(http.StatusOK, SessionResponse{Session: sess, Profile: p})
}

func (s *Server) refreshTokenHandler(ctx echo.Context) error {
	token, err := s.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (s *Server) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	if err := s.limit(ctx, "password-reset:"+ctx.RealIP()); err != nil {
		return err
	}

	if err := s.deps.ProfileSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		s.deps.Logger.Error("requesting password reset", err)
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (s *Server) confirmPasswordReset(ctx echo.Context) error {
	var data profile.ResetProfilePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetProfilePassword")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}
	if err := s.limit(ctx, "password-reset-confirm:"+ctx.RealIP()); err != nil {
		return err
	}

	if err := s.deps.ProfileSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
