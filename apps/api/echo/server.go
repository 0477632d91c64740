// Package echoapi exposes the application over HTTP with labstack/echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/dashboard"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/session"
	"github.com/agoras/agoras/core/student"
)

type (
	// Deps are the services the Server is made of.
	Deps struct {
		dig.In

		Conf         *core.Config
		Logger       core.Logger
		Validate     *validator.Validate
		Translator   ut.Translator
		Sessions     session.Store
		Limiter      session.Limiter
		ProfileSvc   *profile.Service
		StudentSvc   *student.Service
		BookingSvc   *booking.Service
		DashboardSvc *dashboard.Service
	}

	Server struct {
		deps      Deps
		app       *echo.Echo
		jwtConfig middleware.JWTConfig
		errors    chan error
		shutdown  chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps Deps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Validate, "Validate"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.Sessions, "Sessions"),
		vala.IsNotNil(deps.Limiter, "Limiter"),
		vala.IsNotNil(deps.ProfileSvc, "ProfileSvc"),
		vala.IsNotNil(deps.StudentSvc, "StudentSvc"),
		vala.IsNotNil(deps.BookingSvc, "BookingSvc"),
		vala.IsNotNil(deps.DashboardSvc, "DashboardSvc"),
	).CheckAndPanic()

	s := &Server{
		deps: deps,
		app:  echo.New(),
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(deps.Conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = s.newAppHTTPErrorHandler(s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	v1.GET("/plans", plans)
	v1.GET("/contact", s.contact)

	authed := []echo.MiddlewareFunc{middleware.JWTWithConfig(s.jwtConfig), s.principalMiddleware}

	s.registerAuthAPI(v1, authed)
	s.registerProfileAPI(v1, authed)
	s.registerStudentAPI(v1, authed)
	s.registerBookingAPI(v1, authed)
	s.registerDashboardAPI(v1, authed)
}

// Start listens on the configured address. Errors other than closing are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // a shutdown is already pending
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Agoras API!")
}

func plans(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, plan.Catalogue())
}

func (s *Server) contact(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, s.deps.Conf.ContactFormURL)
}
