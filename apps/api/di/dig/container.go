// Package digcontainer wires the API server with go.uber.org/dig.
package digcontainer

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/agoras/agoras/apps/api/echo"
	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/dashboard"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/session"
	"github.com/agoras/agoras/core/student"
	appfs "github.com/agoras/agoras/fs"
	emailsvc "github.com/agoras/agoras/services/email"
	logsvc "github.com/agoras/agoras/services/logger"
	"github.com/agoras/agoras/storage/database"
	sqlxrepos "github.com/agoras/agoras/storage/database/sqlx"
	"github.com/agoras/agoras/storage/memstore"
	"github.com/agoras/agoras/storage/redisstore"
)

const setUpTimeout = time.Minute

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Stores are the session store and the rate limiter: in redis when configured, in memory otherwise.
type Stores struct {
	dig.Out
	Sessions session.Store
	Limiter  session.Limiter
}

func newConfig() (*core.Config, error) {
	conf := core.NewConfig()
	return conf, conf.Validate()
}

func newRollbarLogger(conf *core.Config, name string) (*logsvc.RollbarLogger, error) {
	zl, err := logsvc.NewZap(conf.Env)
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	logger := logsvc.NewRollbarLogger(zl.Named(name), conf)
	logger.Enable(!conf.Debug)
	return logger, nil
}

func newLogger(conf *core.Config) (core.Logger, error) {
	logger, err := newRollbarLogger(conf, "api")
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	logger, err := newRollbarLogger(conf, "db")
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), setUpTimeout)
	defer cancel()

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Error("setting up database", err)
		return nil, errors.Wrap(err, "setting up database")
	}
	return db, nil
}

func newStores(conf *core.Config, logger core.Logger) (Stores, error) {
	if conf.Redis.Addr == "" {
		logger.Info("no redis configured: sessions are kept in memory")
		return Stores{
			Sessions: memstore.NewSessionStore(),
			Limiter:  memstore.NewLimiter(conf.RateLimit.Attempts, conf.RateLimit.Window),
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), conf.Redis.DialTimeout)
	defer cancel()
	client, err := redisstore.NewClient(ctx, conf)
	if err != nil {
		return Stores{}, errors.Wrap(err, "connecting to redis")
	}
	return Stores{
		Sessions: redisstore.NewSessionStore(client),
		Limiter:  redisstore.NewLimiter(client, conf.RateLimit.Attempts, conf.RateLimit.Window),
	}, nil
}

func newEmailTemplates(conf *core.Config) (*core.EmailTemplates, error) {
	return core.ParseEmailTemplates(appfs.FS, conf)
}

func newStudentService(
	tx core.Transactor,
	repo student.Repository,
	bookings booking.Repository,
	profiles profile.Repository,
) *student.Service {
	return student.NewService(tx, repo, bookings, profiles)
}

func newBookingService(
	tx core.Transactor,
	repo booking.Repository,
	students student.Repository,
	profiles profile.Repository,
) *booking.Service {
	return booking.NewService(tx, repo, students, profiles)
}

func newProfileService(
	conf *core.Config,
	tx core.Transactor,
	repo profile.Repository,
	studentSvc *student.Service,
	sessions session.Store,
	mailSvc core.EmailService,
	logger core.Logger,
) *profile.Service {
	return profile.NewService(conf, tx, repo, studentSvc, sessions, mailSvc, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewTransactor, dig.As(new(core.Transactor))))
	must(c.Provide(newStores))
	must(c.Provide(newEmailTemplates))
	must(c.Provide(emailsvc.New))
	must(c.Provide(sqlxrepos.NewProfileRepository, dig.As(new(profile.Repository))))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewBookingRepository, dig.As(new(booking.Repository))))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newStudentService))
	must(c.Provide(newBookingService))
	must(c.Provide(newProfileService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
