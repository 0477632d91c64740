// Package testutil wires the services over the in-memory stores for tests.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/dashboard"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/student"
	appfs "github.com/agoras/agoras/fs"
	emailsvc "github.com/agoras/agoras/services/email"
	logsvc "github.com/agoras/agoras/services/logger"
	inmemdb "github.com/agoras/agoras/storage/database/inmem"
	"github.com/agoras/agoras/storage/memstore"
)

const Password = "Zq8#Vx2!Wm"

var loadPasswordsOnce sync.Once

// Env holds the services of a test, sharing one in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     *logsvc.RollbarLogger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	Sessions   *memstore.SessionStore
	Limiter    *memstore.Limiter
	Mail       *emailsvc.ConsoleServiceMock
	Templates  *core.EmailTemplates

	ProfileRepo profile.Repository
	StudentRepo student.Repository
	BookingRepo booking.Repository

	Profiles  *profile.Service
	Students  *student.Service
	Bookings  *booking.Service
	Dashboard *dashboard.Service
}

func NewConfig() *core.Config {
	return &core.Config{
		Debug:                     true,
		TestMode:                  true,
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "Agoras",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		ContactFormURL:            "https://tally.so/r/31o4LW",
		DefaultFromEmail:          "Agoras <noreply@agoras.test>",
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			Host:                      ":8000",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			SessionTTL:                24 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Email:     core.EmailConfig{Provider: core.EmailProviderConsole},
		RateLimit: core.RateLimitConfig{Attempts: 5, Window: time.Minute},
	}
}

// NewLogger never reports to Rollbar and discards its output.
func NewLogger(conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(zap.NewNop().Sugar(), conf)
	logger.Enable(false)
	return logger
}

// NewValidator registers every validation tag of the application.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	plan.InitValidators(validate, translator)
	profile.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	booking.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	loadPasswordsOnce.Do(func() {
		f, err := appfs.FS.Open(appfs.CommonPasswordsFile)
		if err != nil {
			t.Fatalf("opening common passwords: %v", err)
		}
		defer func() { _ = f.Close() }()
		if err = profile.LoadCommonPasswords(f); err != nil {
			t.Fatalf("loading common passwords: %v", err)
		}
	})

	conf := NewConfig()
	logger := NewLogger(conf)
	tmpls, err := core.ParseEmailTemplates(appfs.FS, conf)
	if err != nil {
		t.Fatalf("parsing email templates: %v", err)
	}

	env := &Env{
		Conf:      conf,
		Logger:    logger,
		DB:        inmemdb.Open(),
		Sessions:  memstore.NewSessionStore(),
		Limiter:   memstore.NewLimiter(conf.RateLimit.Attempts, conf.RateLimit.Window),
		Mail:      emailsvc.NewConsoleServiceMock(conf, tmpls, logger),
		Templates: tmpls,
	}
	env.Validate, env.Translator = NewValidator()
	env.ProfileRepo = inmemdb.NewProfileRepository(env.DB)
	env.StudentRepo = inmemdb.NewStudentRepository(env.DB)
	env.BookingRepo = inmemdb.NewBookingRepository(env.DB)

	env.Students = student.NewService(env.DB, env.StudentRepo, env.BookingRepo, env.ProfileRepo)
	env.Bookings = booking.NewService(env.DB, env.BookingRepo, env.StudentRepo, env.ProfileRepo)
	env.Profiles = profile.NewService(conf, env.DB, env.ProfileRepo, env.Students, env.Sessions, env.Mail, logger)
	env.Dashboard = dashboard.NewService(env.ProfileRepo, env.StudentRepo, env.BookingRepo, env.Students, env.Bookings)
	return env
}

// CreateProfile stores a profile directly, bypassing sign-up.
func CreateProfile(
	t *testing.T,
	repo profile.Repository,
	name, email string,
	role profile.Role,
	tier plan.Tier,
	createdAt ...time.Time,
) profile.Profile {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	p := profile.Profile{
		ID:        uuid.New().String(),
		Email:     email,
		Role:      role,
		PlanType:  tier,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if name != "" {
		p.FullName = &name
	}
	if err := p.SetPassword(Password); err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	p, err := repo.CreateProfile(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	return p
}

// CreateStudent stores a student of parentID directly.
func CreateStudent(t *testing.T, repo student.Repository, parentID, name string, tier plan.Tier, createdAt ...time.Time) student.Student {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	s, err := repo.CreateStudent(context.Background(), student.Student{
		ID:           uuid.New().String(),
		ParentID:     parentID,
		FullName:     name,
		GradeLevel:   "10. trinn",
		CurrentLevel: student.LevelLowerSecondary,
		PlanType:     tier,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

// CreateBooking stores a booking directly, bypassing the plan checks.
func CreateBooking(
	t *testing.T,
	repo booking.Repository,
	studentID string,
	teacherID *string,
	bt plan.BookingType,
	status booking.Status,
	scheduled time.Time,
	createdAt ...time.Time,
) booking.Booking {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	b, err := repo.CreateBooking(context.Background(), booking.Booking{
		ID:              uuid.New().String(),
		StudentID:       studentID,
		TeacherID:       teacherID,
		BookingType:     bt,
		ScheduledDate:   scheduled.UTC(),
		DurationMinutes: 30,
		Status:          status,
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	})
	if err != nil {
		t.Fatalf("CreateBooking() failed: %v", err)
	}
	return b
}
