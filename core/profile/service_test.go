package profile_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/session"
	"github.com/agoras/agoras/core/student"
	"github.com/agoras/agoras/tests"
)

type failingOwned struct{}

func (failingOwned) EnsureSelfStudent(context.Context, profile.Profile, core.DBExecutor) error {
	return errors.New("boom")
}

func (failingOwned) SyncSelfStudentPlan(context.Context, profile.Profile, core.DBExecutor) error {
	return nil
}

func (failingOwned) DeleteOwnedBy(context.Context, []string, core.DBExecutor) error {
	return errors.New("boom")
}

// recordingOwned remembers which profiles had their records removed.
type recordingOwned struct {
	profile.OwnedRecords
	deleted [][]string
}

func (r *recordingOwned) DeleteOwnedBy(ctx context.Context, ids []string, exec core.DBExecutor) error {
	r.deleted = append(r.deleted, ids)
	return r.OwnedRecords.DeleteOwnedBy(ctx, ids, exec)
}

func signUp(role profile.Role, email string) profile.SignUp {
	return profile.SignUp{
		Email:           email,
		FullName:        "Kari Nordmann",
		Role:            role,
		Password:        testutil.Password,
		PasswordConfirm: testutil.Password,
	}
}

func TestService_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("parent", func(t *testing.T) {
		env := testutil.NewEnv(t)

		p, err := env.Profiles.SignUp(ctx, signUp(profile.RoleParent, "kari@test.no"))
		require.NoError(t, err)
		assert.Equal(t, profile.RoleParent, p.Role)
		assert.Equal(t, plan.Free, p.PlanType)
		assert.NoError(t, p.CheckPassword(testutil.Password))

		count, err := env.StudentRepo.CountStudents(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "Welcome", sent[0].Subject)
		assert.Equal(t, "kari@test.no", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "Gratis")
	})

	t.Run("student gets own student row", func(t *testing.T) {
		env := testutil.NewEnv(t)

		p, err := env.Profiles.SignUp(ctx, signUp(profile.RoleStudent, "ola@test.no"))
		require.NoError(t, err)

		s, err := env.StudentRepo.GetStudent(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, s.ParentID)
		assert.True(t, s.IsSelfRegistered())
		assert.Equal(t, "Kari Nordmann", s.FullName)
		assert.Equal(t, plan.Free, s.PlanType)
	})

	t.Run("duplicate email", func(t *testing.T) {
		env := testutil.NewEnv(t)
		testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)

		_, err := env.Profiles.SignUp(ctx, signUp(profile.RoleParent, "kari@test.no"))
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "email", vErr.Fields[0].Field)
	})

	t.Run("nothing is stored when the student row fails", func(t *testing.T) {
		env := testutil.NewEnv(t)
		svc := profile.NewService(env.Conf, env.DB, env.ProfileRepo, &failingOwned{}, env.Sessions, env.Mail, env.Logger)

		_, err := svc.SignUp(ctx, signUp(profile.RoleStudent, "ola@test.no"))
		require.Error(t, err)

		_, err = env.ProfileRepo.GetProfile(ctx, profile.GetFilter{Email: "ola@test.no"})
		assert.True(t, core.IsNotFound(err))
		assert.Empty(t, env.Mail.SentMessages())
	})
}

func TestSignUp_Validate(t *testing.T) {
	env := testutil.NewEnv(t)
	testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)

	tests := []struct {
		name      string
		su        profile.SignUp
		wantField string
	}{
		{name: "valid", su: signUp(profile.RoleParent, " Per@Test.no ")},
		{name: "teacher not allowed", su: signUp(profile.RoleTeacher, "per@test.no"), wantField: "role"},
		{name: "admin not allowed", su: signUp(profile.RoleAdmin, "per@test.no"), wantField: "role"},
		{name: "invalid email", su: signUp(profile.RoleParent, "per"), wantField: "email"},
		{name: "email taken", su: signUp(profile.RoleParent, "KARI@test.no"), wantField: "email"},
		{
			name: "password mismatch",
			su: func() profile.SignUp {
				su := signUp(profile.RoleParent, "per@test.no")
				su.PasswordConfirm = "Other#Pwd42"
				return su
			}(),
			wantField: "password_confirm",
		},
		{
			name: "weak password",
			su: func() profile.SignUp {
				su := signUp(profile.RoleParent, "per@test.no")
				su.Password, su.PasswordConfirm = "password", "password"
				return su
			}(),
			wantField: "password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			su := tt.su
			err := su.Validate(env.Validate, env.Profiles)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "per@test.no", su.Email)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	p := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)

	_, err := env.Profiles.Authenticate(ctx, "kari@test.no", "wrong")
	assert.Equal(t, profile.ErrAuthenticationFailed, err)

	_, err = env.Profiles.Authenticate(ctx, "nobody@test.no", testutil.Password)
	assert.Equal(t, profile.ErrAuthenticationFailed, err)

	got, err := env.Profiles.Authenticate(ctx, " KARI@test.no", testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.False(t, got.LastLogin.IsZero())
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	parent := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	other := testutil.CreateProfile(t, env.ProfileRepo, "Per", "per@test.no", profile.RoleParent, plan.Free)
	self, err := env.Profiles.SignUp(ctx, signUp(profile.RoleStudent, "ola@test.no"))
	require.NoError(t, err)

	name := "Kari N."
	role := profile.RoleTeacher
	adminRole := profile.RoleParent
	pluss := plan.Pluss

	t.Run("own name", func(t *testing.T) {
		p, err := env.Profiles.Update(ctx, parent, parent.ID, profile.UpdateProfile{FullName: &name})
		require.NoError(t, err)
		assert.Equal(t, name, *p.FullName)
	})
	t.Run("someone else", func(t *testing.T) {
		_, err := env.Profiles.Update(ctx, parent, other.ID, profile.UpdateProfile{FullName: &name})
		assert.True(t, core.IsNotFound(err))
	})
	t.Run("own plan", func(t *testing.T) {
		_, err := env.Profiles.Update(ctx, parent, parent.ID, profile.UpdateProfile{PlanType: &pluss})
		assert.Equal(t, profile.ErrForbidden, err)
	})
	t.Run("own role", func(t *testing.T) {
		_, err := env.Profiles.Update(ctx, parent, parent.ID, profile.UpdateProfile{Role: &role})
		assert.Equal(t, profile.ErrForbidden, err)
	})
	t.Run("admin demoting itself", func(t *testing.T) {
		_, err := env.Profiles.Update(ctx, admin, admin.ID, profile.UpdateProfile{Role: &adminRole})
		assert.Equal(t, profile.ErrSelfDemote, err)
	})
	t.Run("admin sets role", func(t *testing.T) {
		p, err := env.Profiles.Update(ctx, admin, other.ID, profile.UpdateProfile{Role: &role})
		require.NoError(t, err)
		assert.Equal(t, profile.RoleTeacher, p.Role)
	})
	t.Run("admin upgrades a self-registered student", func(t *testing.T) {
		p, err := env.Profiles.Update(ctx, admin, self.ID, profile.UpdateProfile{PlanType: &pluss})
		require.NoError(t, err)
		assert.Equal(t, plan.Pluss, p.PlanType)

		s, err := env.StudentRepo.GetStudent(ctx, self.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.Pluss, s.PlanType)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	parent := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	teacher := testutil.CreateProfile(t, env.ProfileRepo, "Lærer", "teacher@test.no", profile.RoleTeacher, plan.Free)
	other := testutil.CreateProfile(t, env.ProfileRepo, "Per", "per@test.no", profile.RoleParent, plan.Free)

	kid := testutil.CreateStudent(t, env.StudentRepo, parent.ID, "Ola", plan.Pluss)
	otherKid := testutil.CreateStudent(t, env.StudentRepo, other.ID, "Nora", plan.Pluss)
	when := time.Now().Add(48 * time.Hour)
	kidBooking := testutil.CreateBooking(t, env.BookingRepo, kid.ID, &teacher.ID, plan.Lesson, booking.StatusConfirmed, when)
	taught := testutil.CreateBooking(t, env.BookingRepo, otherKid.ID, &teacher.ID, plan.Lesson, booking.StatusConfirmed, when)

	sess := session.New(parent.ID, time.Hour)
	require.NoError(t, env.Sessions.Create(ctx, sess))

	assert.Equal(t, profile.ErrForbidden, env.Profiles.Delete(ctx, parent, other.ID))
	assert.Equal(t, profile.ErrSelfDelete, env.Profiles.Delete(ctx, admin, admin.ID, parent.ID))

	require.NoError(t, env.Profiles.Delete(ctx, admin, parent.ID, teacher.ID))

	_, err := env.ProfileRepo.GetProfile(ctx, profile.GetFilter{ID: parent.ID})
	assert.True(t, core.IsNotFound(err))
	_, err = env.StudentRepo.GetStudent(ctx, kid.ID)
	assert.True(t, core.IsNotFound(err))
	_, err = env.BookingRepo.GetBooking(ctx, kidBooking.ID)
	assert.True(t, core.IsNotFound(err))

	// bookings taught by a deleted teacher stay, unassigned
	b, err := env.BookingRepo.GetBooking(ctx, taught.ID)
	require.NoError(t, err)
	assert.Nil(t, b.TeacherID)
	_, err = env.StudentRepo.GetStudent(ctx, otherKid.ID)
	assert.NoError(t, err)

	_, err = env.Sessions.Get(ctx, sess.ID)
	assert.Equal(t, session.ErrNotFound, err)
}

func TestService_Delete_Rollback(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	svc := profile.NewService(env.Conf, env.DB, env.ProfileRepo, &failingOwned{}, env.Sessions, env.Mail, env.Logger)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	parent := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)

	require.Error(t, svc.Delete(ctx, admin, parent.ID))

	_, err := env.ProfileRepo.GetProfile(ctx, profile.GetFilter{ID: parent.ID})
	assert.NoError(t, err)
}

func TestService_Delete_RemovesOwnedRecordsFirst(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	owned := &recordingOwned{OwnedRecords: env.Students}
	svc := profile.NewService(env.Conf, env.DB, env.ProfileRepo, owned, env.Sessions, env.Mail, env.Logger)
	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	parent := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	kid := testutil.CreateStudent(t, env.StudentRepo, parent.ID, "Ola", plan.Free)
	testutil.CreateBooking(t, env.BookingRepo, kid.ID, nil, plan.Consultation, booking.StatusPending, time.Now().Add(time.Hour))

	// the tables never drop a profile that still owns records
	require.Error(t, env.ProfileRepo.DeleteProfilesByID(ctx, []string{parent.ID}))

	require.NoError(t, svc.Delete(ctx, admin, parent.ID))
	assert.Equal(t, [][]string{{parent.ID}}, owned.deleted)

	students, err := env.StudentRepo.QueryStudents(ctx, &student.QueryFilter{ParentIDs: []string{parent.ID}}, nil)
	require.NoError(t, err)
	assert.Empty(t, students)
	bookings, err := env.BookingRepo.QueryBookings(ctx, &booking.QueryFilter{StudentIDs: []string{kid.ID}}, nil)
	require.NoError(t, err)
	assert.Empty(t, bookings)
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	p := testutil.CreateProfile(t, env.ProfileRepo, "Kari", "kari@test.no", profile.RoleParent, plan.Free)
	sess := session.New(p.ID, time.Hour)
	require.NoError(t, env.Sessions.Create(ctx, sess))

	assert.True(t, core.IsNotFound(env.Profiles.RequestPasswordReset(ctx, "nobody@test.no")))
	require.NoError(t, env.Profiles.RequestPasswordReset(ctx, "kari@test.no"))

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Password Reset", sent[0].Subject)
	data := sent[0].TemplateData.(map[string]string)
	assert.Contains(t, sent[0].TextContent, "/password-reset/"+data["UID"]+"/"+data["Token"])

	newPwd := "Nw7!kP3#rT"
	tests := []struct {
		name    string
		data    profile.ResetProfilePassword
		wantErr bool
	}{
		{name: "invalid uid", data: profile.ResetProfilePassword{UID: "lol", Token: data["Token"], Password: newPwd}, wantErr: true},
		{name: "invalid token", data: profile.ResetProfilePassword{UID: data["UID"], Token: "lol-lol", Password: newPwd}, wantErr: true},
		{name: "weak password", data: profile.ResetProfilePassword{UID: data["UID"], Token: data["Token"], Password: "12345678"}, wantErr: true},
		{name: "valid", data: profile.ResetProfilePassword{UID: data["UID"], Token: data["Token"], Password: newPwd}},
		{name: "token used", data: profile.ResetProfilePassword{UID: data["UID"], Token: data["Token"], Password: "Zz9@xY8#wV"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Profiles.ResetPassword(ctx, tt.data)
			if tt.wantErr {
				var vErr *core.ValidationError
				assert.True(t, errors.As(err, &vErr), "got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}

	_, err := env.Profiles.Authenticate(ctx, "kari@test.no", newPwd)
	assert.NoError(t, err)
	_, err = env.Sessions.Get(ctx, sess.ID)
	assert.Equal(t, session.ErrNotFound, err)
}
