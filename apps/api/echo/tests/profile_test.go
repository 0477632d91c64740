package tests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agoras/agoras/core/plan"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/student"
	"github.com/agoras/agoras/tests"
)

func TestProfileAPI_query(t *testing.T) {
	app, env := setup(t)

	path := func(search, createdFrom string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if createdFrom != "" {
			v.Add("created_from", createdFrom)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/profiles?" + v.Encode()
	}

	now := time.Now().UTC()
	lastWeek := now.AddDate(0, 0, -7)

	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free, lastWeek)
	parent := testutil.CreateProfile(t, env.ProfileRepo, "Kari Nordmann", "kari@test.no", profile.RoleParent, plan.Standard, lastWeek)
	teacher := testutil.CreateProfile(t, env.ProfileRepo, "Lars Lærer", "lars@test.no", profile.RoleTeacher, plan.Free, now)
	pupil := testutil.CreateProfile(t, env.ProfileRepo, "Ola Nordmann", "ola@test.no", profile.RoleStudent, plan.Free, now)

	adminToken := getToken(t, app, admin)
	parentToken := getToken(t, app, parent)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "admins only",
			method:   http.MethodGet,
			path:     path("", ""),
			token:    parentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errDenied),
		},
		{
			name:     "all",
			method:   http.MethodGet,
			path:     path("", ""),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, parent, teacher, pupil),
		},
		{
			name:     "search",
			method:   http.MethodGet,
			path:     path("nordmann", ""),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, parent, pupil),
		},
		{
			name:     "roles",
			method:   http.MethodGet,
			path:     path("", "", "teacher", "admin"),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, teacher),
		},
		{
			name:     "created from",
			method:   http.MethodGet,
			path:     path("", now.Add(-time.Hour).Format(time.RFC3339)),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, teacher, pupil),
		},
		{
			name:     "bad created from",
			method:   http.MethodGet,
			path:     path("", "yesterday"),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"created_from": "invalid datetime, use RFC 3339"}),
		},
		{
			name:     "no match",
			method:   http.MethodGet,
			path:     path("nobody", ""),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t),
		},
		{
			name:     "roles catalogue",
			method:   http.MethodGet,
			path:     "/v1/profiles/roles",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, profile.Roles),
		},
	})
}

func TestProfileAPI_detail(t *testing.T) {
	app, env := setup(t)

	admin := testutil.CreateProfile(t, env.ProfileRepo, "Admin", "admin@test.no", profile.RoleAdmin, plan.Free)
	parent := testutil.CreateProfile(t, env.ProfileRepo, "Kari Nordmann", "kari@test.no", profile.RoleParent, plan.Free)
	other := testutil.CreateProfile(t, env.ProfileRepo, "Per Hansen", "per@test.no", profile.RoleParent, plan.Free)

	adminToken := getToken(t, app, admin)
	parentToken := getToken(t, app, parent)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "self",
			method:   http.MethodGet,
			path:     "/v1/profiles/" + parent.ID,
			token:    parentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, parent),
		},
		{
			name:     "someone else",
			method:   http.MethodGet,
			path:     "/v1/profiles/" + other.ID,
			token:    parentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "admin",
			method:   http.MethodGet,
			path:     "/v1/profiles/" + other.ID,
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, other),
		},
		{
			name:     "unknown",
			method:   http.MethodGet,
			path:     "/v1/profiles/7d9f1c0e-3b7a-4f7e-9f43-000000000000",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: profile.ErrNotFound.Error()}),
		},
		{
			name:     "own plan",
			method:   http.MethodPut,
			path:     "/v1/profiles/" + parent.ID,
			body:     []byte(`{"plan_type": "premium"}`),
			token:    parentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errDenied),
		},
		{
			name:     "bad phone",
			method:   http.MethodPut,
			path:     "/v1/profiles/" + parent.ID,
			body:     []byte(`{"phone": "call me"}`),
			token:    parentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"phone": "enter a valid phone number"}),
		},
		{
			name:     "own role as admin",
			method:   http.MethodPut,
			path:     "/v1/profiles/" + admin.ID,
			body:     []byte(`{"role": "teacher"}`),
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, deniedErr{Error: profile.ErrSelfDemote.Error(), Redirect: "/"}),
		},
		{
			name:     "delete self",
			method:   http.MethodDelete,
			path:     "/v1/profiles/" + admin.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, deniedErr{Error: profile.ErrSelfDelete.Error(), Redirect: "/"}),
		},
		{
			name:     "delete as non admin",
			method:   http.MethodDelete,
			path:     "/v1/profiles/" + other.ID,
			token:    parentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errDenied),
		},
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/profiles/"+parent.ID, parentToken, []byte(`{"full_name": " Kari N. ", "phone": "+47 912 34 567"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var p profile.Profile
		unmarshal(t, rec, &p)
		assert.Equal(t, "Kari N.", p.Name())
		require.NotNil(t, p.Phone)
		assert.Equal(t, "+47 912 34 567", *p.Phone)
		assert.Equal(t, plan.Free, p.PlanType)
	})

	t.Run("upgrade by admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/profiles/"+parent.ID, adminToken, []byte(`{"plan_type": "pluss"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var p profile.Profile
		unmarshal(t, rec, &p)
		assert.Equal(t, plan.Pluss, p.PlanType)
	})

	t.Run("delete cascades", func(t *testing.T) {
		kid := testutil.CreateStudent(t, env.StudentRepo, other.ID, "Emma Hansen", plan.Free)
		otherToken := getToken(t, app, other)

		req, rec := newAuthRequest(http.MethodDelete, "/v1/profiles/"+other.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := env.StudentRepo.GetStudent(req.Context(), kid.ID)
		assert.Equal(t, student.ErrNotFound, err)

		// sessions of the deleted profile are revoked
		req, rec = newAuthRequest(http.MethodGet, "/v1/auth/session", otherToken)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("multiple delete", func(t *testing.T) {
		a := testutil.CreateProfile(t, env.ProfileRepo, "A", "a@test.no", profile.RoleParent, plan.Free)
		b := testutil.CreateProfile(t, env.ProfileRepo, "B", "b@test.no", profile.RoleStudent, plan.Free)

		req, rec := newAuthRequest(http.MethodDelete, "/v1/profiles?id="+a.ID+"&id="+b.ID, adminToken)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		for _, id := range []string{a.ID, b.ID} {
			_, err := env.Profiles.GetByID(req.Context(), id)
			assert.True(t, err != nil, id)
		}
	})
}
