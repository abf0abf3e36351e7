package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
)

func usersPage() *models.PageResult[models.User] {
	return &models.PageResult[models.User]{
		Records: []models.User{
			{ID: 5, Username: "ana", Email: "ana@clinic.test", RoleClinic: memberRole, UpdatedAt: time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)},
			{ID: 6, Username: "bea", Email: "bea@clinic.test", RoleClinic: adminRole, Blocked: true},
		},
		Pagination: models.Pagination{Page: 1, PageSize: 10, PageCount: 1, TotalCount: 2},
	}
}

func TestUsersListAdminSeesActions(t *testing.T) {
	app := newTestApp(t)
	app.users.page = usersPage()
	app.users.stats = models.UserStats{TotalUsers: 2, BlockedUsers: 1, AdminUsers: 1}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/users?notice=User+ana+blocked", nil), app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "bea@clinic.test")
	assert.Contains(t, body, `action="/users/5/toggle-block"`)
	assert.Contains(t, body, `value="2024-05-02T08:00:00Z"`)
	assert.Contains(t, body, "User ana blocked")
	assert.Contains(t, body, `href="/users/create"`)
}

func TestUsersListMemberHasNoActions(t *testing.T) {
	app := newTestApp(t)
	app.users.page = usersPage()

	rec := app.do(httptest.NewRequest(http.MethodGet, "/users", nil), app.signIn(t, memberRole))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "toggle-block")
}

func TestUsersListForbidden(t *testing.T) {
	app := newTestApp(t)
	app.users.listErr = appErrors.Clone(appErrors.ErrForbidden, "you are not allowed to list users")

	rec := app.do(jsonRequest(http.MethodGet, "/users", nil), app.signIn(t, memberRole))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "you are not allowed to list users", env.Error.Message)
	assert.Equal(t, 1, app.store.Len())
}

func TestToggleBlockPassesVersion(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(formRequest("/users/5/toggle-block", url.Values{"version": {"2024-05-02T08:00:00Z"}}), app.signIn(t, adminRole))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 5, app.users.toggledID)
	assert.Equal(t, "2024-05-02T08:00:00Z", app.users.version)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "/users?page=1&notice="), location)
}

func TestToggleBlockConflict(t *testing.T) {
	app := newTestApp(t)
	app.users.toggleErr = appErrors.Clone(appErrors.ErrConflict, "the user was modified by someone else, reload and try again")
	cookie := app.signIn(t, adminRole)

	rec := app.do(formRequest("/users/5/toggle-block", url.Values{"version": {"stale"}}), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "&error=")

	req := formRequest("/users/5/toggle-block", url.Values{"version": {"stale"}})
	req.Header.Set("Accept", "application/json")
	rec = app.do(req, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestToggleBlockRequiresAdmin(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(formRequest("/users/5/toggle-block", nil), app.signIn(t, memberRole))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, app.users.toggledID)
}

func TestToggleBlockRejectsBadID(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(formRequest("/users/abc/toggle-block", nil), app.signIn(t, adminRole))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateUser(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, adminRole)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/users/create", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="confirmPassword"`)

	rec = app.do(formRequest("/users/create", url.Values{
		"username":        {"carla"},
		"email":           {"carla@clinic.test"},
		"password":        {"secret1"},
		"confirmPassword": {"secret1"},
	}), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/users?notice="))
	require.NotNil(t, app.users.created)
	assert.Equal(t, "carla@clinic.test", app.users.created.Email)
}

func TestCreateUserValidationKeepsForm(t *testing.T) {
	app := newTestApp(t)
	app.users.createErr = appErrors.Clone(appErrors.ErrValidation, "passwords do not match")

	rec := app.do(formRequest("/users/create", url.Values{"username": {"carla"}, "email": {"carla@clinic.test"}}), app.signIn(t, adminRole))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "passwords do not match")
	assert.Contains(t, rec.Body.String(), `value="carla"`)
}

func TestUsersExportPDF(t *testing.T) {
	app := newTestApp(t)
	app.users.page = usersPage()

	rec := app.do(httptest.NewRequest(http.MethodGet, "/users/export?format=pdf", nil), app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
}

func TestUserActivity(t *testing.T) {
	app := newTestApp(t)
	app.audit.entries = []models.AuditLog{{ID: "a-1", Action: models.AuditActionUserBlock, Resource: "users"}}

	rec := app.do(jsonRequest(http.MethodGet, "/users/activity?limit=500", nil), app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, app.audit.clinicID)
	assert.Equal(t, 20, app.audit.limit)
	assert.Contains(t, rec.Body.String(), models.AuditActionUserBlock)
}
