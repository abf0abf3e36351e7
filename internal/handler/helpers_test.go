package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-dashboard/internal/listview"
	"github.com/noah-isme/clinic-dashboard/internal/middleware"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/service"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	"github.com/noah-isme/clinic-dashboard/internal/web"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
)

const (
	testCookie    = "sid"
	testSessionID = "sess-1"
	adminRole     = models.ClinicRole("adminClinic")
	memberRole    = models.ClinicRole("userClinic")
)

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

// unauthorized mimics the request pipeline after a 401.
func unauthorized(scope *session.Scope) error {
	scope.Session.Logout()
	scope.Navigator.Navigate(session.RouteSignIn)
	return appErrors.ErrUnauthorized
}

type fakeAuth struct {
	loginUser *models.User
	loginErr  error
	updated   *models.UpdateProfileRequest
}

func (f *fakeAuth) Login(_ context.Context, scope *session.Scope, req models.LoginRequest, _ models.RequestMeta) (*models.User, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	user := f.loginUser
	if user == nil {
		user = &models.User{ID: 3, Username: req.Identifier, RoleClinic: adminRole}
	}
	scope.Session.Login(*user, "token-abc")
	return user, nil
}

func (f *fakeAuth) Register(_ context.Context, scope *session.Scope, req models.RegisterRequest) (*models.User, error) {
	if req.Email == "taken@clinic.test" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Email or Username are already taken")
	}
	user := models.User{ID: 12, Username: req.Username, Email: req.Email}
	scope.Session.Login(user, "token-new")
	return &user, nil
}

func (f *fakeAuth) CurrentUser(_ context.Context, scope *session.Scope) (*models.User, error) {
	return scope.Identity(), nil
}

func (f *fakeAuth) UpdateProfile(_ context.Context, scope *session.Scope, req models.UpdateProfileRequest, _ models.RequestMeta) (*models.User, error) {
	f.updated = &req
	user := scope.Identity()
	user.Username = req.Username
	user.Email = req.Email
	scope.Session.RefreshIdentity(*user)
	return user, nil
}

func (f *fakeAuth) Logout(_ context.Context, scope *session.Scope, _ models.RequestMeta) {
	scope.Session.Logout()
	scope.Stats.Reset()
}

type fakeAnalyses struct {
	mu       sync.Mutex
	list     func(scope *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error)
	calls    int
	lastReq  models.PageRequest
	stats    models.AnalysisStats
	analysis *models.Analysis
	status   *models.AnalysisStatus
	result   *models.AudioAnalysisResult
	err      error
	upload   models.AudioUpload
	audio    []byte
}

func (f *fakeAnalyses) List(_ context.Context, scope *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	f.mu.Unlock()
	return f.list(scope, req)
}

func (f *fakeAnalyses) GetStats(_ context.Context, scope *session.Scope) (*models.AnalysisStats, error) {
	scope.Stats.SetAnalysisStats(f.stats)
	stats := f.stats
	return &stats, nil
}

func (f *fakeAnalyses) Get(context.Context, *session.Scope, string) (*models.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *fakeAnalyses) Status(context.Context, *session.Scope, string) (*models.AnalysisStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func (f *fakeAnalyses) ProcessAudioRecording(_ context.Context, _ *session.Scope, upload models.AudioUpload, audio io.Reader, _ models.RequestMeta) (*models.AudioAnalysisResult, error) {
	f.upload = upload
	f.audio, _ = io.ReadAll(audio)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeUsers struct {
	page      *models.PageResult[models.User]
	listErr   error
	stats     models.UserStats
	created   *models.CreateUserRequest
	createErr error
	toggleErr error
	toggledID int
	version   string
}

func (f *fakeUsers) List(context.Context, *session.Scope, models.PageRequest) (*models.PageResult[models.User], error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.page, nil
}

func (f *fakeUsers) GetStats(_ context.Context, scope *session.Scope) (*models.UserStats, error) {
	scope.Stats.SetUserStats(f.stats)
	stats := f.stats
	return &stats, nil
}

func (f *fakeUsers) Create(_ context.Context, _ *session.Scope, req models.CreateUserRequest, _ models.RequestMeta) (*models.User, error) {
	f.created = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.User{ID: 40, Username: req.Username, Email: req.Email}, nil
}

func (f *fakeUsers) ToggleBlock(_ context.Context, _ *session.Scope, id int, expectedVersion string, _ models.RequestMeta) (*models.User, error) {
	f.toggledID = id
	f.version = expectedVersion
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}
	return &models.User{ID: id, Username: "ana", Blocked: true}, nil
}

type fakeAudit struct {
	clinicID int
	limit    int
	entries  []models.AuditLog
}

func (f *fakeAudit) Recent(_ context.Context, clinicID, limit int) ([]models.AuditLog, error) {
	f.clinicID = clinicID
	f.limit = limit
	return f.entries, nil
}

type testApp struct {
	router   *gin.Engine
	store    *session.MemoryRepository
	views    *listview.Registry
	auth     *fakeAuth
	analyses *fakeAnalyses
	users    *fakeUsers
	audit    *fakeAudit
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	app := &testApp{
		store: session.NewMemoryRepository(),
		views: listview.NewRegistry(),
		auth:  &fakeAuth{},
		analyses: &fakeAnalyses{list: func(*session.Scope, models.PageRequest) (*models.PageResult[models.Analysis], error) {
			return &models.PageResult[models.Analysis]{Records: []models.Analysis{}}, nil
		}},
		users: &fakeUsers{page: &models.PageResult[models.User]{Records: []models.User{}}},
		audit: &fakeAudit{},
	}
	exports := service.NewExportService(nil, nil)

	router := gin.New()
	router.HTMLRender = renderer
	RegisterProbes(router, NewMetricsHandler(service.NewMetricsService()))
	router.Use(middleware.Session(app.store, middleware.SessionOptions{CookieName: testCookie, TTL: time.Hour}, app.views, nil))
	Register(router, Handlers{
		Auth:      NewAuthHandler(app.auth, app.views),
		Dashboard: NewDashboardHandler(app.analyses, exports, app.views, nil),
		Analysis:  NewAnalysisHandler(app.analyses, 1024),
		Users:     NewUserHandler(app.users, exports, app.views, adminRole, nil),
		Audit:     NewAuditHandler(app.audit),
	}, adminRole)
	router.NoRoute(NoRoute)
	app.router = router
	return app
}

// signIn stores an authenticated session and returns its cookie.
func (a *testApp) signIn(t *testing.T, role models.ClinicRole) *http.Cookie {
	t.Helper()
	snapshot := session.Snapshot{
		ID: testSessionID,
		Identity: &models.User{
			ID:         3,
			Username:   "admin",
			Email:      "admin@clinic.test",
			RoleClinic: role,
			Clinic:     &models.Clinic{ID: 7, Name: "North Clinic"},
		},
		Credential: "token-abc",
	}
	require.NoError(t, a.store.Save(context.Background(), snapshot, time.Hour))
	return &http.Cookie{Name: testCookie, Value: testSessionID}
}

func (a *testApp) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Accept", "application/json")
	return req
}
