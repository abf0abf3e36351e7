package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-dashboard/internal/listview"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
)

func analysesPage(page, pageCount int) *models.PageResult[models.Analysis] {
	return &models.PageResult[models.Analysis]{
		Records: []models.Analysis{
			{ID: 11, Type: "voice", State: models.AnalysisCompleted, Patient: &models.Patient{ID: 1, Username: "maria", Email: "maria@mail.test"}},
			{ID: 12, Type: "voice", State: models.AnalysisPending, Patient: &models.Patient{ID: 2, Username: "jon", Email: "jon@mail.test"}},
		},
		Pagination: models.Pagination{Page: page, PageSize: 2, PageCount: pageCount, TotalCount: pageCount * 2},
	}
}

func TestDashboardRequiresSession(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin", rec.Header().Get("Location"))

	rec = app.do(jsonRequest(http.MethodGet, "/dashboard", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, app.analyses.calls)
}

func TestDashboardJSON(t *testing.T) {
	app := newTestApp(t)
	app.analyses.list = func(_ *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error) {
		return analysesPage(req.Page, 3), nil
	}
	app.analyses.stats = models.AnalysisStats{TotalAnalyses: 6, TotalPatients: 2, CompletedPercentage: 50}

	rec := app.do(jsonRequest(http.MethodGet, "/dashboard?page=2&search=ma", nil), app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PageRequest{Page: 2, Search: "ma"}, app.analyses.lastReq)
	env := decodeEnvelope(t, rec)
	var records []models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Len(t, records, 2)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.Equal(t, 3, env.Pagination.PageCount)
	stats := env.Meta["stats"].(map[string]interface{})
	assert.EqualValues(t, 6, stats["totalAnalyses"])
	assert.Equal(t, "ma", env.Meta["search"])
}

func TestDashboardOvertakenRequestAnswersWithItsOwnPage(t *testing.T) {
	app := newTestApp(t)
	app.analyses.list = func(scope *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error) {
		// a newer request from the same session begins before this one returns
		listview.For[models.Analysis](app.views, scope.Session.ID(), analysesView).Begin(1, "other")
		return analysesPage(req.Page, 3), nil
	}

	rec := app.do(jsonRequest(http.MethodGet, "/dashboard?page=2", nil), app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var records []models.Analysis
	require.NoError(t, json.Unmarshal(env.Data, &records))
	assert.Len(t, records, 2)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.Page)
	assert.Equal(t, "", env.Meta["search"])
}

func TestDashboardHTML(t *testing.T) {
	app := newTestApp(t)
	app.analyses.list = func(_ *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error) {
		return analysesPage(req.Page, 9), nil
	}
	app.analyses.stats = models.AnalysisStats{TotalAnalyses: 18, TotalPatients: 2, CompletedPercentage: 50}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard?page=5", nil), app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "maria@mail.test")
	assert.Contains(t, body, "50.0%")
	assert.Contains(t, body, `<span class="current">5</span>`)
	assert.Contains(t, body, `href="/dashboard?page=9"`)
}

func TestDashboardIgnoresOutOfRangePage(t *testing.T) {
	app := newTestApp(t)
	app.analyses.list = func(_ *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error) {
		return analysesPage(req.Page, 3), nil
	}
	cookie := app.signIn(t, adminRole)

	rec := app.do(jsonRequest(http.MethodGet, "/dashboard?page=1", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(jsonRequest(http.MethodGet, "/dashboard?page=9", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, app.analyses.calls)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, 1, env.Pagination.Page)
}

func TestDashboardUnauthorizedTearsDownSession(t *testing.T) {
	app := newTestApp(t)
	app.analyses.list = func(scope *session.Scope, _ models.PageRequest) (*models.PageResult[models.Analysis], error) {
		return nil, unauthorized(scope)
	}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), app.signIn(t, adminRole))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin?error="+url.QueryEscape(appErrors.ErrUnauthorized.Message), rec.Header().Get("Location"))
	assert.Equal(t, 0, app.store.Len())
	assert.Equal(t, 0, app.views.Len())
}

func TestDashboardUpstreamFailureShowsBanner(t *testing.T) {
	app := newTestApp(t)
	app.analyses.list = func(*session.Scope, models.PageRequest) (*models.PageResult[models.Analysis], error) {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "analysis backend unavailable")
	}
	cookie := app.signIn(t, adminRole)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "analysis backend unavailable")
	assert.Equal(t, 1, app.store.Len())

	rec = app.do(jsonRequest(http.MethodGet, "/dashboard", nil), cookie)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDashboardExportCSV(t *testing.T) {
	app := newTestApp(t)
	app.analyses.list = func(_ *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error) {
		return analysesPage(req.Page, 1), nil
	}
	cookie := app.signIn(t, adminRole)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/dashboard/export?format=csv", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename=analyses_`)
	assert.Contains(t, rec.Body.String(), "ID,Patient,Email,Type,State,Created")
	assert.Contains(t, rec.Body.String(), "maria")

	rec = app.do(httptest.NewRequest(http.MethodGet, "/dashboard/export?format=xls", nil), cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthReadyAndUnknownRoutes(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/ready", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines")

	rec = app.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
}
