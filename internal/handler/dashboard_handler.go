package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-dashboard/internal/listview"
	"github.com/noah-isme/clinic-dashboard/internal/middleware"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/service"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

const analysesView = "analyses"

type analysisLister interface {
	List(ctx context.Context, scope *session.Scope, req models.PageRequest) (*models.PageResult[models.Analysis], error)
	GetStats(ctx context.Context, scope *session.Scope) (*models.AnalysisStats, error)
}

type exportService interface {
	Users(users []models.User, format service.ExportFormat) (*service.ExportFile, error)
	Analyses(analyses []models.Analysis, format service.ExportFormat) (*service.ExportFile, error)
}

// DashboardHandler serves the analyses overview of the signed-in user.
type DashboardHandler struct {
	analyses analysisLister
	exports  exportService
	views    *listview.Registry
	logger   *zap.Logger
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(analyses analysisLister, exports exportService, views *listview.Registry, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if views == nil {
		views = listview.NewRegistry()
	}
	return &DashboardHandler{analyses: analyses, exports: exports, views: views, logger: logger}
}

// Dashboard godoc
// @Summary Analyses of the signed-in user
// @Tags Dashboard
// @Produce json,html
// @Param page query int false "Page number"
// @Param search query string false "Patient name or email"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	if h.analyses == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	scope := scopeOf(c)
	ctx := c.Request.Context()
	view := listview.For[models.Analysis](h.views, scope.Session.ID(), analysesView)

	var (
		result  *models.PageResult[models.Analysis]
		listErr error
	)
	ticket, fetched := view.Begin(parsePage(c.Query("page")), strings.TrimSpace(c.Query("search")))
	if fetched {
		result, listErr = h.analyses.List(ctx, scope, models.PageRequest{Page: ticket.Page, Search: ticket.Search})
		if listErr != nil {
			if _, needsSignIn := view.Fail(ticket, listErr); needsSignIn {
				fail(c, scope, listErr, "dashboard", nil)
				return
			}
		} else {
			view.Resolve(ticket, result)
		}
	}

	if _, err := h.analyses.GetStats(ctx, scope); err != nil {
		if appErrors.IsAuthProblem(err) {
			fail(c, scope, err, "dashboard", nil)
			return
		}
		h.logger.Warn("analysis stats unavailable", zap.Error(err))
	}

	state := view.Snapshot()
	if fetched {
		state = view.StateFor(ticket, result, listErr)
	}
	stats := scope.Stats.Snapshot().AnalysisStats
	if middleware.WantsJSON(c) {
		if listErr != nil {
			response.Error(c, listErr)
			return
		}
		if state.Status == listview.StatusFailed {
			response.Error(c, appErrors.Clone(appErrors.ErrUpstream, state.Error))
			return
		}
		response.JSON(c, http.StatusOK, state.Records, &state.Pagination, map[string]interface{}{
			"stats":  stats,
			"search": state.Search,
			"pages":  state.Window(),
		})
		return
	}
	renderPage(c, http.StatusOK, "dashboard", scope, gin.H{
		"Title": "Analyses",
		"State": state,
		"Stats": stats,
		"Route": session.RouteDashboard,
	})
}

// Export godoc
// @Summary Export one page of analyses
// @Tags Dashboard
// @Produce text/csv,application/pdf
// @Param format query string true "csv or pdf"
// @Param page query int false "Page number"
// @Param search query string false "Patient name or email"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /dashboard/export [get]
func (h *DashboardHandler) Export(c *gin.Context) {
	if h.analyses == nil || h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	scope := scopeOf(c)
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.analyses.List(c.Request.Context(), scope, models.PageRequest{
		Page:   parsePage(c.Query("page")),
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		if followNavigation(c, scope) {
			return
		}
		response.Error(c, err)
		return
	}
	file, err := h.exports.Analyses(result.Records, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}
