package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
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

const usersView = "users"

type userService interface {
	List(ctx context.Context, scope *session.Scope, req models.PageRequest) (*models.PageResult[models.User], error)
	GetStats(ctx context.Context, scope *session.Scope) (*models.UserStats, error)
	Create(ctx context.Context, scope *session.Scope, req models.CreateUserRequest, meta models.RequestMeta) (*models.User, error)
	ToggleBlock(ctx context.Context, scope *session.Scope, id int, expectedVersion string, meta models.RequestMeta) (*models.User, error)
}

// UserHandler serves clinic user management.
type UserHandler struct {
	service   userService
	exports   exportService
	views     *listview.Registry
	adminRole models.ClinicRole
	logger    *zap.Logger
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc userService, exports exportService, views *listview.Registry, adminRole models.ClinicRole, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if views == nil {
		views = listview.NewRegistry()
	}
	return &UserHandler{service: svc, exports: exports, views: views, adminRole: adminRole, logger: logger}
}

// List godoc
// @Summary List users of the clinic
// @Tags Users
// @Produce json,html
// @Param page query int false "Page number"
// @Param search query string false "Username or email"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	scope := scopeOf(c)
	ctx := c.Request.Context()
	view := listview.For[models.User](h.views, scope.Session.ID(), usersView)

	var (
		result  *models.PageResult[models.User]
		listErr error
	)
	ticket, fetched := view.Begin(parsePage(c.Query("page")), strings.TrimSpace(c.Query("search")))
	if fetched {
		result, listErr = h.service.List(ctx, scope, models.PageRequest{Page: ticket.Page, Search: ticket.Search})
		if listErr != nil {
			if _, needsSignIn := view.Fail(ticket, listErr); needsSignIn {
				fail(c, scope, listErr, "users", nil)
				return
			}
		} else {
			view.Resolve(ticket, result)
		}
	}

	if _, err := h.service.GetStats(ctx, scope); err != nil {
		if appErrors.IsAuthProblem(err) {
			fail(c, scope, err, "users", nil)
			return
		}
		h.logger.Warn("user stats unavailable", zap.Error(err))
	}

	state := view.Snapshot()
	if fetched {
		state = view.StateFor(ticket, result, listErr)
	}
	stats := scope.Stats.Snapshot().UserStats
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
	renderPage(c, http.StatusOK, "users", scope, gin.H{
		"Title":     "Users",
		"State":     state,
		"Stats":     stats,
		"Route":     session.RouteUsers,
		"CanManage": h.canManage(scope),
	})
}

// Export godoc
// @Summary Export one page of users
// @Tags Users
// @Produce text/csv,application/pdf
// @Param format query string true "csv or pdf"
// @Param page query int false "Page number"
// @Param search query string false "Username or email"
// @Success 200 {file} file
// @Router /users/export [get]
func (h *UserHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	scope := scopeOf(c)
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), scope, models.PageRequest{
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
	file, err := h.exports.Users(result.Records, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// CreatePage renders the new user form.
func (h *UserHandler) CreatePage(c *gin.Context) {
	renderPage(c, http.StatusOK, "user_create", scopeOf(c), gin.H{"Title": "New user", "Form": models.CreateUserRequest{}})
}

// Create godoc
// @Summary Create a clinic user
// @Tags Users
// @Accept json,x-www-form-urlencoded
// @Produce json,html
// @Param payload body models.CreateUserRequest true "User"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/create [post]
func (h *UserHandler) Create(c *gin.Context) {
	scope := scopeOf(c)
	var req models.CreateUserRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, scope, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"),
			"user_create", gin.H{"Title": "New user", "Form": req})
		return
	}

	user, err := h.service.Create(c.Request.Context(), scope, req, requestMeta(c))
	if err != nil {
		fail(c, scope, err, "user_create", gin.H{"Title": "New user", "Form": req})
		return
	}
	if middleware.WantsJSON(c) {
		response.Created(c, user)
		return
	}
	notice(c, session.RouteUsers, "User "+user.Username+" created")
}

// ToggleBlock godoc
// @Summary Block or unblock a user
// @Tags Users
// @Produce json,html
// @Param id path int true "User ID"
// @Param version formData string false "updatedAt of the displayed record"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/{id}/toggle-block [post]
func (h *UserHandler) ToggleBlock(c *gin.Context) {
	scope := scopeOf(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}
	version := strings.TrimSpace(c.PostForm("version"))
	if version == "" {
		version = strings.TrimSpace(c.Query("version"))
	}

	user, err := h.service.ToggleBlock(c.Request.Context(), scope, id, version, requestMeta(c))
	if err != nil {
		if followNavigation(c, scope) {
			return
		}
		if middleware.WantsJSON(c) {
			response.Error(c, err)
			return
		}
		redirectWith(c, h.usersRoute(scope), "error", appErrors.FromError(err).Message)
		return
	}
	if middleware.WantsJSON(c) {
		response.JSON(c, http.StatusOK, user, nil)
		return
	}
	message := "User " + user.Username + " unblocked"
	if user.Blocked {
		message = "User " + user.Username + " blocked"
	}
	notice(c, h.usersRoute(scope), message)
}

// usersRoute returns the users list at the page the session last viewed.
func (h *UserHandler) usersRoute(scope *session.Scope) string {
	state := listview.For[models.User](h.views, scope.Session.ID(), usersView).Snapshot()
	route := session.RouteUsers + "?page=" + strconv.Itoa(max(state.Pagination.Page, 1))
	if state.Search != "" {
		route += "&search=" + url.QueryEscape(state.Search)
	}
	return route
}

func (h *UserHandler) canManage(scope *session.Scope) bool {
	identity := scope.Identity()
	return identity != nil && identity.RoleClinic == h.adminRole
}
