package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/listview"
	"github.com/noah-isme/clinic-dashboard/internal/middleware"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

type authService interface {
	Login(ctx context.Context, scope *session.Scope, req models.LoginRequest, meta models.RequestMeta) (*models.User, error)
	Register(ctx context.Context, scope *session.Scope, req models.RegisterRequest) (*models.User, error)
	CurrentUser(ctx context.Context, scope *session.Scope) (*models.User, error)
	UpdateProfile(ctx context.Context, scope *session.Scope, req models.UpdateProfileRequest, meta models.RequestMeta) (*models.User, error)
	Logout(ctx context.Context, scope *session.Scope, meta models.RequestMeta)
}

// AuthHandler serves sign-in, sign-out and the profile page.
type AuthHandler struct {
	service authService
	views   *listview.Registry
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, views *listview.Registry) *AuthHandler {
	return &AuthHandler{service: svc, views: views}
}

// Root sends visitors to the sign-in page.
func (h *AuthHandler) Root(c *gin.Context) {
	c.Redirect(http.StatusFound, session.RouteSignIn)
}

// SignInPage renders the sign-in form, or skips it for signed-in sessions.
func (h *AuthHandler) SignInPage(c *gin.Context) {
	scope := scopeOf(c)
	if scope.Session.Authenticated() {
		c.Redirect(http.StatusSeeOther, session.RouteDashboard)
		return
	}
	renderPage(c, http.StatusOK, "signin", scope, gin.H{"Title": "Sign in"})
}

// SignIn godoc
// @Summary Sign in
// @Description Authenticate against the remote API and start a dashboard session
// @Tags Authentication
// @Accept json,x-www-form-urlencoded
// @Produce json,html
// @Param payload body models.LoginRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /signin [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	scope := scopeOf(c)
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, scope, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "email and password are required"),
			"signin", gin.H{"Title": "Sign in", "Identifier": req.Identifier})
		return
	}

	user, err := h.service.Login(c.Request.Context(), scope, req, requestMeta(c))
	if err != nil {
		fail(c, scope, err, "signin", gin.H{"Title": "Sign in", "Identifier": req.Identifier})
		return
	}
	middleware.RenewSession(c)

	if middleware.WantsJSON(c) {
		response.JSON(c, http.StatusOK, user, nil)
		return
	}
	c.Redirect(http.StatusSeeOther, session.RouteDashboard)
}

// Register godoc
// @Summary Create a self-service account
// @Description Registers on the remote API and starts a session for the new account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Account"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	scope := scopeOf(c)
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	user, err := h.service.Register(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if scope.Session.Authenticated() {
		middleware.RenewSession(c)
	}
	response.Created(c, user)
}

// Logout ends the session.
// @Summary Sign out
// @Tags Authentication
// @Success 204
// @Router /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	scope := scopeOf(c)
	h.service.Logout(c.Request.Context(), scope, requestMeta(c))
	if h.views != nil {
		h.views.Drop(scope.Session.ID())
	}
	if middleware.WantsJSON(c) {
		response.NoContent(c)
		return
	}
	c.Redirect(http.StatusSeeOther, session.RouteSignIn)
}

// Profile godoc
// @Summary Current profile
// @Tags Profile
// @Produce json,html
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	scope := scopeOf(c)
	user, err := h.service.CurrentUser(c.Request.Context(), scope)
	if err != nil {
		fail(c, scope, err, "profile", gin.H{"Title": "Profile", "Form": profileForm(scope.Identity())})
		return
	}
	if middleware.WantsJSON(c) {
		response.JSON(c, http.StatusOK, user, nil)
		return
	}
	renderPage(c, http.StatusOK, "profile", scope, gin.H{"Title": "Profile", "Identity": user, "Form": profileForm(user)})
}

// UpdateProfile godoc
// @Summary Update profile
// @Tags Profile
// @Accept json,x-www-form-urlencoded
// @Produce json,html
// @Param payload body models.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profile [post]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	scope := scopeOf(c)
	var req models.UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, scope, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"),
			"profile", gin.H{"Title": "Profile", "Form": req})
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), scope, req, requestMeta(c))
	if err != nil {
		fail(c, scope, err, "profile", gin.H{"Title": "Profile", "Form": req})
		return
	}
	if middleware.WantsJSON(c) {
		response.JSON(c, http.StatusOK, user, nil)
		return
	}
	notice(c, session.RouteProfile, "Profile updated")
}

func profileForm(user *models.User) models.UpdateProfileRequest {
	if user == nil {
		return models.UpdateProfileRequest{}
	}
	return models.UpdateProfileRequest{
		Username:   user.Username,
		Email:      user.Email,
		Phone:      user.Phone,
		DocumentID: user.DocumentID,
		Device:     user.Device,
	}
}
