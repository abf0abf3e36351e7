package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/middleware"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

type navigationTarget interface {
	Target() string
}

func scopeOf(c *gin.Context) *session.Scope {
	return middleware.ScopeFrom(c)
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// followNavigation answers the request with the route a service asked for, if
// any. It reports whether the response has been written.
func followNavigation(c *gin.Context, scope *session.Scope) bool {
	nav, ok := scope.Navigator.(navigationTarget)
	if !ok || nav.Target() == "" {
		return false
	}
	if middleware.WantsJSON(c) {
		response.Error(c, appErrors.ErrUnauthorized)
		return true
	}
	c.Redirect(http.StatusSeeOther, nav.Target())
	return true
}

// renderPage renders an HTML page with the signed-in identity attached.
func renderPage(c *gin.Context, status int, page string, scope *session.Scope, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["Identity"]; !ok {
		if identity := scope.Identity(); identity != nil {
			data["Identity"] = identity
		}
	}
	for key, param := range map[string]string{"Notice": "notice", "Error": "error"} {
		if _, ok := data[key]; ok {
			continue
		}
		if msg := strings.TrimSpace(c.Query(param)); msg != "" {
			data[key] = msg
		}
	}
	c.HTML(status, page, data)
}

// fail reports err to the client: a redirect carrying the error banner once
// the session was torn down, the JSON envelope for API clients, otherwise the
// page re-rendered with a banner.
func fail(c *gin.Context, scope *session.Scope, err error, page string, data gin.H) {
	if nav, ok := scope.Navigator.(navigationTarget); ok && nav.Target() != "" && !middleware.WantsJSON(c) {
		redirectWith(c, nav.Target(), "error", appErrors.FromError(err).Message)
		return
	}
	if followNavigation(c, scope) {
		return
	}
	if appErrors.IsAuthProblem(err) && !middleware.WantsJSON(c) {
		c.Redirect(http.StatusSeeOther, session.RouteSignIn)
		return
	}
	if middleware.WantsJSON(c) {
		response.Error(c, err)
		return
	}
	appErr := appErrors.FromError(err)
	if data == nil {
		data = gin.H{}
	}
	data["Error"] = appErr.Message
	renderPage(c, appErr.Status, page, scope, data)
}

// redirectWith sends the client to route with a one-shot banner message.
func redirectWith(c *gin.Context, route, kind, message string) {
	sep := "?"
	if strings.Contains(route, "?") {
		sep = "&"
	}
	c.Redirect(http.StatusSeeOther, route+sep+kind+"="+url.QueryEscape(message))
}

func notice(c *gin.Context, route, message string) {
	redirectWith(c, route, "notice", message)
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
