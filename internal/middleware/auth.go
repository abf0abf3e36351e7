package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

// RequireSession sends clients without a signed-in session to the sign-in
// page, or answers 401 when they asked for JSON.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ScopeFrom(c).Session.Authenticated() {
			c.Next()
			return
		}
		if WantsJSON(c) {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Redirect(http.StatusSeeOther, session.RouteSignIn)
		c.Abort()
	}
}

// WantsJSON reports whether the client prefers a JSON answer over HTML.
func WantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
