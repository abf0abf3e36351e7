package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

// RequireClinicRole restricts a route to signed-in users holding one of roles.
// Must run after RequireSession.
func RequireClinicRole(roles ...models.ClinicRole) gin.HandlerFunc {
	allowed := make(map[models.ClinicRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		identity := ScopeFrom(c).Identity()
		if identity == nil {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		if _, ok := allowed[identity.RoleClinic]; ok {
			c.Next()
			return
		}
		err := appErrors.Clone(appErrors.ErrForbidden, "this action requires a clinic administrator")
		if WantsJSON(c) {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.String(http.StatusForbidden, err.Message)
		c.Abort()
	}
}
