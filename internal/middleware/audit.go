package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/models"
)

// AuditRecorder accepts audit entries for asynchronous persistence.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// Audit records an audit entry after each successful request of a signed-in user.
func Audit(recorder AuditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}
		identity := ScopeFrom(c).Identity()
		if identity == nil {
			return
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"query":   c.Request.URL.RawQuery,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		actorID := identity.ID
		entry := models.AuditLog{
			ActorID:   &actorID,
			Action:    action,
			Resource:  resource,
			NewValues: body,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if clinicID := identity.ClinicID(); clinicID != 0 {
			entry.ClinicID = &clinicID
		}
		if format := c.Query("format"); format != "" {
			entry.ResourceID = &format
		}
		recorder.Record(c.Request.Context(), entry)
	}
}
