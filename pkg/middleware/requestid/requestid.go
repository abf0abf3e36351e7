// Package requestid tags every request with an identifier that follows it
// into logs and onward calls to the content API.
package requestid

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the identifier in both directions.
const Header = "X-Request-ID"

const ginKey = "request_id"

type ctxKey struct{}

// inbound identifiers are reused only when they look like something we would generate.
var acceptable = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// Middleware reuses a well-formed incoming X-Request-ID or generates one.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(ginKey, id)
		c.Request = c.Request.WithContext(WithID(c.Request.Context(), id))
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the identifier assigned to c.
func Value(c *gin.Context) string {
	return c.GetString(ginKey)
}

// WithID stores id on ctx.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identifier stored on ctx, if any.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
