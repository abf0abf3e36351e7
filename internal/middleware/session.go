package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinic-dashboard/internal/listview"
	"github.com/noah-isme/clinic-dashboard/internal/session"
)

// ContextScopeKey is the gin context key storing the request's session scope.
const ContextScopeKey = "sessionScope"

const contextRenewKey = "sessionRenew"

// SessionOptions configures the session cookie.
type SessionOptions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Session loads the browser session named by the cookie, exposes it as a
// session.Scope for the request and persists it afterwards. Sessions without
// a credential after the request are deleted along with their list views.
func Session(store session.Repository, opts SessionOptions, views *listview.Registry, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "clinic_session"
	}
	writeCookie := func(c *gin.Context, id string) {
		header := c.Writer.Header()
		var kept []string
		for _, line := range header.Values("Set-Cookie") {
			if !strings.HasPrefix(line, opts.CookieName+"=") {
				kept = append(kept, line)
			}
		}
		header.Del("Set-Cookie")
		for _, line := range kept {
			header.Add("Set-Cookie", line)
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(opts.CookieName, id, int(opts.TTL.Seconds()), "/", "", opts.Secure, true)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var sess *session.Session
		if id, err := c.Cookie(opts.CookieName); err == nil && id != "" {
			snapshot, loadErr := store.Load(ctx, id)
			switch {
			case loadErr == nil:
				sess = session.Restore(snapshot, time.Now())
			case errors.Is(loadErr, session.ErrNotFound):
			default:
				logger.Warn("session load failed", zap.String("session_id", id), zap.Error(loadErr))
			}
		}
		// unknown ids are never adopted
		if sess == nil {
			sess = session.New(uuid.NewString())
		}
		wasAuthenticated := sess.Authenticated()

		// the cookie has to be written before the handler starts the body
		writeCookie(c, sess.ID())

		var retired []string
		c.Set(contextRenewKey, func() {
			retired = append(retired, sess.Rotate(uuid.NewString()))
			writeCookie(c, sess.ID())
		})

		scope := session.NewScope(sess, session.NewStats(), &session.RecordingNavigator{})
		c.Set(ContextScopeKey, scope)

		c.Next()

		for _, id := range retired {
			if err := store.Delete(ctx, id); err != nil {
				logger.Warn("session delete failed", zap.String("session_id", id), zap.Error(err))
			}
			if views != nil {
				views.Drop(id)
			}
		}

		if sess.Authenticated() {
			if !wasAuthenticated && len(retired) == 0 {
				logger.Warn("session authenticated without renewal", zap.String("path", c.FullPath()))
			}
			if err := store.Save(ctx, sess.Snapshot(), opts.TTL); err != nil {
				logger.Error("session save failed", zap.String("session_id", sess.ID()), zap.Error(err))
			}
			return
		}
		if wasAuthenticated {
			if err := store.Delete(ctx, sess.ID()); err != nil {
				logger.Warn("session delete failed", zap.String("session_id", sess.ID()), zap.Error(err))
			}
		}
		if views != nil {
			views.Drop(sess.ID())
		}
	}
}

// RenewSession moves the request's session to a fresh id and re-issues the
// cookie. Sign-in handlers call it after authenticating and before writing
// the response; the previous id is deleted once the request completes.
func RenewSession(c *gin.Context) {
	if value, ok := c.Get(contextRenewKey); ok {
		if renew, ok := value.(func()); ok {
			renew()
		}
	}
}

// ScopeFrom returns the scope attached by Session, or an empty scope.
func ScopeFrom(c *gin.Context) *session.Scope {
	if value, ok := c.Get(ContextScopeKey); ok {
		if scope, ok := value.(*session.Scope); ok {
			return scope
		}
	}
	return session.NewScope(nil, nil, nil)
}
