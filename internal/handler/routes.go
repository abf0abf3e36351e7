package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/middleware"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/response"
)

// Handlers groups every handler mounted by Register.
type Handlers struct {
	Auth      *AuthHandler
	Dashboard *DashboardHandler
	Analysis  *AnalysisHandler
	Users     *UserHandler
	Audit     *AuditHandler

	// AuditTrail records exports; nil disables it.
	AuditTrail middleware.AuditRecorder
}

// RegisterProbes mounts health, readiness and Prometheus endpoints.
func RegisterProbes(r gin.IRouter, h *MetricsHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
}

// Register mounts the dashboard routes. Routes below the session guard expect
// middleware.Session to run before them.
func Register(r gin.IRouter, h Handlers, adminRole models.ClinicRole) {
	r.GET("/", h.Auth.Root)
	r.GET(session.RouteSignIn, h.Auth.SignInPage)
	r.POST(session.RouteSignIn, h.Auth.SignIn)
	r.POST("/register", h.Auth.Register)
	r.POST("/logout", h.Auth.Logout)

	private := r.Group("/", middleware.RequireSession())
	private.GET(session.RouteDashboard, h.Dashboard.Dashboard)
	private.GET(session.RouteDashboard+"/export", middleware.Audit(h.AuditTrail, models.AuditActionExport, "analyses"), h.Dashboard.Export)

	private.GET(session.RouteAnalysisCreate, h.Analysis.CreatePage)
	private.POST(session.RouteAnalysisCreate, h.Analysis.Create)
	private.GET("/analysis/:id", h.Analysis.Detail)
	private.GET("/analysis/:id/status", h.Analysis.Status)

	private.GET(session.RouteProfile, h.Auth.Profile)
	private.POST(session.RouteProfile, h.Auth.UpdateProfile)

	private.GET(session.RouteUsers, h.Users.List)
	private.GET(session.RouteUsers+"/export", middleware.Audit(h.AuditTrail, models.AuditActionExport, "users"), h.Users.Export)

	admin := private.Group("/", middleware.RequireClinicRole(adminRole))
	admin.GET(session.RouteUserCreate, h.Users.CreatePage)
	admin.POST(session.RouteUserCreate, h.Users.Create)
	admin.POST("/users/:id/toggle-block", h.Users.ToggleBlock)
	if h.Audit != nil {
		admin.GET("/users/activity", h.Audit.Recent)
	}
}

// NoRoute answers unknown paths with the error page or the JSON envelope.
func NoRoute(c *gin.Context) {
	if middleware.WantsJSON(c) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
		return
	}
	renderPage(c, http.StatusNotFound, "error", scopeOf(c), gin.H{"Title": "Page not found"})
}
