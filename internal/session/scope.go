package session

import (
	"sync"

	"github.com/noah-isme/clinic-dashboard/internal/models"
)

// Client-side routes.
const (
	RouteSignIn         = "/signin"
	RouteDashboard      = "/dashboard"
	RouteProfile        = "/profile"
	RouteUsers          = "/users"
	RouteUserCreate     = "/users/create"
	RouteAnalysisCreate = "/analysis/create"
)

// Navigator moves the client to another route.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

// Navigate calls f(route).
func (f NavigatorFunc) Navigate(route string) { f(route) }

// RecordingNavigator remembers the last requested route.
type RecordingNavigator struct {
	mu    sync.Mutex
	route string
}

// Navigate records route.
func (n *RecordingNavigator) Navigate(route string) {
	n.mu.Lock()
	n.route = route
	n.mu.Unlock()
}

// Target returns the last recorded route, or "".
func (n *RecordingNavigator) Target() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

// Scope is everything a service operation may read or mutate on behalf of
// one signed-in client.
type Scope struct {
	Session   *Session
	Stats     *Stats
	Navigator Navigator
}

// NewScope builds a scope, filling missing parts with empty values.
func NewScope(sess *Session, stats *Stats, nav Navigator) *Scope {
	if sess == nil {
		sess = New("")
	}
	if stats == nil {
		stats = NewStats()
	}
	if nav == nil {
		nav = &RecordingNavigator{}
	}
	return &Scope{Session: sess, Stats: stats, Navigator: nav}
}

// Identity is a shorthand for s.Session.Identity that tolerates a nil scope.
func (s *Scope) Identity() *models.User {
	if s == nil || s.Session == nil {
		return nil
	}
	return s.Session.Identity()
}
