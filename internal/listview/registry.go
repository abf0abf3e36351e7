package listview

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	view     interface{}
	lastUsed time.Time
}

// Registry keeps one view per session and list name.
type Registry struct {
	mu    sync.Mutex
	views map[string]*entry
	now   func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*entry), now: time.Now}
}

// For returns the view named name for sessionID, creating it on first use.
func For[T any](r *Registry, sessionID, name string) *View[T] {
	key := sessionID + "/" + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.views[key]; ok {
		if view, ok := e.view.(*View[T]); ok {
			e.lastUsed = r.now()
			return view
		}
	}
	view := New[T]()
	r.views[key] = &entry{view: view, lastUsed: r.now()}
	return view
}

// Drop forgets every view of sessionID.
func (r *Registry) Drop(sessionID string) {
	prefix := sessionID + "/"

	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.views {
		if strings.HasPrefix(key, prefix) {
			delete(r.views, key)
		}
	}
}

// Prune forgets views unused for longer than maxIdle and returns how many were removed.
func (r *Registry) Prune(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, e := range r.views {
		if e.lastUsed.Before(cutoff) {
			delete(r.views, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
