package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/noah-isme/clinic-dashboard/internal/apiclient"
	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
)

// fakeStrapi is an httptest server that records every request it receives.
type fakeStrapi struct {
	mu       sync.Mutex
	requests []*http.Request
	server   *httptest.Server
}

func newFakeStrapi(t *testing.T, handler http.HandlerFunc) (*fakeStrapi, *apiclient.Client) {
	t.Helper()
	f := &fakeStrapi{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	client := apiclient.New(apiclient.Config{BaseURL: f.server.URL + "/api", Timeout: 5 * time.Second})
	return f, client
}

func (f *fakeStrapi) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeStrapi) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func strapiError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"data":  nil,
		"error": map[string]interface{}{"status": status, "name": "Error", "message": message},
	})
}

func adminIdentity() models.User {
	return models.User{
		ID:         3,
		Username:   "admin",
		Email:      "admin@clinic.test",
		RoleClinic: "adminClinic",
		Clinic:     &models.Clinic{ID: 7, Name: "Clinic"},
	}
}

func signedInScope() (*session.Scope, *session.RecordingNavigator) {
	nav := &session.RecordingNavigator{}
	sess := session.New("sess-1")
	sess.Login(adminIdentity(), "token-abc")
	return session.NewScope(sess, session.NewStats(), nav), nav
}

type memoryCache struct {
	mu          sync.Mutex
	values      map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.values[key] = raw
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, pattern string) error {
	c.mu.Lock()
	for key := range c.values {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.values, key)
		}
	}
	c.invalidated = append(c.invalidated, pattern)
	c.mu.Unlock()
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, entry models.AuditLog) {
	a.mu.Lock()
	a.entries = append(a.entries, entry)
	a.mu.Unlock()
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}
