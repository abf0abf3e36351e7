package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/session"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *recordingAudit) Record(_ context.Context, entry models.AuditLog) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := session.NewMemoryRepository()
	_ = store.Save(context.Background(), session.Snapshot{
		ID:         "sess-1",
		Identity:   &models.User{ID: 3, Clinic: &models.Clinic{ID: 7}},
		Credential: "tok",
	}, time.Hour)
	recorder := &recordingAudit{}

	router := gin.New()
	router.Use(Session(store, SessionOptions{CookieName: "sid", TTL: time.Hour}, nil, nil))
	router.GET("/users/export", Audit(recorder, models.AuditActionExport, "users"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/broken", Audit(recorder, models.AuditActionExport, "users"), func(c *gin.Context) {
		c.Status(http.StatusBadGateway)
	})

	for _, path := range []string{"/users/export?format=csv", "/broken"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: "sess-1"})
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/export", nil))

	if len(recorder.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Action != models.AuditActionExport || entry.Resource != "users" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.ActorID == nil || *entry.ActorID != 3 || entry.ClinicID == nil || *entry.ClinicID != 7 {
		t.Fatalf("unexpected actor fields: %+v", entry)
	}
	if entry.ResourceID == nil || *entry.ResourceID != "csv" {
		t.Fatalf("unexpected resource id: %v", entry.ResourceID)
	}
}
