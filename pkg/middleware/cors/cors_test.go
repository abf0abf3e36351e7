package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/dashboard", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func serve(r *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/dashboard", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListedOrigin(t *testing.T) {
	r := corsRouter("https://admin.clinic.test/")

	rec := serve(r, http.MethodGet, "https://admin.clinic.test", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.clinic.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	rec = serve(r, http.MethodOptions, "https://admin.clinic.test", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, allowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestUnlistedOrigin(t *testing.T) {
	r := corsRouter("https://admin.clinic.test")

	rec := serve(r, http.MethodGet, "https://evil.test", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(r, http.MethodOptions, "https://evil.test", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWildcardAndSameOrigin(t *testing.T) {
	r := corsRouter("*")
	rec := serve(r, http.MethodGet, "https://any.test", false)
	assert.Equal(t, "https://any.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(corsRouter(), http.MethodGet, "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Vary"))
}
