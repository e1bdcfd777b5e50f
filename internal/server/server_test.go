package server

import (
	"context"
	"ctchen222/user-service/internal/ratelimit"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func echo(c *gin.Context) {
	if c.Request.URL.Path == "/panic" {
		panic("boom")
	}
	c.JSON(http.StatusOK, gin.H{"path": c.Request.URL.Path})
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis down")
}

func get(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s := NewServer(echo, nil)

	w := get(s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCatchAllReachesDispatch(t *testing.T) {
	s := NewServer(echo, nil)

	w := get(s, http.MethodDelete, "/api/v1/users/3", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"path":"/api/v1/users/3"}`, w.Body.String())
}

func TestHeaders(t *testing.T) {
	s := NewServer(echo, nil)

	w := get(s, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = get(s, http.MethodGet, "/api/v1/users", http.Header{RequestIDHeader: {"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	s := NewServer(func(c *gin.Context) { called = true }, nil)

	w := get(s, http.MethodOptions, "/api/v1/users", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.False(t, called)
}

func TestRateLimit(t *testing.T) {
	s := NewServer(echo, ratelimit.NewMemoryLimiter(2, 15*time.Minute))

	for i := 0; i < 2; i++ {
		w := get(s, http.MethodGet, "/api/v1/users", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := get(s, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"Too many requests"}`, w.Body.String())
	assert.Equal(t, "900", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	s := NewServer(echo, failingLimiter{})

	w := get(s, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	s := NewServer(echo, nil)

	w := get(s, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}
