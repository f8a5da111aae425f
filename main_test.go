package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/everycheese/everycheese/internal/config"
	"github.com/everycheese/everycheese/internal/tokens"
	"github.com/everycheese/everycheese/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...func(*config.Config)) (*gin.Engine, *services, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.JWT.Secret = "main-test-secret-32-bytes-xxxxxx"
	cfg.Session.CookieName = "sid"
	for _, o := range opts {
		o(cfg)
	}

	s, cleanup := connectServices(context.Background(), cfg)
	t.Cleanup(cleanup)

	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	return newRouter(cfg, s, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})), s, cfg
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConnectServices_MemoryFallback(t *testing.T) {
	_, s, _ := newTestServer(t)
	assert.NotNil(t, s.cheeses)
	assert.NotNil(t, s.users)
	assert.NotNil(t, s.sessions)
	assert.Nil(t, s.auth)
	assert.Nil(t, s.photos)
	assert.Nil(t, s.mongo)
	assert.Nil(t, s.redis)
}

func TestRouter_Operational(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "everycheese_cheeses_created_total")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Pages(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/cheeses/", w.Header().Get("Location"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/cheeses/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cheese List")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/cheeses/add/", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/accounts/login/?next=%2Fcheeses%2Fadd%2F", w.Header().Get("Location"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/no/such/page", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not Found")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/accounts/login/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign In")
}

func TestRouter_SessionCookieUnlocksForms(t *testing.T) {
	r, s, _ := newTestServer(t)
	ctx := context.Background()
	u, err := s.users.SyncFromClaims(ctx, map[string]interface{}{"sub": "sub-1", "name": "Alice"})
	require.NoError(t, err)
	token, err := s.sessions.Start(ctx, u.Sub, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/cheeses/add/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: token})
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Add Cheese")
	assert.Contains(t, w.Body.String(), "Alice")
}

func TestRouter_Me(t *testing.T) {
	r, s, cfg := newTestServer(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	u, err := s.users.SyncFromClaims(context.Background(), map[string]interface{}{"sub": "sub-1", "email": "a@example.com"})
	require.NoError(t, err)
	access, err := tokens.GenerateAccessToken(cfg, u, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	w = serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		User struct {
			Sub string `json:"sub"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "sub-1", got.User.Sub)
}

func TestRouter_RateLimitKeysBySignedInUser(t *testing.T) {
	r, s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.01, Burst: 1}
	})
	ctx := context.Background()
	cookies := map[string]string{}
	for _, name := range []string{"alice", "bob"} {
		u, err := s.users.SyncFromClaims(ctx, map[string]interface{}{"sub": name + "-sub", "name": name})
		require.NoError(t, err)
		token, err := s.sessions.Start(ctx, u.Sub, time.Hour)
		require.NoError(t, err)
		cookies[name] = token
	}
	list := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/cheeses/", nil)
		req.AddCookie(&http.Cookie{Name: "sid", Value: cookies[user]})
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, list("alice"))
	assert.Equal(t, http.StatusOK, list("bob"), "same client IP, different user")
	assert.Equal(t, http.StatusTooManyRequests, list("alice"))
}
