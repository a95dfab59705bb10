package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcing-hub/marketplace/internal/manufacturers"
	"github.com/sourcing-hub/marketplace/internal/observability"
	"github.com/sourcing-hub/marketplace/internal/upstream"
)

func TestRouterForwardsTokenUpstream(t *testing.T) {
	var mu sync.Mutex
	var auth, reqID string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth, reqID = r.Header.Get("Authorization"), r.Header.Get("X-Request-ID")
		mu.Unlock()
		_, _ = io.WriteString(w, `{"success":true,"manufacturers":[{"_id":"1","companyName":"Acme"}]}`)
	}))
	defer backend.Close()

	metrics := observability.NewMetrics()
	client, err := upstream.NewClient(upstream.Config{BaseURL: backend.URL, Metrics: metrics})
	require.NoError(t, err)
	svc := manufacturers.NewService(manufacturers.Config{Upstream: client, Metrics: metrics})
	router := NewRouter(RouterParams{
		Logger:               testLogger(),
		Config:               &Config{RateLimitPerMinute: 1000},
		ManufacturersHandler: manufacturers.NewHandler(testLogger(), svc),
		Metrics:              metrics,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/manufacturers", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"name":"Acme"`)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	mu.Lock()
	assert.Equal(t, "Bearer abc", auth)
	assert.NotEmpty(t, reqID)
	mu.Unlock()

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `marketplace_upstream_requests_total{outcome="ok",route="GET /manufacturers"} 1`)
	assert.Contains(t, rr.Body.String(), `marketplace_listing_shaped_total{entity="manufacturer"} 1`)
}

func TestRouterHealthAndUnknownAPIRoute(t *testing.T) {
	router := NewRouter(RouterParams{Logger: testLogger(), Config: &Config{}})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "application/problem+json"))
}

func TestForwardTokenIgnoresOtherSchemes(t *testing.T) {
	var got string
	h := ForwardToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = upstream.TokenFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, got)

	req.Header.Set("Authorization", "bearer  tok ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "tok", got)
}
