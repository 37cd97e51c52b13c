package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihandlers "github.com/anstrom/reconnoiter/internal/api/handlers"
	"github.com/anstrom/reconnoiter/internal/auth"
	"github.com/anstrom/reconnoiter/internal/config"
	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
	"github.com/anstrom/reconnoiter/internal/recon"
)

// stubRecon answers every operation immediately unless block is set, in
// which case it waits for the context.
type stubRecon struct {
	block bool
}

func (s stubRecon) ScanTargetPorts(ctx context.Context, target string, _ []int) (*recon.ScanResult, error) {
	if s.block {
		<-ctx.Done()
		return nil, errors.ErrCanceled(target, ctx.Err())
	}
	return &recon.ScanResult{
		Target:          target,
		OpenPorts:       []int{443},
		Services:        recon.ServiceMap{},
		WebServers:      []recon.WebServerInfo{},
		Vulnerabilities: []string{},
	}, nil
}

func (s stubRecon) DiscoverSubdomains(context.Context, string, []string) ([]string, error) {
	return []string{"www.example.com"}, nil
}

func (s stubRecon) PingSweep(context.Context, string) ([]string, error) {
	return []string{"192.0.2.1"}, nil
}

func createTestConfig() *config.Config {
	cfg := config.Default()
	cfg.API.Port = 0
	cfg.Logging.RequestLogging = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, r apihandlers.Recon, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	s, err := New(cfg, r, nil, opts...)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := New(nil, stubRecon{}, nil)
		assert.Error(t, err)
	})

	t.Run("requires recon engine", func(t *testing.T) {
		_, err := New(createTestConfig(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("address from config", func(t *testing.T) {
		cfg := createTestConfig()
		cfg.API.ListenAddr = "0.0.0.0"
		cfg.API.Port = 9443
		s := newTestServer(t, cfg, stubRecon{})
		assert.Equal(t, "0.0.0.0:9443", s.GetAddress())
		assert.NotNil(t, s.GetRouter())
		assert.Nil(t, s.ListenAddr())
	})
}

// Method mismatches under the /api/v1 subrouter must not fall through to 404.
func TestRoutes_MethodMismatch(t *testing.T) {
	s := newTestServer(t, createTestConfig(), stubRecon{})

	tests := []struct {
		method string
		path   string
		allow  string
	}{
		{http.MethodGet, "/api/v1/scans", http.MethodPost},
		{http.MethodPut, "/api/v1/subdomains", http.MethodPost},
		{http.MethodGet, "/api/v1/sweeps", http.MethodPost},
		{http.MethodPost, "/api/v1/health", http.MethodGet},
		{http.MethodDelete, "/api/v1/schedules", http.MethodGet},
		{http.MethodPost, "/api/v1/schedules/nightly", http.MethodGet},
		{http.MethodGet, "/api/v1/schedules/nightly/run", http.MethodPost},
		{http.MethodPost, "/api/v1/ws", http.MethodGet},
		{http.MethodPost, "/", http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(s, tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, rec.Body.String())
			assert.Equal(t, tt.allow, rec.Header().Get("Allow"))
			assert.Contains(t, rec.Body.String(), "not allowed")
		})
	}

	t.Run("unknown path stays 404", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, createTestConfig(), stubRecon{},
		WithBuildInfo(apihandlers.BuildInfo{Version: "1.0.0"}))

	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		expectStatus int
		expectBody   string
	}{
		{"index", http.MethodGet, "/", "", http.StatusOK, `"reconnoiter"`},
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK, `"healthy"`},
		{"liveness", http.MethodGet, "/api/v1/liveness", "", http.StatusOK, `"alive"`},
		{"status", http.MethodGet, "/api/v1/status", "", http.StatusOK, `"service"`},
		{"version", http.MethodGet, "/api/v1/version", "", http.StatusOK, `"1.0.0"`},
		{"scan", http.MethodPost, "/api/v1/scans", `{"target":"example.com"}`, http.StatusOK, `"open_ports":[443]`},
		{"subdomains", http.MethodPost, "/api/v1/subdomains", `{"domain":"example.com"}`, http.StatusOK, `www.example.com`},
		{"sweep", http.MethodPost, "/api/v1/sweeps", `{"network":"192.0.2.0/30"}`, http.StatusOK, `192.0.2.1`},
		{"schedules without scheduler", http.MethodGet, "/api/v1/schedules", "", http.StatusOK, `"count":0`},
		{"unknown route", http.MethodGet, "/api/v1/hosts", "", http.StatusNotFound, ""},
		{"wrong method", http.MethodGet, "/api/v1/scans", "", http.StatusMethodNotAllowed, ""},
		{"metrics disabled without exposition", http.MethodGet, "/metrics", "", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, tt.method, tt.path, tt.body, nil)

			assert.Equal(t, tt.expectStatus, rec.Code, rec.Body.String())
			if tt.expectBody != "" {
				assert.Contains(t, rec.Body.String(), tt.expectBody)
			}
		})
	}
}

func TestMiddlewareApplied(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.MaxRequestSize = 64
	s := newTestServer(t, cfg, stubRecon{})

	t.Run("request id and security headers", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/liveness", "", nil)
		assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	})

	t.Run("content type enforced", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/api/v1/scans", `{"target":"a"}`,
			http.Header{"Content-Type": {"text/plain"}})
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("body size capped", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/api/v1/scans",
			fmt.Sprintf(`{"target":%q}`, strings.Repeat("a", 128)), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "too large")
	})
}

func TestRequestTimeout(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.RequestTimeout = 50 * time.Millisecond
	s := newTestServer(t, cfg, stubRecon{block: true})

	rec := do(s, http.MethodPost, "/api/v1/scans", `{"target":"example.com"}`, nil)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), `"CANCELED"`)
}

func TestAuthentication(t *testing.T) {
	key, err := auth.GenerateAPIKey("ci")
	require.NoError(t, err)

	cfg := createTestConfig()
	cfg.API.APIKeys = []config.APIKeyConfig{{Name: key.Name, Hash: key.Hash}}
	pm := metrics.NewPrometheusMetrics()
	s := newTestServer(t, cfg, stubRecon{}, WithMetrics(pm, pm.Handler()))

	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		header       http.Header
		expectStatus int
	}{
		{"missing key", http.MethodPost, "/api/v1/scans", `{"target":"a"}`, nil, http.StatusUnauthorized},
		{"wrong key", http.MethodPost, "/api/v1/scans", `{"target":"a"}`,
			http.Header{"X-Api-Key": {"rk_aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}}, http.StatusUnauthorized},
		{"header key", http.MethodPost, "/api/v1/scans", `{"target":"a"}`,
			http.Header{"X-Api-Key": {key.Key}}, http.StatusOK},
		{"bearer key", http.MethodGet, "/api/v1/schedules", "",
			http.Header{"Authorization": {"Bearer " + key.Key}}, http.StatusOK},
		{"health is public", http.MethodGet, "/api/v1/health", "", nil, http.StatusOK},
		{"version is public", http.MethodGet, "/api/v1/version", "", nil, http.StatusOK},
		{"status needs key", http.MethodGet, "/api/v1/status", "", nil, http.StatusUnauthorized},
		{"metrics outside api", http.MethodGet, "/metrics", "", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, tt.method, tt.path, tt.body, tt.header)
			assert.Equal(t, tt.expectStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Hour}
	s := newTestServer(t, cfg, stubRecon{})

	for i := 0; i < 2; i++ {
		rec := do(s, http.MethodGet, "/api/v1/liveness", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do(s, http.MethodGet, "/api/v1/liveness", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORS(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.CORS.Enabled = true
	cfg.API.CORS.AllowedOrigins = []string{"https://console.example.com"}
	s := newTestServer(t, cfg, stubRecon{})

	t.Run("preflight", func(t *testing.T) {
		rec := do(s, http.MethodOptions, "/api/v1/scans", "", http.Header{
			"Origin":                        {"https://console.example.com"},
			"Access-Control-Request-Method": {http.MethodPost},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://console.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/liveness", "", http.Header{
			"Origin": {"https://evil.example.net"},
		})
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsExposition(t *testing.T) {
	pm := metrics.NewPrometheusMetrics()
	s := newTestServer(t, createTestConfig(), stubRecon{}, WithMetrics(pm, pm.Handler()))

	require.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/v1/schedules/nightly", "", nil).Code)

	rec := do(s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "reconnoiter_api_requests_total")
	assert.Contains(t, body, `path="/api/v1/schedules/{name}"`)
	assert.Contains(t, body, `status="404"`)
}

func TestHealthChecks(t *testing.T) {
	s := newTestServer(t, createTestConfig(), stubRecon{},
		WithHealthCheck("scheduler", func(context.Context) error { return stderrors.New("stopped") }))

	rec := do(s, http.MethodGet, "/api/v1/health", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed: stopped")
}

func TestServerStartStop(t *testing.T) {
	s := newTestServer(t, createTestConfig(), stubRecon{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.ListenAddr() != nil }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.ListenAddr().String() + "/api/v1/liveness")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerStart_BindError(t *testing.T) {
	first := newTestServer(t, createTestConfig(), stubRecon{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Start(ctx) }()
	require.Eventually(t, func() bool { return first.ListenAddr() != nil }, 5*time.Second, 10*time.Millisecond)

	cfg := createTestConfig()
	cfg.API.Port = first.ListenAddr().(*net.TCPAddr).Port
	second := newTestServer(t, cfg, stubRecon{})

	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}
