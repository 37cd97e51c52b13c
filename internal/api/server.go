// Package api provides the HTTP API of reconnoiter. It exposes the recon
// engine's operations, the scheduler's jobs, health endpoints and a
// websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/anstrom/reconnoiter/internal/api/middleware"
	apihandlers "github.com/anstrom/reconnoiter/internal/api/handlers"
	"github.com/anstrom/reconnoiter/internal/auth"
	"github.com/anstrom/reconnoiter/internal/config"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/metrics"
)

// Server timeout constants.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	idleTimeout       = 120 * time.Second
	writeTimeoutSlack = 30 * time.Second
	maxHeaderBytes    = 1 << 20
)

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *logging.Logger
	metrics    metrics.Recorder
	exposition http.Handler
	limiter    *middleware.ClientLimiter
	keyring    *auth.Keyring
	build      apihandlers.BuildInfo
	checks     map[string]apihandlers.HealthCheck

	mu       sync.Mutex
	listener net.Listener
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics records request metrics to recorder and serves exposition on
// the configured metrics path when enabled.
func WithMetrics(recorder metrics.Recorder, exposition http.Handler) Option {
	return func(s *Server) {
		s.metrics = recorder
		s.exposition = exposition
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBuildInfo sets what /version reports.
func WithBuildInfo(build apihandlers.BuildInfo) Option {
	return func(s *Server) { s.build = build }
}

// WithHealthCheck adds a named check to /health.
func WithHealthCheck(name string, check apihandlers.HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// New creates a new API server instance. schedules may be nil.
func New(cfg *config.Config, recon apihandlers.Recon, schedules apihandlers.Schedules, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if recon == nil {
		return nil, errors.New("recon engine is required")
	}

	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg,
		logger:  logging.Default(),
		metrics: metrics.Nop{},
		build:   apihandlers.BuildInfo{Version: "dev"},
		checks:  map[string]apihandlers.HealthCheck{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")

	if len(cfg.API.APIKeys) > 0 {
		keys := make([]auth.Key, 0, len(cfg.API.APIKeys))
		for _, k := range cfg.API.APIKeys {
			keys = append(keys, auth.Key{Name: k.Name, Hash: k.Hash})
		}
		s.keyring = auth.NewKeyring(keys)
	}
	if cfg.API.RateLimit.Enabled {
		s.limiter = middleware.NewClientLimiter(cfg.API.RateLimit.Requests, cfg.API.RateLimit.Window)
	}

	s.setupMiddleware()
	s.setupRoutes(recon, schedules)

	var handler http.Handler = s.router
	if cfg.API.CORS.Enabled {
		// Wraps the router so preflight requests never reach method matching.
		handler = handlers.CORS(
			handlers.AllowedOrigins(cfg.API.CORS.AllowedOrigins),
			handlers.AllowedMethods(cfg.API.CORS.AllowedMethods),
			handlers.AllowedHeaders(cfg.API.CORS.AllowedHeaders),
		)(s.router)
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.API.ListenAddr, strconv.Itoa(cfg.API.Port)),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.API.RequestTimeout + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	return s, nil
}

// setupMiddleware installs the middleware shared by every route.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	// Request IDs are assigned either way; a nil logger only silences the log lines.
	var requestLogger *logging.Logger
	if s.config.Logging.RequestLogging {
		requestLogger = s.logger
	}
	s.router.Use(middleware.Logging(requestLogger))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(middleware.Metrics(s.metrics))
}

// setupRoutes configures all API routes. Auth, rate limiting and request
// bounds apply under /api/v1 only, so metrics scraping stays unauthenticated.
func (s *Server) setupRoutes(recon apihandlers.Recon, schedules apihandlers.Schedules) {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	if s.limiter != nil {
		api.Use(middleware.RateLimit(s.limiter, s.logger))
	}
	if s.keyring != nil {
		api.Use(middleware.Authentication(s.keyring, s.logger))
	}
	api.Use(middleware.ContentType())
	api.Use(middleware.MaxBodySize(s.config.API.MaxRequestSize))
	api.Use(middleware.RequestTimeout(s.config.API.RequestTimeout))

	health := apihandlers.NewHealthHandler(s.checks, s.build, s.logger)
	route(api, "/health", http.MethodGet, health.Health)
	route(api, "/liveness", http.MethodGet, health.Liveness)
	route(api, "/status", http.MethodGet, health.Status)
	route(api, "/version", http.MethodGet, health.Version)

	reconHandler := apihandlers.NewReconHandler(recon, s.logger)
	route(api, "/scans", http.MethodPost, reconHandler.CreateScan)
	route(api, "/subdomains", http.MethodPost, reconHandler.DiscoverSubdomains)
	route(api, "/sweeps", http.MethodPost, reconHandler.PingSweep)

	scheduleHandler := apihandlers.NewScheduleHandler(schedules, s.logger)
	route(api, "/schedules", http.MethodGet, scheduleHandler.ListSchedules)
	route(api, "/schedules/{name}", http.MethodGet, scheduleHandler.GetSchedule)
	route(api, "/schedules/{name}/run", http.MethodPost, scheduleHandler.RunSchedule)

	var origins []string
	if s.config.API.CORS.Enabled {
		origins = s.config.API.CORS.AllowedOrigins
	}
	stream := apihandlers.NewStreamHandler(recon, origins, s.logger)
	route(api, "/ws", http.MethodGet, stream.Stream)

	if s.config.Metrics.Enabled && s.exposition != nil {
		route(s.router, s.config.Metrics.Path, http.MethodGet, s.exposition.ServeHTTP)
	}

	route(s.router, "/", http.MethodGet, s.index)
}

// route registers h for method on path, then a catch-all on the same path
// answering 405. mux reports a method mismatch under a subrouter as 404.
func route(r *mux.Router, path, method string, h http.HandlerFunc) {
	r.HandleFunc(path, h).Methods(method)
	r.Handle(path, apihandlers.MethodNotAllowed(method))
}

// index lists the entry points of the API.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"scans":      "POST /api/v1/scans",
		"subdomains": "POST /api/v1/subdomains",
		"sweeps":     "POST /api/v1/sweeps",
		"schedules":  "GET /api/v1/schedules",
		"stream":     "GET /api/v1/ws",
		"health":     "GET /api/v1/health",
		"version":    "GET /api/v1/version",
	}
	if s.config.Metrics.Enabled && s.exposition != nil {
		endpoints["metrics"] = "GET " + s.config.Metrics.Path
	}

	response := map[string]any{
		"service":   "reconnoiter",
		"version":   s.build.Version,
		"endpoints": endpoints,
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode API index response", "error", err)
	}
}

// Start listens on the configured address and serves until ctx is canceled,
// then shuts down gracefully. Bind errors are returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.StartCleanup(ctx)
	}

	s.logger.InfoServer("Starting API server",
		"address", ln.Addr().String(),
		"auth", s.keyring != nil,
		"rate_limit", s.limiter != nil,
		"cors", s.config.API.CORS.Enabled)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Stop gracefully stops the API server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Stop() error {
	s.logger.InfoServer("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.API.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.ErrorServer("API server shutdown error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.InfoServer("API server stopped")
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the configured listen address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

// ListenAddr returns the bound address once Start has begun listening.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
