// Package api exposes screening, states, visibility and the alert stream over HTTP.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbitscreen/internal/auth"
	"github.com/star/orbitscreen/internal/cache"
	"github.com/star/orbitscreen/internal/health"
	"github.com/star/orbitscreen/internal/httputil"
	"github.com/star/orbitscreen/internal/metrics"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/stream"
	"github.com/star/orbitscreen/internal/tle"
)

// Config holds the server settings.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool

	// DefaultThreshold (km) applies to screen requests that omit one.
	DefaultThreshold float64
}

// Deps are the services the handlers read from.
type Deps struct {
	Store    *tle.Store
	Screener *cache.Screener
	Broker   *stream.Broker
	Pool     *propagation.WorkerPool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With("component", "api")
	mux := http.NewServeMux()

	catalogLoaded := func() error {
		if deps.Store.Get() == nil {
			return fmt.Errorf("%w: no catalog loaded", health.ErrNotReady)
		}
		return nil
	}
	engineReady := func() error {
		if !propagation.Initialized() {
			return fmt.Errorf("%w: propagation not initialized", health.ErrNotReady)
		}
		return nil
	}

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(engineReady, catalogLoaded))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/catalog", catalogHandler(deps.Store))
	mux.HandleFunc("GET /api/v1/states", statesHandler(logger, deps.Screener))
	mux.HandleFunc("GET /api/v1/states/{satellite_id}", stateHandler(logger, deps.Screener))
	mux.HandleFunc("POST /api/v1/screen", screenHandler(logger, deps.Screener, cfg.DefaultThreshold))
	mux.HandleFunc("GET /api/v1/screen/latest", latestHandler(deps.Screener))
	mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(deps.Screener))
	mux.HandleFunc("GET /api/v1/passes", passesHandler(logger, deps.Screener, deps.Pool))
	if deps.Broker != nil {
		mux.HandleFunc("GET /api/v1/stream/alerts", deps.Broker.HandleAlerts)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Screening a full catalog can take a while; streams clear this per connection.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the full middleware chain, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
