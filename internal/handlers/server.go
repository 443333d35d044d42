package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"turnstileguard/internal/gate"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server represents the gating HTTP server in front of the upstream application
type Server struct {
	httpServer *http.Server
	config     *gate.Config
	handlers   *Handlers
	upstream   http.Handler
	logger     gate.Logger
}

// NewServer creates a new HTTP server proxying allowed requests to the
// configured upstream
func NewServer(config *gate.Config, g GateInterface, sessions SessionLoader, store gate.Store, logger gate.Logger) (*Server, error) {
	target, err := url.Parse(config.Server.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid upstream URL: %v", gate.ErrConfigurationError, err)
	}

	logger = logger.With("component", "server")

	s := &Server{
		config:   config,
		handlers: NewHandlers(g, sessions, store, logger),
		upstream: newReverseProxy(target, logger),
		logger:   logger,
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        s.Routes(),
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		IdleTimeout:    config.Server.IdleTimeout,
		MaxHeaderBytes: config.Server.MaxHeaderBytes,
	}

	return s, nil
}

func newReverseProxy(target *url.URL, logger gate.Logger) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed", "path", r.URL.Path, "error", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy
}

// Routes builds the router: challenge and verify endpoints, health, and the
// gated catch-all
func (s *Server) Routes() http.Handler {
	turnstile := s.handlers.gate.Config()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.withLogging)

	r.Group(func(r chi.Router) {
		r.Use(s.withSecurityHeaders)
		r.Get(turnstile.ChallengePath, s.handlers.ChallengeHandler)
		r.Head(turnstile.ChallengePath, s.handlers.ChallengeHandler)
		r.HandleFunc(turnstile.VerifyPath, s.handlers.VerifyHandler)
	})

	r.Get("/healthz", s.handlers.HealthCheckHandler)
	r.Handle("/*", s.handlers.Middleware(s.upstream))

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr, "upstream", s.config.Server.UpstreamURL)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed, forcing close", "error", err)
		if closeErr := s.httpServer.Close(); closeErr != nil {
			s.logger.Error("force close failed", "error", closeErr)
			return closeErr
		}
		return err
	}

	s.logger.Info("HTTP server stopped successfully")
	return nil
}

// withLogging adds request logging middleware
func (s *Server) withLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		handler.ServeHTTP(wrapper, r)

		status := wrapper.Status()
		if status == 0 {
			status = http.StatusOK
		}

		s.logger.Debug("HTTP request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"user_agent", r.UserAgent(),
			"remote_addr", r.RemoteAddr)
	})
}

// withSecurityHeaders adds security headers to responses the gate renders
// itself
func (s *Server) withSecurityHeaders(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		w.Header().Set("Pragma", "no-cache")

		handler.ServeHTTP(w, r)
	})
}
