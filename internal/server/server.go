package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dvcrn/adboard/internal/client"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is a local reverse proxy for the marketplace API. It holds the
// session, so callers never handle tokens: every /api/* request is sent with
// the stored access token and recovered from an expired one.
type Server struct {
	client   *client.Client
	router   chi.Router
	logger   zerolog.Logger
	adminKey string
	metrics  http.Handler
}

type Option func(*Server)

// WithAdminAPIKey protects the /session endpoints with key.
func WithAdminAPIKey(key string) Option {
	return func(s *Server) {
		s.adminKey = key
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

func New(logger zerolog.Logger, c *client.Client, opts ...Option) *Server {
	s := &Server{
		client: c,
		router: chi.NewRouter(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.healthHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/session", func(r chi.Router) {
		r.Use(s.adminMiddleware)
		r.Post("/login", s.loginHandler)
		r.Post("/logout", s.logoutHandler)
		r.Post("/refresh", s.refreshHandler)
		r.Post("/tokens", s.tokensHandler)
		r.Get("/status", s.statusHandler)
	})

	r.With(s.adminMiddleware).HandleFunc("/api/*", s.proxyHandler)
	r.NotFound(s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Incoming request")
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
