package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/tylerearls/folio/pkg/contact"
	"github.com/tylerearls/folio/pkg/domain"
	"github.com/tylerearls/folio/pkg/ratelimit"
	"github.com/tylerearls/folio/pkg/respcache"
)

//go:generate moq -out mocks/config.go -pkg mocks -skip-ensure -fmt goimports . ConfigProvider
//go:generate moq -out mocks/flag_service.go -pkg mocks -skip-ensure -fmt goimports . FlagService
//go:generate moq -out mocks/rate_limiter.go -pkg mocks -skip-ensure -fmt goimports . RateLimiter
//go:generate moq -out mocks/contact_processor.go -pkg mocks -skip-ensure -fmt goimports . ContactProcessor

// Server represents HTTP server instance
type Server struct {
	config       ConfigProvider
	flags        FlagService
	flagsLimiter RateLimiter
	contact      ContactProcessor
	cache        *respcache.Cache
	version      string
	debug        bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// FlagService loads and stores the feature flag set
type FlagService interface {
	Load(ctx context.Context) (domain.FeatureFlagSet, error)
	Save(ctx context.Context, set domain.FeatureFlagSet) error
}

// RateLimiter counts requests per client ip
type RateLimiter interface {
	Allow(ctx context.Context, ip string) (ratelimit.Decision, error)
}

// ContactProcessor handles contact form submissions
type ContactProcessor interface {
	Submit(ctx context.Context, ip string, body io.Reader) contact.Result
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
	GetAllowedOrigins() []string
	GetFlagsConfig() (cacheTTL, staleWhileRevalidate time.Duration, adminKey string)
}

// Deps groups the services behind the endpoints
type Deps struct {
	Flags        FlagService
	FlagsLimiter RateLimiter
	Contact      ContactProcessor
}

// New initializes a new server instance
func New(cfg ConfigProvider, deps Deps, version string, debug bool) *Server {
	cacheTTL, _, _ := cfg.GetFlagsConfig()
	s := &Server{
		config:       cfg,
		flags:        deps.Flags,
		flagsLimiter: deps.FlagsLimiter,
		contact:      deps.Contact,
		cache:        respcache.New(cacheTTL),
		version:      version,
		debug:        debug,
		router:       routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: timeout,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s.lock.Lock()
		defer s.lock.Unlock()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("folio", "tylerearls", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(64 * 1024)) // 64KB, flag sets and contact messages are small
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	origins := s.config.GetAllowedOrigins()

	s.router.Group().Route(func(r *routegroup.Bundle) {
		r.Use(corsMiddleware(corsPolicy{
			origins: origins,
			methods: "GET, PUT, OPTIONS",
			headers: "Content-Type, X-API-Key",
			maxAge:  86400,
		}))
		r.HandleFunc("GET /api/flags", s.getFlagsHandler)
		r.HandleFunc("PUT /api/flags", s.putFlagsHandler)
		r.HandleFunc("OPTIONS /api/flags", preflightHandler)
		r.HandleFunc("/api/", s.notFoundHandler)
	})

	s.router.Group().Route(func(r *routegroup.Bundle) {
		r.Use(corsMiddleware(corsPolicy{
			origins: origins,
			methods: "POST, OPTIONS",
			headers: "Content-Type",
		}))
		r.HandleFunc("POST /api/contact", s.contactHandler)
		r.HandleFunc("OPTIONS /api/contact", preflightHandler)
	})

	s.router.HandleFunc("GET /health", s.healthHandler)
}

// healthHandler reports liveness, no dependencies are touched
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusNotFound, map[string]string{"error": "Not Found", "message": "Unknown endpoint"})
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON with a human readable message
func renderError(w http.ResponseWriter, r *http.Request, code int, errText, msg string) {
	renderJSON(w, r, code, map[string]string{"error": errText, "message": msg})
}
