package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	frontendURL    string
	allowedOrigins []string
	maxUploadBytes int64

	// Services
	authService         driving.AuthService
	oauthService        driving.OAuthService
	tokenService        driving.TokenService
	installationService driving.InstallationService
	proxyService        driving.ProxyService

	// Infrastructure
	store       Pinger // Installation store health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// FrontendURL receives the browser after a completed OAuth callback.
	// When empty the callback answers with JSON instead of a redirect.
	FrontendURL string

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string

	// MaxUploadBytes bounds media uploads (default 25MB).
	MaxUploadBytes int64

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: 25 << 20,
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	authService driving.AuthService,
	oauthService driving.OAuthService,
	tokenService driving.TokenService,
	installationService driving.InstallationService,
	proxyService driving.ProxyService,
	store Pinger,
	redisClient Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:              http.NewServeMux(),
		version:             cfg.Version,
		logger:              logger,
		frontendURL:         cfg.FrontendURL,
		allowedOrigins:      cfg.AllowedOrigins,
		maxUploadBytes:      maxUpload,
		authService:         authService,
		oauthService:        oauthService,
		tokenService:        tokenService,
		installationService: installationService,
		proxyService:        proxyService,
		store:               store,
		redisClient:         redisClient,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the global middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.allowedOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Create middleware
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// OAuth flow endpoints (public)
	s.router.HandleFunc("POST /api/v1/oauth/authorize", s.handleOAuthAuthorize)
	s.router.HandleFunc("GET /api/v1/oauth/authorize", s.handleOAuthAuthorizeRedirect)
	// Callback is public - receives redirects from GHL
	s.router.HandleFunc("GET /api/v1/oauth/callback", s.handleOAuthCallback)

	// Session endpoint
	s.router.Handle("GET /api/v1/me",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetMe)))

	// Installation endpoints (admin-only)
	s.router.Handle("GET /api/v1/installations",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleListInstallations))))
	s.router.Handle("GET /api/v1/installations/{id}",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetInstallation))))
	s.router.Handle("POST /api/v1/installations/{id}/refresh",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleRefreshInstallation))))
	s.router.Handle("GET /api/v1/installations/{id}/token",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetInstallationToken))))
	s.router.Handle("GET /api/v1/locations/{locationId}/installation",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetInstallationByLocation))))

	// Admin endpoints (admin-only)
	s.router.Handle("GET /api/v1/admin/stats",
		authMiddleware.Authenticate(
			authMiddleware.RequireAdmin(http.HandlerFunc(s.handleGetAdminStats))))

	// Proxy endpoints (session or admin)
	s.router.Handle("GET /api/v1/products",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListProducts)))
	s.router.Handle("POST /api/v1/products",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCreateProduct)))
	s.router.Handle("GET /api/v1/products/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetProduct)))
	s.router.Handle("PUT /api/v1/products/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUpdateProduct)))
	s.router.Handle("DELETE /api/v1/products/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDeleteProduct)))

	s.router.Handle("GET /api/v1/media",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListMedia)))
	s.router.Handle("POST /api/v1/media",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUploadMedia)))
	s.router.Handle("DELETE /api/v1/media/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDeleteMedia)))

	s.router.Handle("GET /api/v1/location",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetLocation)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info("shutting down server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
