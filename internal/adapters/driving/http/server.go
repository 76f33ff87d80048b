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

	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP surface over the core services
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	assetService        driving.AssetService
	searchService       driving.SearchService
	conversationService driving.ConversationService
	ragService          driving.RAGService

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)

	// Auth is optional: nil means the API is open
	auth driven.AuthAdapter
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	assetService driving.AssetService,
	searchService driving.SearchService,
	conversationService driving.ConversationService,
	ragService driving.RAGService,
	db Pinger,
	redisClient Pinger, // can be nil
	auth driven.AuthAdapter, // can be nil
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:              http.NewServeMux(),
		version:             cfg.Version,
		logger:              logger,
		assetService:        assetService,
		searchService:       searchService,
		conversationService: conversationService,
		ragService:          ragService,
		db:                  db,
		redisClient:         redisClient,
		auth:                auth,
	}

	logging := NewLoggingMiddleware(logger)
	recovery := NewRecoveryMiddleware(logger)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      recovery.Handler(logging.Handler(s.router)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Asset endpoints
	s.handle("GET /api/v1/assets", s.handleListAssets)
	s.handle("POST /api/v1/assets", s.handleCreateAsset)
	s.handle("POST /api/v1/assets/batch", s.handleBatchCreateAssets)
	s.handle("GET /api/v1/assets/{id}", s.handleGetAsset)
	s.handle("PUT /api/v1/assets/{id}", s.handleUpdateAsset)
	s.handle("DELETE /api/v1/assets/{id}", s.handleDeleteAsset)
	s.handle("GET /api/v1/assets/{id}/download", s.handleDownloadAsset)
	s.handle("POST /api/v1/assets/{id}/process", s.handleProcessDocument)

	// Search endpoints
	s.handle("POST /api/v1/search", s.handleSearch)
	s.handle("POST /api/v1/search/vector", s.handleVectorSearch)
	s.handle("GET /api/v1/search/suggestions", s.handleSuggestions)

	// Conversation endpoints
	s.handle("GET /api/v1/conversations", s.handleListConversations)
	s.handle("POST /api/v1/conversations", s.handleCreateConversation)
	s.handle("GET /api/v1/conversations/{id}", s.handleGetConversation)
	s.handle("PUT /api/v1/conversations/{id}", s.handleUpdateConversation)
	s.handle("DELETE /api/v1/conversations/{id}", s.handleDeleteConversation)
	s.handle("GET /api/v1/conversations/{id}/messages", s.handleGetMessages)
	s.handle("POST /api/v1/conversations/{id}/messages", s.handleSendMessage)
}

// handle registers a route behind the auth middleware when auth is
// configured
func (s *Server) handle(pattern string, handler http.HandlerFunc) {
	if s.auth == nil {
		s.router.HandleFunc(pattern, handler)
		return
	}
	s.router.Handle(pattern, NewAuthMiddleware(s.auth).Authenticate(handler))
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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
