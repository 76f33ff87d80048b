package runtime

import (
	"sync"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// Services holds references to dynamically configurable AI services.
// Embedding and chat providers can be swapped at runtime; either may be
// nil when unconfigured or degraded. Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	embeddingService driven.EmbeddingService
	chatService      driven.ChatService
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// ChatService returns the current chat service (may be nil)
func (s *Services) ChatService() driven.ChatService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatService
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetChatService updates the chat service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetChatService(svc driven.ChatService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatService != nil {
		_ = s.chatService.Close()
	}

	s.chatService = svc
	s.config.SetChatAvailable(svc != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.chatService != nil {
		_ = s.chatService.Close()
		s.chatService = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetChatAvailable(false)

	return nil
}
