package domain

import "sync"

// RuntimeConfig tracks which collaborators are available at runtime.
// Store connectivity is owned by the gateway manager; AI capability flags
// are updated when services are (re)configured. Thread-safe.
type RuntimeConfig struct {
	mu sync.RWMutex

	embeddingAvailable bool
	chatAvailable      bool
}

// NewRuntimeConfig creates a new RuntimeConfig
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{}
}

// EmbeddingAvailable returns whether the embedding provider is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// ChatAvailable returns whether the text-generation service is available
func (c *RuntimeConfig) ChatAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chatAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetChatAvailable updates the chat availability flag
func (c *RuntimeConfig) SetChatAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatAvailable = available
}

// CanDoSemanticSearch returns true if the vector-search path is attemptable
func (c *RuntimeConfig) CanDoSemanticSearch() bool {
	return c.EmbeddingAvailable()
}
