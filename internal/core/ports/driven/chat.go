package driven

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// ChatOptions configures a text-generation call
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatService is the opaque external text-generation service used by the
// RAG orchestrator
type ChatService interface {
	// Complete generates a reply to the message sequence
	Complete(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (string, error)

	// Model returns the default model name
	Model() string

	// Close releases resources held by the chat service
	Close() error
}
