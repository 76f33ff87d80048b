package driven

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// ConversationStore handles conversation persistence (PostgreSQL)
type ConversationStore interface {
	// Create persists a new conversation
	Create(ctx context.Context, conv *domain.Conversation) error

	// Get retrieves a conversation by ID, or domain.ErrConversationNotFound
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// List returns conversations matching the optional title search,
	// newest first, with the total count
	List(ctx context.Context, search string, page, perPage int) ([]*domain.Conversation, int, error)

	// Update mutates title and settings
	Update(ctx context.Context, id string, update domain.ConversationUpdate) (*domain.Conversation, error)

	// Delete removes the conversation and its messages
	Delete(ctx context.Context, id string) error

	// AddMessage appends a message to a conversation
	AddMessage(ctx context.Context, msg *domain.Message) error

	// GetMessages returns a conversation's messages in creation order
	GetMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error)

	// AddSources records source attributions for an assistant message
	AddSources(ctx context.Context, sources []*domain.MessageSource) error
}
