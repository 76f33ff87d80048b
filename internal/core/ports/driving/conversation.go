package driving

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// ConversationList is a paginated conversation listing
type ConversationList struct {
	Conversations []*domain.Conversation `json:"conversations"`
	Total         int                    `json:"total"`
	Page          int                    `json:"page"`
	PerPage       int                    `json:"per_page"`
	Pages         int                    `json:"pages"`
}

// ConversationService manages RAG chat sessions
type ConversationService interface {
	// Create starts a new conversation
	Create(ctx context.Context, title string, settings domain.Metadata, createdBy string) (*domain.Conversation, error)

	// Get retrieves a conversation by ID
	Get(ctx context.Context, id string) (*domain.Conversation, error)

	// List returns conversations matching the optional title search
	List(ctx context.Context, search string, page, perPage int) (*ConversationList, error)

	// Update mutates title and settings
	Update(ctx context.Context, id string, update domain.ConversationUpdate) (*domain.Conversation, error)

	// Delete removes the conversation and its messages
	Delete(ctx context.Context, id string) error

	// GetMessages returns a conversation's messages in creation order
	GetMessages(ctx context.Context, id string, limit int) ([]*domain.Message, error)
}
