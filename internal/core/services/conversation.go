package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driving"
)

// Ensure conversationService implements ConversationService
var _ driving.ConversationService = (*conversationService)(nil)

// conversationService implements conversation CRUD
type conversationService struct {
	store  driven.ConversationStore
	logger *slog.Logger
}

// NewConversationService creates a new ConversationService
func NewConversationService(store driven.ConversationStore, logger *slog.Logger) driving.ConversationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &conversationService{store: store, logger: logger}
}

// Create starts a new conversation
func (s *conversationService) Create(ctx context.Context, title string, settings domain.Metadata, createdBy string) (*domain.Conversation, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Settings:  settings,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: createdBy,
	}
	if err := s.store.Create(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.Info("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Get retrieves a conversation by ID
func (s *conversationService) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	return s.store.Get(ctx, id)
}

// List returns conversations matching the optional title search
func (s *conversationService) List(ctx context.Context, search string, page, perPage int) (*driving.ConversationList, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	conversations, total, err := s.store.List(ctx, search, page, perPage)
	if err != nil {
		return nil, err
	}
	return &driving.ConversationList{
		Conversations: conversations,
		Total:         total,
		Page:          page,
		PerPage:       perPage,
		Pages:         domain.PageCount(total, perPage),
	}, nil
}

// Update mutates title and settings
func (s *conversationService) Update(ctx context.Context, id string, update domain.ConversationUpdate) (*domain.Conversation, error) {
	return s.store.Update(ctx, id, update)
}

// Delete removes the conversation and its messages
func (s *conversationService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// GetMessages returns a conversation's messages in creation order
func (s *conversationService) GetMessages(ctx context.Context, id string, limit int) ([]*domain.Message, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetMessages(ctx, id, limit)
}
