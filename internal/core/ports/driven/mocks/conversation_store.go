package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// MockConversationStore is an in-memory implementation of
// ConversationStore for testing
type MockConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	messages      map[string][]*domain.Message // by conversation ID
	sources       map[string][]*domain.MessageSource
}

// NewMockConversationStore creates a new MockConversationStore
func NewMockConversationStore() *MockConversationStore {
	return &MockConversationStore{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string][]*domain.Message),
		sources:       make(map[string][]*domain.MessageSource),
	}
}

func (m *MockConversationStore) Create(ctx context.Context, conv *domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *conv
	m.conversations[conv.ID] = &cp
	return nil
}

func (m *MockConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *MockConversationStore) List(ctx context.Context, search string, page, perPage int) ([]*domain.Conversation, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Conversation
	needle := strings.ToLower(search)
	for _, conv := range m.conversations {
		if search == "" || strings.Contains(strings.ToLower(conv.Title), needle) {
			matched = append(matched, conv)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start, end := domain.PageBounds(page, perPage, total)
	result := make([]*domain.Conversation, 0, end-start)
	for _, conv := range matched[start:end] {
		cp := *conv
		result = append(result, &cp)
	}
	return result, total, nil
}

func (m *MockConversationStore) Update(ctx context.Context, id string, update domain.ConversationUpdate) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	if update.Title != nil {
		conv.Title = *update.Title
	}
	if update.Settings != nil {
		conv.Settings = update.Settings
	}
	conv.UpdatedAt = time.Now().UTC()
	cp := *conv
	return &cp, nil
}

func (m *MockConversationStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return domain.ErrConversationNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *MockConversationStore) AddMessage(ctx context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return domain.ErrConversationNotFound
	}
	cp := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &cp)
	if conv := m.conversations[msg.ConversationID]; conv != nil {
		conv.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MockConversationStore) GetMessages(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	result := make([]*domain.Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockConversationStore) AddSources(ctx context.Context, sources []*domain.MessageSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, src := range sources {
		cp := *src
		m.sources[src.MessageID] = append(m.sources[src.MessageID], &cp)
	}
	return nil
}

// SourcesFor returns recorded attributions for a message
func (m *MockConversationStore) SourcesFor(messageID string) []*domain.MessageSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sources[messageID]
}
