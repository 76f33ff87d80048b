package mocks

import (
	"context"
	"sync"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// MockChatService is a mock implementation of ChatService for testing
type MockChatService struct {
	mu       sync.Mutex
	reply    string
	failErr  error
	model    string

	// LastMessages is the message sequence of the most recent call
	LastMessages []domain.ChatMessage
	// Calls counts Complete invocations
	Calls int
}

// NewMockChatService creates a new MockChatService
func NewMockChatService() *MockChatService {
	return &MockChatService{
		reply: "mock reply",
		model: "mock-chat-model",
	}
}

// SetReply fixes the completion text
func (m *MockChatService) SetReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
}

// SetFailWith makes Complete fail with err until cleared
func (m *MockChatService) SetFailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MockChatService) Complete(ctx context.Context, messages []domain.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.LastMessages = append([]domain.ChatMessage(nil), messages...)
	if m.failErr != nil {
		return "", m.failErr
	}
	return m.reply, nil
}

func (m *MockChatService) Model() string {
	return m.model
}

func (m *MockChatService) Close() error {
	return nil
}
