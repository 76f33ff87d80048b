package mocks

import (
	"context"
	"sync"
	"time"
)

// MockSuggestionCache is an in-memory implementation of SuggestionCache
// for testing. TTLs are recorded but never expire.
type MockSuggestionCache struct {
	mu      sync.RWMutex
	entries map[string][]string

	// TTLs records the TTL passed for each key
	TTLs map[string]time.Duration
}

// NewMockSuggestionCache creates a new MockSuggestionCache
func NewMockSuggestionCache() *MockSuggestionCache {
	return &MockSuggestionCache{
		entries: make(map[string][]string),
		TTLs:    make(map[string]time.Duration),
	}
}

func (m *MockSuggestionCache) Get(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names, ok := m.entries[prefix]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), names...), nil
}

func (m *MockSuggestionCache) Set(ctx context.Context, prefix string, names []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[prefix] = append([]string(nil), names...)
	m.TTLs[prefix] = ttl
	return nil
}
