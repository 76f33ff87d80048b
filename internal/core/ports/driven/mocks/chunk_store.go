package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// MockTextChunkStore is an in-memory implementation of TextChunkStore for
// testing
type MockTextChunkStore struct {
	mu      sync.RWMutex
	byAsset map[string][]*domain.TextChunk
}

// NewMockTextChunkStore creates a new MockTextChunkStore
func NewMockTextChunkStore() *MockTextChunkStore {
	return &MockTextChunkStore{
		byAsset: make(map[string][]*domain.TextChunk),
	}
}

func (m *MockTextChunkStore) SaveBatch(ctx context.Context, chunks []*domain.TextChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, chunk := range chunks {
		cp := *chunk
		m.byAsset[chunk.AssetID] = append(m.byAsset[chunk.AssetID], &cp)
	}
	return nil
}

func (m *MockTextChunkStore) GetByAsset(ctx context.Context, assetID string) ([]*domain.TextChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := make([]*domain.TextChunk, 0, len(m.byAsset[assetID]))
	for _, chunk := range m.byAsset[assetID] {
		cp := *chunk
		chunks = append(chunks, &cp)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (m *MockTextChunkStore) DeleteByAsset(ctx context.Context, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byAsset, assetID)
	return nil
}
