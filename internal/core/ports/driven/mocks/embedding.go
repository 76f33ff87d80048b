package mocks

import (
	"context"
	"hash/fnv"
	"sync"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for
// testing. Embeddings are deterministic per input text.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failErr    error

	// Calls counts single-text embedding requests
	Calls int
	// BatchCalls counts batch embedding requests
	BatchCalls int
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 384,
		model:      "mock-embedding-model",
	}
}

// SetFailWith makes every embedding call fail with err until cleared
func (m *MockEmbeddingService) SetFailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *MockEmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.failErr != nil {
		return nil, m.failErr
	}
	return m.generate(text), nil
}

func (m *MockEmbeddingService) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchCalls++
	if m.failErr != nil {
		return nil, m.failErr
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generate(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// generate produces a deterministic embedding from the text hash
func (m *MockEmbeddingService) generate(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}
