package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// MockAssetStore is an in-memory implementation of AssetStore for testing
type MockAssetStore struct {
	mu      sync.RWMutex
	assets  map[string]*domain.RemoteAsset
	nextID  int
	pingErr error

	// searchErr makes VectorSearch fail
	searchErr error
	// searchResults overrides the computed matches when set
	searchResults []domain.VectorMatch
	// putErr makes PutAsset fail
	putErr error
	// deleteErr makes DeleteAsset fail
	deleteErr error

	// SearchCalls counts VectorSearch invocations
	SearchCalls int
	// PutCalls counts PutAsset invocations
	PutCalls int
}

// NewMockAssetStore creates a new MockAssetStore
func NewMockAssetStore() *MockAssetStore {
	return &MockAssetStore{
		assets: make(map[string]*domain.RemoteAsset),
	}
}

// SetSearchError makes VectorSearch return err
func (m *MockAssetStore) SetSearchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}

// SetSearchResults fixes the VectorSearch response
func (m *MockAssetStore) SetSearchResults(matches []domain.VectorMatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchResults = matches
}

// SetPutError makes PutAsset return err
func (m *MockAssetStore) SetPutError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putErr = err
}

// SetDeleteError makes DeleteAsset return err
func (m *MockAssetStore) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// SetPingError makes Ping return err
func (m *MockAssetStore) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingErr = err
}

func (m *MockAssetStore) PutAsset(ctx context.Context, req driven.PutAssetRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.putErr != nil {
		return "", m.putErr
	}
	m.nextID++
	id := fmt.Sprintf("remote-%d", m.nextID)
	data := make([]byte, len(req.Data))
	copy(data, req.Data)
	m.assets[id] = &domain.RemoteAsset{
		ID:        id,
		Kind:      req.Kind,
		Size:      int64(len(req.Data)),
		CreatedAt: time.Now().UTC(),
		Metadata:  req.Metadata,
		Parents:   req.Parents,
		Data:      data,
	}
	return id, nil
}

func (m *MockAssetStore) GetAsset(ctx context.Context, id string, includeData bool) (*domain.RemoteAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	asset, ok := m.assets[id]
	if !ok {
		return nil, domain.ErrAssetNotFound
	}
	cp := *asset
	if !includeData {
		cp.Data = nil
	}
	return &cp, nil
}

func (m *MockAssetStore) VectorSearch(ctx context.Context, queryEmbedding []float32, k int, filter domain.StringMap) ([]domain.VectorMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchResults != nil {
		if len(m.searchResults) > k {
			return m.searchResults[:k], nil
		}
		return m.searchResults, nil
	}

	// Constant-score match over every stored asset, deterministic order
	var matches []domain.VectorMatch
	for id, asset := range m.assets {
		matches = append(matches, domain.VectorMatch{AssetID: id, Score: 0.5, Metadata: asset.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].AssetID < matches[j].AssetID })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MockAssetStore) ListAssets(ctx context.Context, limit, offset int) ([]*domain.RemoteAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	assets := make([]*domain.RemoteAsset, 0, end-offset)
	for _, id := range ids[offset:end] {
		cp := *m.assets[id]
		cp.Data = nil
		assets = append(assets, &cp)
	}
	return assets, nil
}

func (m *MockAssetStore) CreateSnapshot(ctx context.Context, namespace string, assetIDs []string, metadata domain.StringMap) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("snapshot-%d", m.nextID), nil
}

func (m *MockAssetStore) DeleteAsset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.assets[id]; !ok {
		return domain.ErrAssetNotFound
	}
	delete(m.assets, id)
	return nil
}

func (m *MockAssetStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingErr
}
