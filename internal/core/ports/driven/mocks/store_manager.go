package mocks

import (
	"context"
	"sync/atomic"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// MockStoreManager is a mock implementation of StoreManager for testing
type MockStoreManager struct {
	Store     *MockAssetStore
	connected atomic.Bool
}

// NewMockStoreManager creates a connected manager around a fresh store
func NewMockStoreManager() *MockStoreManager {
	m := &MockStoreManager{Store: NewMockAssetStore()}
	m.connected.Store(true)
	return m
}

// NewDisconnectedStoreManager creates a manager that reports disconnected
func NewDisconnectedStoreManager() *MockStoreManager {
	return &MockStoreManager{Store: NewMockAssetStore()}
}

// SetConnected flips the connection flag
func (m *MockStoreManager) SetConnected(connected bool) {
	m.connected.Store(connected)
}

func (m *MockStoreManager) Initialize(ctx context.Context) {
	m.connected.Store(true)
}

func (m *MockStoreManager) Close() error {
	m.connected.Store(false)
	return nil
}

func (m *MockStoreManager) IsConnected() bool {
	return m.connected.Load()
}

func (m *MockStoreManager) Client() (driven.AssetStore, error) {
	if !m.connected.Load() {
		return nil, domain.ErrStoreUnavailable
	}
	return m.Store, nil
}
