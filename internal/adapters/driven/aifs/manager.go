package aifs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StoreManager = (*Manager)(nil)

// Manager owns the store connection lifecycle. The connected flag is
// written only by Initialize and Close; everything else reads it, so no
// locking beyond the atomic is needed.
type Manager struct {
	client    *Client
	logger    *slog.Logger
	connected atomic.Bool
}

// NewManager creates a manager around a client for the given endpoint
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client: NewClient(cfg, logger),
		logger: logger,
	}
}

// Initialize connects and probes the store. A failure is logged and
// leaves the manager disconnected; the process runs degraded rather than
// refusing to start.
func (m *Manager) Initialize(ctx context.Context) {
	if err := m.client.Connect(ctx); err != nil {
		m.logger.Warn("aifs store unavailable, continuing without it", "error", err)
		m.connected.Store(false)
		return
	}
	m.connected.Store(true)
}

// Close tears down the connection
func (m *Manager) Close() error {
	m.connected.Store(false)
	return m.client.Close()
}

// IsConnected reports whether remote calls may be attempted. The flag
// follows the client state so a mid-flight transport failure is observed
// on the next check.
func (m *Manager) IsConnected() bool {
	return m.connected.Load() && m.client.State() == StateConnected
}

// Client returns the connected store, failing fast when disconnected
func (m *Manager) Client() (driven.AssetStore, error) {
	if !m.IsConnected() {
		return nil, domain.ErrStoreUnavailable
	}
	return m.client, nil
}
