package driven

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// PutAssetRequest describes a remote store write
type PutAssetRequest struct {
	Data      []byte
	Kind      domain.RemoteKind
	Embedding []float32
	Metadata  domain.StringMap
	Parents   []domain.ParentEdge
}

// AssetStore is the remote content-addressed store behind the gateway.
// All operations fail with domain.ErrStoreUnavailable when the connection
// is down and domain.ErrStoreProtocol on malformed responses.
type AssetStore interface {
	// PutAsset streams raw bytes to the store and returns the
	// store-assigned asset id
	PutAsset(ctx context.Context, req PutAssetRequest) (string, error)

	// GetAsset fetches asset metadata, and the raw bytes when includeData
	GetAsset(ctx context.Context, id string, includeData bool) (*domain.RemoteAsset, error)

	// VectorSearch returns up to k matches pre-sorted by the store in
	// descending score order. The gateway validates the ordering but
	// never re-sorts.
	VectorSearch(ctx context.Context, queryEmbedding []float32, k int, filter domain.StringMap) ([]domain.VectorMatch, error)

	// ListAssets is simple pass-through pagination, no filtering
	ListAssets(ctx context.Context, limit, offset int) ([]*domain.RemoteAsset, error)

	// CreateSnapshot groups assets under a namespace at a point in time
	CreateSnapshot(ctx context.Context, namespace string, assetIDs []string, metadata domain.StringMap) (string, error)

	// DeleteAsset requests removal of a stored asset
	DeleteAsset(ctx context.Context, id string) error

	// Ping checks store liveness
	Ping(ctx context.Context) error
}

// StoreManager owns the remote store connection lifecycle. The connected
// flag is single-writer: only Initialize and Close transition it; every
// other code path only reads it.
type StoreManager interface {
	// Initialize establishes the connection and probes liveness.
	// Failure leaves the manager disconnected without returning an error,
	// so the process can run degraded.
	Initialize(ctx context.Context)

	// Close tears down the connection
	Close() error

	// IsConnected reports whether remote calls may be attempted
	IsConnected() bool

	// Client returns the connected store, or domain.ErrStoreUnavailable
	Client() (AssetStore, error)
}
