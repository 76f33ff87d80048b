package driven

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// AssetListOptions configures filtered asset listings
type AssetListOptions struct {
	Filter  domain.AssetFilter
	Sort    string           // declared asset column, default created_at
	Order   domain.SortOrder // default desc
	Page    int              // 1-based
	PerPage int              // entries per page; zero or negative means no limit
}

// AssetRepository handles local asset metadata persistence (PostgreSQL).
// Local metadata is the system of record for asset existence.
type AssetRepository interface {
	// Create persists a new asset record
	Create(ctx context.Context, asset *domain.Asset) error

	// Get retrieves an asset by ID, or domain.ErrAssetNotFound
	Get(ctx context.Context, id string) (*domain.Asset, error)

	// List returns a filtered, sorted page of assets and the total count
	List(ctx context.Context, opts AssetListOptions) ([]*domain.Asset, int, error)

	// Update mutates name, metadata and tags only; all other fields are
	// write-once
	Update(ctx context.Context, id string, update domain.AssetUpdate) (*domain.Asset, error)

	// Delete removes the local record, or domain.ErrAssetNotFound
	Delete(ctx context.Context, id string) error

	// SetProcessingState updates the processing flags after document
	// processing
	SetProcessingState(ctx context.Context, id string, processed bool, status domain.ProcessingStatus) error

	// ListNamesContaining returns up to limit asset names containing the
	// substring, in the store's natural order
	ListNamesContaining(ctx context.Context, substr string, limit int) ([]string, error)

	// SaveRelationship upserts a lineage edge. The same
	// (parent, transform name, transform digest) triple never creates a
	// second edge; an edge whose parent and child are the same asset is
	// rejected with domain.ErrInvalidInput.
	SaveRelationship(ctx context.Context, rel *domain.AssetRelationship) error

	// GetRelationships returns the lineage edges where the asset is the
	// parent
	GetRelationships(ctx context.Context, parentID string) ([]*domain.AssetRelationship, error)
}

// TextChunkStore handles text chunk persistence (PostgreSQL)
type TextChunkStore interface {
	// SaveBatch saves chunks in a transaction
	SaveBatch(ctx context.Context, chunks []*domain.TextChunk) error

	// GetByAsset retrieves all chunks for an asset ordered by chunk index
	GetByAsset(ctx context.Context, assetID string) ([]*domain.TextChunk, error)

	// DeleteByAsset removes all chunks for an asset
	DeleteByAsset(ctx context.Context, assetID string) error
}
