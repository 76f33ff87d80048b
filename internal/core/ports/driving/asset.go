package driving

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// CreateAssetRequest carries an upload into the asset creation pipeline
type CreateAssetRequest struct {
	Name     string
	Type     domain.AssetType
	MimeType string
	Content  []byte
	Tags     []string
	Metadata domain.Metadata
	Parents  []domain.ParentEdge
	// GenerateEmbedding requests a best-effort embedding for text content
	GenerateEmbedding bool
	CreatedBy         string
}

// AssetDownload is the payload returned when downloading asset bytes
type AssetDownload struct {
	Content  []byte
	Name     string
	MimeType string
}

// AssetList is a paginated asset listing
type AssetList struct {
	Assets  []*domain.Asset `json:"assets"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Pages   int             `json:"pages"`
}

// AssetService manages asset records and the creation pipeline
type AssetService interface {
	// Create runs the upload pipeline: validate, hash, best-effort embed,
	// persist locally, then best-effort remote store write
	Create(ctx context.Context, req CreateAssetRequest) (*domain.Asset, error)

	// Get retrieves an asset by ID
	Get(ctx context.Context, id string) (*domain.Asset, error)

	// List returns a filtered, paginated asset listing
	List(ctx context.Context, opts driven.AssetListOptions) (*AssetList, error)

	// Update mutates name, metadata and tags only
	Update(ctx context.Context, id string, update domain.AssetUpdate) (*domain.Asset, error)

	// Delete hard-deletes the local record and best-effort requests
	// remote deletion
	Delete(ctx context.Context, id string) error

	// Download fetches asset bytes from the remote store
	Download(ctx context.Context, id string) (*AssetDownload, error)
}
