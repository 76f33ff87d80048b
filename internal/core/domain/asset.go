package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssetType classifies an asset record
type AssetType string

const (
	AssetTypeFile       AssetType = "file"
	AssetTypeFolder     AssetType = "folder"
	AssetTypeCollection AssetType = "collection"
)

// Valid reports whether the asset type is one of the known values
func (t AssetType) Valid() bool {
	switch t {
	case AssetTypeFile, AssetTypeFolder, AssetTypeCollection:
		return true
	}
	return false
}

// ProcessingStatus tracks the document-processing lifecycle of an asset
type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingRunning   ProcessingStatus = "processing"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

// Asset is a content-addressed unit of stored data with metadata and an
// optional embedding. ID and ContentHash are assigned at creation and
// never rewritten.
type Asset struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Type             AssetType        `json:"type"`
	MimeType         string           `json:"mime_type,omitempty"`
	Size             int64            `json:"size"`
	ContentHash      string           `json:"content_hash"` // sha256 hex of raw bytes
	Embedding        []float32        `json:"embedding,omitempty"`
	Tags             []string         `json:"tags,omitempty"` // insertion order preserved
	Metadata         Metadata         `json:"metadata,omitempty"`
	IsProcessed      bool             `json:"is_processed"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	CreatedBy        string           `json:"created_by,omitempty"`
}

// HasTag reports whether the asset carries the given tag
func (a *Asset) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AssetUpdate carries the only fields an update may change.
// Nil means "leave unchanged".
type AssetUpdate struct {
	Name     *string  `json:"name,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// RelationshipType classifies a lineage edge between two assets
type RelationshipType string

const (
	RelationshipDerived     RelationshipType = "derived"
	RelationshipTransformed RelationshipType = "transformed"
	RelationshipContains    RelationshipType = "contains"
)

// Valid reports whether the relationship type is one of the known values
func (t RelationshipType) Valid() bool {
	switch t {
	case RelationshipDerived, RelationshipTransformed, RelationshipContains:
		return true
	}
	return false
}

// AssetRelationship is a directed lineage edge. Reprocessing the same
// parent with the same transform digest must not create a second edge.
type AssetRelationship struct {
	ID              string           `json:"id"`
	ParentID        string           `json:"parent_id"`
	ChildID         string           `json:"child_id"`
	Type            RelationshipType `json:"relationship_type"`
	TransformName   string           `json:"transform_name,omitempty"`
	TransformDigest string           `json:"transform_digest,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// TextChunk is one contiguous slice of an asset's extracted text.
// Chunks ordered by Index partition the text, overlapping only by the
// configured chunk overlap.
type TextChunk struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Content   string    `json:"content"`
	Index     int       `json:"chunk_index"`
	StartChar int       `json:"start_char"` // half-open [StartChar, EndChar)
	EndChar   int       `json:"end_char"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RemoteKind is the remote store's asset-kind vocabulary
type RemoteKind string

const (
	RemoteKindBlob     RemoteKind = "blob"
	RemoteKindTensor   RemoteKind = "tensor"
	RemoteKindEmbed    RemoteKind = "embed"
	RemoteKindArtifact RemoteKind = "artifact"
)

// RemoteAsset is the gateway-side view of a stored asset. It is owned by
// the store; local Asset records reference it via content hash.
type RemoteAsset struct {
	ID        string       `json:"id"`
	Kind      RemoteKind   `json:"kind"`
	Size      int64        `json:"size"`
	CreatedAt time.Time    `json:"created_at"`
	Metadata  StringMap    `json:"metadata,omitempty"`
	Parents   []ParentEdge `json:"parents,omitempty"`
	Children  []string     `json:"children,omitempty"`
	Data      []byte       `json:"-"`
}

// ParentEdge carries lineage information on the wire
type ParentEdge struct {
	AssetID         string `json:"asset_id"`
	TransformName   string `json:"transform_name"`
	TransformDigest string `json:"transform_digest"`
}

// StringMap is string-keyed string-valued metadata in wire form
type StringMap map[string]string

// VectorMatch is a single remote vector-search hit
type VectorMatch struct {
	AssetID  string    `json:"asset_id"`
	Score    float32   `json:"score"`
	Metadata StringMap `json:"metadata,omitempty"`
}

// NewAssetID returns a fresh asset identifier
func NewAssetID() string {
	return uuid.NewString()
}
