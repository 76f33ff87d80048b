package driving

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// ProcessDocumentRequest configures document processing for an asset
type ProcessDocumentRequest struct {
	AssetID        string
	ChunkSize      int // characters per chunk, 0 for the configured default
	ChunkOverlap   int // overlapping characters between chunks
	ForceReprocess bool
}

// ProcessDocumentResult reports the outcome of document processing
type ProcessDocumentResult struct {
	ProcessingID  string `json:"processing_id"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
}

// RAGService grounds chat replies in retrieved asset content
type RAGService interface {
	// ProcessDocument chunks an asset's text, embeds the chunks
	// best-effort and stores them for retrieval
	ProcessDocument(ctx context.Context, req ProcessDocumentRequest) (*ProcessDocumentResult, error)

	// Chat answers a query grounded in retrieved context, persisting the
	// exchange on the conversation
	Chat(ctx context.Context, query string, conversationID string, contextAssets []string) (*domain.ChatTurn, error)
}
