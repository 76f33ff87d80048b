package driven

import (
	"context"
)

// EmbeddingService generates text embeddings.
// Implementations truncate over-long input at their character limit
// instead of failing, so search stays available for any query.
type EmbeddingService interface {
	// GenerateEmbedding generates an embedding for a single text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddingsBatch generates embeddings for multiple texts,
	// preserving input order
	GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// Close releases resources held by the embedding service
	Close() error
}
