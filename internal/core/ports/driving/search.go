package driving

import (
	"context"

	"github.com/lodestone-hq/lodestone-core/internal/core/domain"
)

// SearchService answers free-text queries with ranked, paginated assets.
// It prefers vector similarity and transparently falls back to lexical
// matching when the embedding provider or the remote store is degraded.
type SearchService interface {
	// Search runs the hybrid retrieval policy
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error)

	// VectorSearch returns raw remote matches for a query, bypassing the
	// lexical fallback
	VectorSearch(ctx context.Context, query string, k int, filter domain.StringMap) ([]domain.VectorMatch, error)

	// GetSuggestions returns up to 10 asset names containing the query
	// substring
	GetSuggestions(ctx context.Context, prefix string) ([]string, error)
}
