package driven

import (
	"context"
	"time"
)

// SuggestionCache stores recent autocomplete results (Redis).
// A cache miss is a nil slice, never an error path the caller must branch
// on: implementations return (nil, nil) when the key is absent.
type SuggestionCache interface {
	// Get returns cached suggestions for a query prefix, or nil on miss
	Get(ctx context.Context, prefix string) ([]string, error)

	// Set caches suggestions for a query prefix with a TTL
	Set(ctx context.Context, prefix string, names []string, ttl time.Duration) error
}
