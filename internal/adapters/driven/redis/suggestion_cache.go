package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lodestone-hq/lodestone-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SuggestionCache = (*SuggestionCache)(nil)

// suggestionPrefix namespaces autocomplete keys in Redis
const suggestionPrefix = "suggest:"

// SuggestionCache implements driven.SuggestionCache using Redis.
// Entries expire via Redis TTL; a miss is (nil, nil), never an error.
type SuggestionCache struct {
	client *redis.Client
}

// NewSuggestionCache creates a new Redis-backed SuggestionCache
func NewSuggestionCache(client *redis.Client) *SuggestionCache {
	return &SuggestionCache{client: client}
}

// Get returns cached suggestions for a query prefix, or nil on miss
func (c *SuggestionCache) Get(ctx context.Context, prefix string) ([]string, error) {
	data, err := c.client.Get(ctx, cacheKey(prefix)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suggestions: %w", err)
	}
	return names, nil
}

// Set caches suggestions for a query prefix with a TTL
func (c *SuggestionCache) Set(ctx context.Context, prefix string, names []string, ttl time.Duration) error {
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(prefix), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache suggestions: %w", err)
	}
	return nil
}

// cacheKey namespaces the raw prefix; matching is case-sensitive so
// casing variants get their own entries
func cacheKey(prefix string) string {
	return suggestionPrefix + prefix
}
