package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxislabs/foresight/internal/models"
)

// SuggestionCache stores generated suggestion sets keyed by the salient
// features of the context that produced them. Two contexts with the same
// salient features replay the same suggestions until the entry expires.
type SuggestionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSuggestionCache creates a suggestion cache with the given TTL
func NewSuggestionCache(client *redis.Client, ttl time.Duration) *SuggestionCache {
	return &SuggestionCache{
		client: client,
		ttl:    ttl,
	}
}

// Key derives the cache key from the context's salient features. File and
// error details beyond presence are deliberately excluded so that near
// identical contexts share an entry.
func (c *SuggestionCache) Key(sctx *models.Context) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%t|%t",
		sctx.UserID,
		sctx.ProjectID,
		sctx.HourOfDay(),
		sctx.Error,
		sctx.CurrentFile != "",
	)
	return "foresight:suggestions:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached suggestion set for the context, or nil on a miss.
// Redis errors are treated as misses so a cache outage never blocks
// suggestion generation.
func (c *SuggestionCache) Get(ctx context.Context, sctx *models.Context) []*models.Suggestion {
	if c.client == nil {
		return nil
	}

	data, err := c.client.Get(ctx, c.Key(sctx)).Bytes()
	if err != nil {
		return nil
	}

	var suggestions []*models.Suggestion
	if err := json.Unmarshal(data, &suggestions); err != nil {
		return nil
	}
	return suggestions
}

// Set stores the suggestion set for the context. Errors are returned for
// logging but callers treat the cache as best effort.
func (c *SuggestionCache) Set(ctx context.Context, sctx *models.Context, suggestions []*models.Suggestion) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}

	if err := c.client.Set(ctx, c.Key(sctx), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache suggestions: %w", err)
	}
	return nil
}

// Invalidate removes the cached entry for the context
func (c *SuggestionCache) Invalidate(ctx context.Context, sctx *models.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.Key(sctx)).Err()
}

// HealthCheck verifies the Redis connection
func (c *SuggestionCache) HealthCheck(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	return c.client.Ping(ctx).Err()
}
