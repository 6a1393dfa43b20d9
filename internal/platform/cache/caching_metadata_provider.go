// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"exposure_backend/internal/feature/metadata/domain/entity"
	"exposure_backend/internal/feature/metadata/usecase"
	scanentity "exposure_backend/internal/feature/scan/domain/entity"
)

// CachingMetadataProvider decorates a RemoteProvider with Redis caching.
// Only successful lookups are cached; failures always reach the inner provider.
type CachingMetadataProvider struct {
	inner     usecase.RemoteProvider
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.RemoteProvider = (*CachingMetadataProvider)(nil)

// NewCachingMetadataProvider decorates a RemoteProvider with Redis caching.
// If ttl is 0, it defaults to 6 hours. If namespace is empty, it uses "metadata".
func NewCachingMetadataProvider(rdb *redis.Client, ttl time.Duration, inner usecase.RemoteProvider, namespace string) *CachingMetadataProvider {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	if namespace == "" {
		namespace = "metadata"
	}
	return &CachingMetadataProvider{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Name returns the inner provider's name.
func (c *CachingMetadataProvider) Name() string {
	return c.inner.Name()
}

// Fetch retrieves metadata, checking cache first then falling back to the inner provider.
func (c *CachingMetadataProvider) Fetch(ctx context.Context, ref entity.Reference) (scanentity.VideoMetadata, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.Fetch(ctx, ref)
	}

	key := c.cacheKey(ref)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out scanentity.VideoMetadata
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to the remote provider
	out, err := c.inner.Fetch(ctx, ref)
	if err != nil {
		return scanentity.VideoMetadata{}, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Debug("failed to cache metadata", "key", key, "error", err)
		}
	}

	return out, nil
}

// cacheKey generates a cache key for a specific provider and reference.
func (c *CachingMetadataProvider) cacheKey(ref entity.Reference) string {
	return fmt.Sprintf("%s:%s:%s",
		c.namespace,
		safe(c.inner.Name()),
		safe(ref.Key()),
	)
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
