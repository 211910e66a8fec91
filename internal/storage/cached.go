package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/yourorg/course-template-service/internal/model"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// MetadataCache is the subset of the redis client used for file metadata.
// *redis.Client satisfies it.
type MetadataCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStorage keeps file metadata lookups in Redis so repeated archive
// resolution does not hit the backing store
type CachedStorage struct {
	Storage
	redisClient MetadataCache
	ttl         time.Duration
	prefix      string
	logger      *zap.Logger
}

// NewCachedStorage wraps a Storage with a Redis metadata cache
func NewCachedStorage(inner Storage, redisClient MetadataCache, ttl time.Duration, logger *zap.Logger) *CachedStorage {
	return &CachedStorage{
		Storage:     inner,
		redisClient: redisClient,
		ttl:         ttl,
		prefix:      "coursetemplate:file:",
		logger:      logger,
	}
}

func (c *CachedStorage) cacheKey(hash string) string {
	return c.prefix + hash
}

// Store saves the file and primes the cache
func (c *CachedStorage) Store(ctx context.Context, ref FileRef, r io.Reader, contentType string) (*StoredFile, error) {
	stored, err := c.Storage.Store(ctx, ref, r, contentType)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, stored)
	return stored, nil
}

// Stat returns cached metadata or falls back to the backing store
func (c *CachedStorage) Stat(ctx context.Context, hash string) (*StoredFile, error) {
	cached, err := c.redisClient.Get(ctx, c.cacheKey(hash)).Bytes()
	if err == nil {
		var stored StoredFile
		if jsonErr := json.Unmarshal(cached, &stored); jsonErr == nil {
			c.logger.Debug("File cache hit", zap.String("hash", hash))
			return &stored, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("File cache lookup failed", zap.Error(err), zap.String("hash", hash))
	}

	stored, err := c.Storage.Stat(ctx, hash)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, stored)
	return stored, nil
}

// Open resolves metadata through the cache and streams the content from the
// backing store. A stale cache entry for a removed file is evicted.
func (c *CachedStorage) Open(ctx context.Context, hash string) (io.ReadCloser, *StoredFile, error) {
	opener, ok := c.Storage.(ContentOpener)
	if !ok {
		return c.Storage.Open(ctx, hash)
	}

	stored, err := c.Stat(ctx, hash)
	if err != nil {
		return nil, nil, err
	}

	content, err := opener.OpenContent(ctx, hash)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.forget(ctx, hash)
		}
		return nil, nil, err
	}

	return content, stored, nil
}

// Delete removes the file and its cache entry
func (c *CachedStorage) Delete(ctx context.Context, hash string) error {
	c.forget(ctx, hash)
	return c.Storage.Delete(ctx, hash)
}

func (c *CachedStorage) forget(ctx context.Context, hash string) {
	if err := c.redisClient.Del(ctx, c.cacheKey(hash)).Err(); err != nil {
		c.logger.Warn("Failed to evict file cache entry", zap.Error(err), zap.String("hash", hash))
	}
}

func (c *CachedStorage) remember(ctx context.Context, stored *StoredFile) {
	data, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if err := c.redisClient.Set(ctx, c.cacheKey(stored.Hash), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache file metadata", zap.Error(err), zap.String("hash", stored.Hash))
	}
}
