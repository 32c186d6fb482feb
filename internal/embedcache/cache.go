// Package embedcache memoizes embedding vectors in front of an ai.IEmbedder.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/nixai/internal/ai"
	"go.uber.org/zap"
)

type Stats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

type Cache struct {
	next   ai.IEmbedder
	cache  *expirable.LRU[string, []float32]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Wrap returns e unchanged when size or ttl is not positive.
func Wrap(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return New(e, size, ttl)
}

func New(e ai.IEmbedder, size int, ttl time.Duration) *Cache {
	return &Cache{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *Cache) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := cacheKey(c.next.ModelName(), taskType, text)
	if cached, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.String("task_type", taskType))
		return cloneEmbedding(cached), nil
	}
	c.misses.Add(1)
	res, err := c.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneEmbedding(res))
	return res, nil
}

func (c *Cache) ModelName() string {
	return c.next.ModelName()
}

func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Len: c.cache.Len()}
}

func cacheKey(modelName, taskType, text string) string {
	sum := sha256.Sum256([]byte(text))
	return modelName + "|" + taskType + "|" + hex.EncodeToString(sum[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
