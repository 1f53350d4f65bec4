package redisdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	applog "talkdoc/internal/platform/log"
)

// EmbeddingCache Redis 向量缓存，多实例共享。实现 rag.VectorCache。
type EmbeddingCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewEmbeddingCache ttlSeconds <= 0 时默认 24 小时
func NewEmbeddingCache(rdb *redis.Client, ttlSeconds int) *EmbeddingCache {
	ttl := 24 * time.Hour
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &EmbeddingCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "talkdoc:emb:",
	}
}

// Get 未命中或 Redis 异常都视为 miss
func (c *EmbeddingCache) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			applog.Warn("[RAG/Cache] Redis get failed", "key", key, "error", err)
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 {
		applog.Warn("[RAG/Cache] Dropping malformed cached vector", "key", key, "error", err)
		c.redis.Del(ctx, c.prefix+key)
		return nil, false
	}
	return vec, true
}

// Set 写入失败只记日志
func (c *EmbeddingCache) Set(ctx context.Context, key string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		applog.Warn("[RAG/Cache] Redis set failed", "key", key, "error", err)
	}
}

// Purge 清除全部向量缓存，返回删除的 key 数
func (c *EmbeddingCache) Purge(ctx context.Context) (int, error) {
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan embedding cache: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("purge embedding cache: %w", err)
	}
	applog.Info("[RAG/Cache] Purged", "keys_deleted", len(keys))
	return len(keys), nil
}
