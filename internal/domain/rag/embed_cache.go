package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"talkdoc/internal/metrics"
)

// VectorCache 向量缓存，key 由 CachedEmbedder 生成
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
}

// LRUVectorCache 进程内 LRU
type LRUVectorCache struct {
	cache *lru.Cache[string, []float32]
}

// NewLRUVectorCache size 为最大条目数
func NewLRUVectorCache(size int) (*LRUVectorCache, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init vector cache: %w", err)
	}
	return &LRUVectorCache{cache: c}, nil
}

func (c *LRUVectorCache) Get(_ context.Context, key string) ([]float32, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cloneVector(v), true
}

func (c *LRUVectorCache) Set(_ context.Context, key string, vector []float32) {
	c.cache.Add(key, cloneVector(vector))
}

// Len 当前条目数
func (c *LRUVectorCache) Len() int { return c.cache.Len() }

// TieredVectorCache 依次查询各级缓存，命中后回填更靠前的层
type TieredVectorCache []VectorCache

func (t TieredVectorCache) Get(ctx context.Context, key string) ([]float32, bool) {
	for i, c := range t {
		if v, ok := c.Get(ctx, key); ok {
			for _, upper := range t[:i] {
				upper.Set(ctx, key, v)
			}
			return v, true
		}
	}
	return nil, false
}

func (t TieredVectorCache) Set(ctx context.Context, key string, vector []float32) {
	for _, c := range t {
		c.Set(ctx, key, vector)
	}
}

// CachedEmbedder 带缓存的 embedder。批内重复文本只请求一次。
type CachedEmbedder struct {
	inner   Embedder
	cache   VectorCache
	metrics *metrics.Metrics
}

// NewCachedEmbedder cache 为 nil 时直接透传
func NewCachedEmbedder(inner Embedder, cache VectorCache, m *metrics.Metrics) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache, metrics: m}
}

func (c *CachedEmbedder) Model() string { return c.inner.Model() }

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cache == nil {
		return c.inner.Embed(ctx, texts)
	}

	out := make([][]float32, len(texts))
	pending := make(map[string][]int)
	var missing []string
	for i, text := range texts {
		if v, ok := c.cache.Get(ctx, c.key(text)); ok {
			c.metrics.ObserveCacheLookup(true)
			out[i] = v
			continue
		}
		c.metrics.ObserveCacheLookup(false)
		if _, seen := pending[text]; !seen {
			missing = append(missing, text)
		}
		pending[text] = append(pending[text], i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("%s: got %d vectors for %d texts: %w", c.Model(), len(vectors), len(missing), ErrEmbeddingCount)
	}
	for j, text := range missing {
		c.cache.Set(ctx, c.key(text), vectors[j])
		for _, i := range pending[text] {
			out[i] = cloneVector(vectors[j])
		}
	}
	return out, nil
}

// key = model + sha256(text)
func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.inner.Model() + ":" + hex.EncodeToString(sum[:])
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
