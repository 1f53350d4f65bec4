package bootstrap

import (
	"context"
	"fmt"
	"time"

	"talkdoc/internal/app/chat"
	redisdb "talkdoc/internal/db/redis"
	"talkdoc/internal/domain/rag"
	"talkdoc/internal/domain/retrieval"
	"talkdoc/internal/metrics"
	"talkdoc/internal/platform/config"
	applog "talkdoc/internal/platform/log"
	"talkdoc/internal/provider"
)

// ChatComponents 组装好的服务及需要在退出时释放的资源
type ChatComponents struct {
	Service *chat.Service
	closers []func() error
}

// Close 释放外部连接
func (c *ChatComponents) Close() {
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			applog.Warn("[Bootstrap] Close failed", "error", err)
		}
	}
}

// BuildChatService 组装检索核心、向量化、缓存与 LLM 协作组件
func BuildChatService(ctx context.Context, cfg *config.AppConfig, providers *provider.Registry, m *metrics.Metrics) (*ChatComponents, error) {
	ragCfg := &cfg.RAG
	out := &ChatComponents{}

	llm, err := providers.Get(cfg.LLM.Provider)
	if err != nil {
		return nil, err
	}

	cache, err := buildVectorCache(ctx, cfg, out)
	if err != nil {
		return nil, err
	}

	embedders := rag.NewLanguageEmbedder(ragCfg.ModelTable(), ragCfg.DefaultEmbeddingModel, func(model string) rag.Embedder {
		var e rag.Embedder = rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
			BaseURL: ragCfg.EmbeddingBaseURL,
			APIKey:  ragCfg.EmbeddingAPIKey,
			Model:   model,
			Dims:    ragCfg.EmbeddingDims,
			Metrics: m,
		})
		if cache != nil {
			e = rag.NewCachedEmbedder(e, cache, m)
		}
		applog.Infof("✅ Embedder ready (model: %s, cached: %t)", model, cache != nil)
		return e
	})

	catalog := retrieval.NewDocumentCatalog()
	chunks := retrieval.NewChunkStore()
	registry := retrieval.NewIndexRegistry()
	coordinator := retrieval.NewCoordinator(catalog, chunks, registry, retrieval.CoordinatorConfig{
		FallbackLanguage: ragCfg.FallbackLanguage,
		DefaultTopK:      ragCfg.DefaultTopK,
		MaxParallel:      ragCfg.MaxParallel,
	})

	parsers := rag.NewParserRegistry()
	applog.Infof("✅ Parser registry initialized (types: %s)", parsers.SupportedTypes())

	out.Service = chat.New(chat.Options{
		Catalog:            catalog,
		Chunks:             chunks,
		Registry:           registry,
		Coordinator:        coordinator,
		Ingestor:           retrieval.NewIngestor(catalog, chunks, registry),
		Parsers:            parsers,
		Chunker:            rag.NewChunker(ragCfg.ChunkSize, ragCfg.ChunkOverlap),
		Detector:           rag.NewWhatlangDetector(),
		Embedder:           embedders,
		Answerer:           rag.NewAnswerer(llm, cfg.LLM.Model),
		Translator:         rag.NewLLMTranslator(llm, cfg.LLM.Model, m),
		Metrics:            m,
		MaxFileBytes:       ragCfg.MaxFileBytes(),
		LanguageSampleSize: ragCfg.LanguageSampleSize,
		TranslateParallel:  ragCfg.MaxParallel,
	})

	applog.Infof("✅ Retrieval core ready (fallback: %q, top_k: %d, chunk: %d/%d)",
		ragCfg.FallbackLanguage, ragCfg.DefaultTopK, ragCfg.ChunkSize, ragCfg.ChunkOverlap)
	return out, nil
}

// buildVectorCache 进程内 LRU 在前，配置了 Redis 时追加共享层。都未启用时返回 nil。
func buildVectorCache(ctx context.Context, cfg *config.AppConfig, out *ChatComponents) (rag.VectorCache, error) {
	var tiers rag.TieredVectorCache

	if cfg.RAG.HasCache() {
		lru, err := rag.NewLRUVectorCache(cfg.RAG.EmbeddingCacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding lru cache: %w", err)
		}
		tiers = append(tiers, lru)
		applog.Infof("✅ Embedding LRU cache initialized (size: %d)", cfg.RAG.EmbeddingCacheSize)
	}

	if cfg.Redis.URL != "" {
		timeout := time.Duration(cfg.Redis.PingTimeoutSeconds) * time.Second
		client, err := redisdb.Connect(ctx, cfg.Redis.URL, timeout)
		if err != nil {
			applog.Warnf("⚠️  Redis unavailable, shared embedding cache disabled: %v", err)
		} else {
			out.closers = append(out.closers, client.Close)
			tiers = append(tiers, redisdb.NewEmbeddingCache(client, cfg.RAG.CacheTTL))
			applog.Infof("✅ Redis embedding cache initialized (TTL: %ds)", cfg.RAG.CacheTTL)
		}
	} else {
		applog.Info("ℹ️  No REDIS_URL set, embeddings cached in-process only")
	}

	switch len(tiers) {
	case 0:
		return nil, nil
	case 1:
		return tiers[0], nil
	}
	return tiers, nil
}
