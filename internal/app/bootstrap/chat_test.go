package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"talkdoc/internal/domain/rag"
	"talkdoc/internal/metrics"
	"talkdoc/internal/platform/config"
	"talkdoc/internal/provider"
)

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-test"
	cfg.RAG.EmbeddingBaseURL = "http://127.0.0.1:0"
	return cfg
}

func TestBuildChatService(t *testing.T) {
	cfg := testConfig()
	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()

	comps, err := BuildChatService(context.Background(), cfg, RegisterLLMProviders(cfg.LLM), metrics.New())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer comps.Close()

	if comps.Service == nil {
		t.Fatal("service not built")
	}
	if len(comps.closers) != 1 {
		t.Fatalf("expected redis client to be registered for close, got %d closers", len(comps.closers))
	}
	if got := comps.Service.Stats(); got.Documents != 0 || got.Languages != 0 {
		t.Fatalf("fresh service should be empty: %+v", got)
	}
}

func TestBuildVectorCacheTiers(t *testing.T) {
	cfg := testConfig()

	cache, err := buildVectorCache(context.Background(), cfg, &ChatComponents{})
	if err != nil {
		t.Fatalf("build cache: %v", err)
	}
	if _, ok := cache.(*rag.LRUVectorCache); !ok {
		t.Fatalf("expected lru only, got %T", cache)
	}

	mr := miniredis.RunT(t)
	cfg.Redis.URL = "redis://" + mr.Addr()
	out := &ChatComponents{}
	cache, err = buildVectorCache(context.Background(), cfg, out)
	if err != nil {
		t.Fatalf("build cache: %v", err)
	}
	defer out.Close()
	if tiers, ok := cache.(rag.TieredVectorCache); !ok || len(tiers) != 2 {
		t.Fatalf("expected lru + redis tiers, got %T", cache)
	}

	cfg.RAG.EmbeddingCacheSize = 0
	cfg.Redis.URL = ""
	cache, err = buildVectorCache(context.Background(), cfg, &ChatComponents{})
	if err != nil || cache != nil {
		t.Fatalf("expected no cache, got %T %v", cache, err)
	}
}

func TestBuildChatServiceUnknownProvider(t *testing.T) {
	cfg := testConfig()
	providers := RegisterLLMProviders(cfg.LLM)
	cfg.LLM.Provider = "missing"

	_, err := BuildChatService(context.Background(), cfg, providers, nil)
	if !errors.Is(err, provider.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
