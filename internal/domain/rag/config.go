package rag

import (
	"os"
	"strconv"
	"strings"

	applog "talkdoc/internal/platform/log"
)

// Config 检索、分块、向量化相关配置
type Config struct {
	// 检索
	FallbackLanguage string `json:"fallback_language" yaml:"fallback_language"`
	DefaultTopK      int    `json:"default_top_k" yaml:"default_top_k"`
	MaxParallel      int    `json:"max_parallel" yaml:"max_parallel"`

	// 分块（按 rune 计）
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Embedding：英文单独模型，其余语言走多语言模型，可按语言覆盖
	EmbeddingBaseURL      string            `json:"embedding_base_url" yaml:"embedding_base_url"`
	EmbeddingAPIKey       string            `json:"embedding_api_key" yaml:"embedding_api_key"`
	EnglishEmbeddingModel string            `json:"english_embedding_model" yaml:"english_embedding_model"`
	DefaultEmbeddingModel string            `json:"default_embedding_model" yaml:"default_embedding_model"`
	EmbeddingModels       map[string]string `json:"embedding_models,omitempty" yaml:"embedding_models,omitempty"`
	EmbeddingDims         int               `json:"embedding_dims,omitempty" yaml:"embedding_dims,omitempty"`

	// 缓存
	EmbeddingCacheSize int `json:"embedding_cache_size" yaml:"embedding_cache_size"` // LRU 条目数，0=禁用
	CacheTTL           int `json:"cache_ttl" yaml:"cache_ttl"`                       // Redis 向量缓存 TTL（秒）

	// 上传
	MaxFileSize        int `json:"max_file_size" yaml:"max_file_size"`               // MB
	LanguageSampleSize int `json:"language_sample_size" yaml:"language_sample_size"` // 语言检测采样 rune 数
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		FallbackLanguage:      "en",
		DefaultTopK:           5,
		MaxParallel:           4,
		ChunkSize:             2000,
		ChunkOverlap:          300,
		EnglishEmbeddingModel: "all-minilm",
		DefaultEmbeddingModel: "paraphrase-multilingual",
		EmbeddingCacheSize:    4096,
		CacheTTL:              86400,
		MaxFileSize:           50,
		LanguageSampleSize:    1000,
	}
}

// LoadConfigFromEnv 默认配置叠加环境变量
func LoadConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()

	applog.Info("[RAG] Config loaded",
		"fallback_language", cfg.FallbackLanguage,
		"default_top_k", cfg.DefaultTopK,
		"chunk_size", cfg.ChunkSize,
		"chunk_overlap", cfg.ChunkOverlap,
		"english_model", cfg.EnglishEmbeddingModel,
		"default_model", cfg.DefaultEmbeddingModel,
		"cache_size", cfg.EmbeddingCacheSize,
	)
	return cfg
}

// ApplyEnv 用 RAG_* 环境变量覆盖当前值
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("RAG_FALLBACK_LANGUAGE"); ok {
		// 允许显式置空以关闭回退
		c.FallbackLanguage = strings.TrimSpace(v)
	}
	envPositive("RAG_DEFAULT_TOP_K", &c.DefaultTopK)
	envPositive("RAG_MAX_PARALLEL", &c.MaxParallel)
	envPositive("RAG_CHUNK_SIZE", &c.ChunkSize)
	envNonNegative("RAG_CHUNK_OVERLAP", &c.ChunkOverlap)

	envString("RAG_EMBEDDING_BASE_URL", &c.EmbeddingBaseURL)
	envString("RAG_EMBEDDING_API_KEY", &c.EmbeddingAPIKey)
	envString("RAG_ENGLISH_EMBEDDING_MODEL", &c.EnglishEmbeddingModel)
	envString("RAG_DEFAULT_EMBEDDING_MODEL", &c.DefaultEmbeddingModel)
	envPositive("RAG_EMBEDDING_DIMS", &c.EmbeddingDims)
	if v := os.Getenv("RAG_EMBEDDING_MODELS"); v != "" {
		c.EmbeddingModels = parseModelMap(v)
	}

	envNonNegative("RAG_EMBEDDING_CACHE_SIZE", &c.EmbeddingCacheSize)
	envNonNegative("RAG_CACHE_TTL", &c.CacheTTL)
	envPositive("RAG_MAX_FILE_SIZE", &c.MaxFileSize)
	envPositive("RAG_LANGUAGE_SAMPLE_SIZE", &c.LanguageSampleSize)
}

// ModelTable 语言 -> 模型映射（含英文默认项，显式覆盖优先）
func (c *Config) ModelTable() map[string]string {
	table := make(map[string]string, len(c.EmbeddingModels)+1)
	if c.EnglishEmbeddingModel != "" {
		table["en"] = c.EnglishEmbeddingModel
	}
	for lang, model := range c.EmbeddingModels {
		table[strings.ToLower(lang)] = model
	}
	return table
}

// MaxFileBytes 上传大小上限（字节）
func (c *Config) MaxFileBytes() int64 {
	return int64(c.MaxFileSize) << 20
}

// HasCache 是否启用本地向量缓存
func (c *Config) HasCache() bool {
	return c.EmbeddingCacheSize > 0
}

// parseModelMap 解析 "fr=model-a,de=model-b"
func parseModelMap(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		lang, model, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(lang) == "" || strings.TrimSpace(model) == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(lang))] = strings.TrimSpace(model)
	}
	return out
}

func envString(key string, target *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func envPositive(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*target = n
		}
	}
}

func envNonNegative(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*target = n
		}
	}
}
