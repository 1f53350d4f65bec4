package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"talkdoc/internal/domain/rag"
)

// AppConfig 全局配置。启动时统一加载，再按模块取用。
type AppConfig struct {
	LogLevel  string       `json:"log_level" yaml:"log_level"`
	LogFormat string       `json:"log_format" yaml:"log_format"`
	Server    ServerConfig `json:"server" yaml:"server"`
	Redis     RedisConfig  `json:"redis" yaml:"redis"`
	LLM       LLMConfig    `json:"llm" yaml:"llm"`
	RAG       rag.Config   `json:"rag" yaml:"rag"`
}

type ServerConfig struct {
	Host                   string   `json:"host" yaml:"host"`
	Port                   int      `json:"port" yaml:"port"`
	ReadTimeoutSeconds     int      `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int      `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
	AllowedOrigins         []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// RedisConfig URL 为空时只用进程内 LRU 缓存
type RedisConfig struct {
	URL                string `json:"url" yaml:"url"`
	PingTimeoutSeconds int    `json:"ping_timeout_seconds" yaml:"ping_timeout_seconds"`
}

// LLMConfig OpenAI 兼容的 chat completions 服务（OpenAI / Groq / Ollama）
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	APIKey   string `json:"api_key" yaml:"api_key"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	Model    string `json:"model" yaml:"model"`
}

// Default 默认配置
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			ReadTimeoutSeconds:     30,
			WriteTimeoutSeconds:    300,
			ShutdownTimeoutSeconds: 15,
			AllowedOrigins:         []string{"*"},
		},
		Redis: RedisConfig{PingTimeoutSeconds: 5},
		LLM: LLMConfig{
			Provider: "openai",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
		},
		RAG: *rag.DefaultConfig(),
	}
}

// Load 默认值 -> 配置文件 -> 环境变量。
// 配置文件由 APP_CONFIG_FILE 指定，.yaml/.yml 按 YAML 解析，其余按 JSON。
func Load() (*AppConfig, error) {
	// .env 可选
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyInt("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeoutSeconds)
	applyList("CORS_ALLOWED_ORIGINS", &c.Server.AllowedOrigins)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("LLM_PROVIDER", &c.LLM.Provider)
	applyString("LLM_MODEL", &c.LLM.Model)
	applyString("LLM_BASE_URL", &c.LLM.BaseURL)
	applyString("LLM_API_KEY", &c.LLM.APIKey)
	// 兼容常见的供应商变量名
	if c.LLM.APIKey == "" {
		for _, key := range []string{"GROQ_API_KEY", "OPENAI_API_KEY"} {
			if v := os.Getenv(key); v != "" {
				c.LLM.APIKey = v
				break
			}
		}
	}

	c.RAG.ApplyEnv()
}

func (c *AppConfig) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	// embedding 服务未单独配置时复用 LLM 服务
	if c.RAG.EmbeddingBaseURL == "" {
		c.RAG.EmbeddingBaseURL = c.LLM.BaseURL
	}
	if c.RAG.EmbeddingAPIKey == "" {
		c.RAG.EmbeddingAPIKey = c.LLM.APIKey
	}
	c.RAG.FallbackLanguage = rag.NormalizeLanguage(c.RAG.FallbackLanguage)
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		c.RAG.ChunkOverlap = c.RAG.ChunkSize / 4
	}
}

func (c *AppConfig) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.RAG.DefaultEmbeddingModel == "" {
		return fmt.Errorf("RAG_DEFAULT_EMBEDDING_MODEL is required")
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("RAG_CHUNK_SIZE must be positive")
	}
	return nil
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyList(key string, target *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*target = out
}
