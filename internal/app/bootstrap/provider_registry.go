package bootstrap

import (
	"talkdoc/internal/adapter/provider/llm/openai"
	"talkdoc/internal/platform/config"
	applog "talkdoc/internal/platform/log"
	"talkdoc/internal/provider"
)

// RegisterLLMProviders 注册配置的 LLM 供应商，返回注册表
func RegisterLLMProviders(cfg config.LLMConfig) *provider.Registry {
	reg := provider.NewRegistry()
	if cfg.APIKey == "" {
		applog.Warn("⚠️  No LLM API key set, answers and translations will fail until one is configured")
	}

	p := openai.New(openai.Config{
		Name:    cfg.Provider,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})
	reg.Register(p)
	applog.Infof("✅ Registered LLM provider: %s (base: %s, model: %s)", p.Name(), cfg.BaseURL, cfg.Model)
	return reg
}
