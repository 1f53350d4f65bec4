package rag

import (
	"context"
	"sync"
)

// EmbedderFactory 按模型名构造 embedder
type EmbedderFactory func(model string) Embedder

// LanguageEmbedder 语言 -> 模型路由。同一模型只构造一个 embedder 实例。
type LanguageEmbedder struct {
	models       map[string]string
	defaultModel string
	factory      EmbedderFactory

	mu        sync.Mutex
	instances map[string]Embedder
}

// NewLanguageEmbedder models 为语言到模型的映射，未列出的语言使用 defaultModel
func NewLanguageEmbedder(models map[string]string, defaultModel string, factory EmbedderFactory) *LanguageEmbedder {
	table := make(map[string]string, len(models))
	for lang, model := range models {
		table[NormalizeLanguage(lang)] = model
	}
	return &LanguageEmbedder{
		models:       table,
		defaultModel: defaultModel,
		factory:      factory,
		instances:    make(map[string]Embedder),
	}
}

// ModelFor 语言对应的模型名
func (l *LanguageEmbedder) ModelFor(language string) string {
	if m, ok := l.models[NormalizeLanguage(language)]; ok && m != "" {
		return m
	}
	return l.defaultModel
}

// ForLanguage 语言对应的 embedder
func (l *LanguageEmbedder) ForLanguage(language string) Embedder {
	return l.forModel(l.ModelFor(language))
}

// EmbedFor 使用语言对应的模型向量化
func (l *LanguageEmbedder) EmbedFor(ctx context.Context, language string, texts []string) ([][]float32, error) {
	return l.ForLanguage(language).Embed(ctx, texts)
}

// EmbedQuery 为每个候选语言计算查询向量；同模型的语言共享一次调用
func (l *LanguageEmbedder) EmbedQuery(ctx context.Context, text string, languages []string) (map[string][]float32, error) {
	byModel := make(map[string][]float32)
	out := make(map[string][]float32, len(languages))
	for _, lang := range languages {
		model := l.ModelFor(lang)
		vec, ok := byModel[model]
		if !ok {
			vectors, err := l.forModel(model).Embed(ctx, []string{text})
			if err != nil {
				return nil, err
			}
			if len(vectors) != 1 {
				return nil, ErrEmbeddingCount
			}
			vec = vectors[0]
			byModel[model] = vec
		}
		out[lang] = vec
	}
	return out, nil
}

func (l *LanguageEmbedder) forModel(model string) Embedder {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.instances[model]; ok {
		return e
	}
	e := l.factory(model)
	l.instances[model] = e
	return e
}
