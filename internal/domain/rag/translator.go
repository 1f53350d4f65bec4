package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"talkdoc/internal/metrics"
	applog "talkdoc/internal/platform/log"
	"talkdoc/internal/provider"
)

// Translator 文本翻译。失败时返回原文，ok=false。
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (out string, ok bool)
}

// LLMTranslator 通过 LLM 翻译
type LLMTranslator struct {
	llm     provider.LLMProvider
	model   string
	metrics *metrics.Metrics
}

// NewLLMTranslator 创建翻译器
func NewLLMTranslator(llm provider.LLMProvider, model string, m *metrics.Metrics) *LLMTranslator {
	return &LLMTranslator{llm: llm, model: model, metrics: m}
}

func (t *LLMTranslator) Translate(ctx context.Context, text, source, target string) (string, bool) {
	source, target = NormalizeLanguage(source), NormalizeLanguage(target)
	if strings.TrimSpace(text) == "" || target == "" || source == target {
		return text, true
	}

	start := time.Now()
	from := "the source language"
	if source != "" {
		from = LanguageName(source)
	}
	resp, err := t.llm.Complete(ctx, &provider.CompletionRequest{
		Model: t.model,
		Messages: []provider.Message{
			provider.System(fmt.Sprintf(
				"You are a professional translator. Translate the user's text from %s to %s. "+
					"Preserve meaning, formatting and line breaks. Output only the translation.",
				from, LanguageName(target))),
			provider.User(text),
		},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		t.metrics.ObserveTranslation(false)
		applog.Warn("[RAG/Translator] Translation failed, keeping original text",
			"source", source,
			"target", target,
			"error", err,
		)
		return text, false
	}

	t.metrics.ObserveTranslation(true)
	applog.Debug("[RAG/Translator] Translated",
		"source", source,
		"target", target,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(resp.Content), true
}
