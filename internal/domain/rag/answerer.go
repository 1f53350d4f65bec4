package rag

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	applog "talkdoc/internal/platform/log"
	"talkdoc/internal/provider"
)

// SummaryType 摘要长度
type SummaryType string

const (
	SummarySmall    SummaryType = "small"
	SummaryMedium   SummaryType = "medium"
	SummaryDetailed SummaryType = "detailed"
)

// ParseSummaryType 空值按 medium 处理
func ParseSummaryType(s string) (SummaryType, error) {
	switch SummaryType(strings.ToLower(strings.TrimSpace(s))) {
	case "", SummaryMedium:
		return SummaryMedium, nil
	case SummarySmall:
		return SummarySmall, nil
	case SummaryDetailed:
		return SummaryDetailed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSummaryType, s)
}

type summaryShape struct {
	words     string
	maxChunks int
}

var summaryShapes = map[SummaryType]summaryShape{
	SummarySmall:    {words: "50-100", maxChunks: 5},
	SummaryMedium:   {words: "200-400", maxChunks: 15},
	SummaryDetailed: {words: "500-1000", maxChunks: 30},
}

const (
	summaryInputRunes  = 4000
	questionInputRunes = 3200
	questionMaxChunks  = 30
	maxSampleQuestions = 10
)

// Passage 回答所依据的片段
type Passage struct {
	Text     string
	Filename string
	Page     int
}

// Answerer 基于检索片段的生成
type Answerer struct {
	llm   provider.LLMProvider
	model string
}

// NewAnswerer 创建生成器
func NewAnswerer(llm provider.LLMProvider, model string) *Answerer {
	return &Answerer{llm: llm, model: model}
}

// Answer 仅依据 passages 回答问题
func (a *Answerer) Answer(ctx context.Context, question string, passages []Passage) (string, error) {
	var sb strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&sb, "[%d] %s", i+1, p.Filename)
		if p.Page > 0 {
			fmt.Fprintf(&sb, " (page %d)", p.Page)
		}
		sb.WriteString("\n")
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}

	return a.complete(ctx, "answer",
		"Use the following pieces of context to answer the question at the end. "+
			"If you don't know the answer, just say that you don't know, don't try to make up an answer.",
		fmt.Sprintf("%s\nQuestion: %s\nHelpful Answer:", sb.String(), question),
	)
}

// Summarize 按长度档位生成摘要
func (a *Answerer) Summarize(ctx context.Context, texts []string, kind SummaryType) (string, error) {
	shape, ok := summaryShapes[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSummaryType, kind)
	}
	doc := joinLimited(texts, shape.maxChunks, summaryInputRunes)

	return a.complete(ctx, "summary", "",
		fmt.Sprintf("Generate a %s summary (%s words) of the following document.\n"+
			"Focus on key points and ensure clarity. Stick strictly to the provided text.\n\n"+
			"Document:\n%s\n\nSummary:", kind, shape.words, doc),
	)
}

// SampleQuestions 生成至多 10 个与文档内容相关的示例问题
func (a *Answerer) SampleQuestions(ctx context.Context, texts []string) ([]string, error) {
	doc := joinLimited(texts, questionMaxChunks, questionInputRunes)

	out, err := a.complete(ctx, "questions",
		"You are an AI expert at creating questions from documents.",
		"Based on the text below, generate at least 20 insightful and highly relevant sample questions "+
			"that a user might ask to better understand the content.\n\n"+
			"Instructions:\n"+
			"- Questions must be specific to the document's content and context.\n"+
			"- Avoid generic questions like 'What is this document about?'\n"+
			"- Do not include numbers, prefixes or explanations.\n"+
			"- Each question should be a single, clear sentence ending with a question mark.\n\n"+
			"Text:\n"+doc,
	)
	if err != nil {
		return nil, err
	}
	return parseQuestions(out, maxSampleQuestions), nil
}

func (a *Answerer) complete(ctx context.Context, task, system, user string) (string, error) {
	start := time.Now()
	msgs := make([]provider.Message, 0, 2)
	if system != "" {
		msgs = append(msgs, provider.System(system))
	}
	msgs = append(msgs, provider.User(user))

	resp, err := a.llm.Complete(ctx, &provider.CompletionRequest{Model: a.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("%s via %s: %w", task, a.llm.Name(), err)
	}
	applog.Info("[RAG/Answerer] Completed",
		"task", task,
		"model", a.model,
		"tokens", resp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(resp.Content), nil
}

// parseQuestions 每行一个问题：去掉行首编号与项目符号，截到第一个问号，没有问号的行丢弃
func parseQuestions(raw string, limit int) []string {
	questions := make([]string, 0, limit)
	for _, line := range strings.Split(raw, "\n") {
		q := strings.TrimLeft(strings.TrimSpace(line), "-*•0123456789.) ")
		end := strings.IndexAny(q, "?？")
		if end <= 0 {
			continue
		}
		_, size := utf8.DecodeRuneInString(q[end:])
		questions = append(questions, strings.TrimSpace(q[:end+size]))
		if len(questions) == limit {
			break
		}
	}
	return questions
}

// joinLimited 取前 maxItems 段拼接，截断到 maxRunes
func joinLimited(texts []string, maxItems, maxRunes int) string {
	if len(texts) > maxItems {
		texts = texts[:maxItems]
	}
	joined := strings.Join(texts, "\n")
	if truncated := truncateRunes(joined, maxRunes); truncated != joined {
		applog.Warn("[RAG/Answerer] Input truncated", "max_runes", maxRunes)
		return truncated
	}
	return joined
}
