package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkdoc/internal/provider"
)

type scriptedLLM struct {
	reply string
	err   error
	last  *provider.CompletionRequest
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) Complete(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &provider.CompletionResponse{Content: s.reply}, nil
}

func (s *scriptedLLM) prompt() string {
	return s.last.Messages[len(s.last.Messages)-1].Content
}

func TestParseSummaryType(t *testing.T) {
	for in, want := range map[string]SummaryType{
		"":         SummaryMedium,
		"small":    SummarySmall,
		" Medium ": SummaryMedium,
		"DETAILED": SummaryDetailed,
	} {
		got, err := ParseSummaryType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseSummaryType("huge")
	assert.ErrorIs(t, err, ErrInvalidSummaryType)
}

func TestAnswerer_SummarizeLimitsChunks(t *testing.T) {
	llm := &scriptedLLM{reply: " short summary "}
	a := NewAnswerer(llm, "chat-model")

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "chunk-" + string(rune('a'+i))
	}
	got, err := a.Summarize(context.Background(), texts, SummarySmall)
	require.NoError(t, err)
	assert.Equal(t, "short summary", got)
	assert.Equal(t, "chat-model", llm.last.Model)
	assert.Contains(t, llm.prompt(), "(50-100 words)")
	assert.Contains(t, llm.prompt(), "chunk-e")
	assert.NotContains(t, llm.prompt(), "chunk-f")

	_, err = a.Summarize(context.Background(), texts, SummaryType("huge"))
	assert.ErrorIs(t, err, ErrInvalidSummaryType)
}

func TestAnswerer_AnswerIncludesPassages(t *testing.T) {
	llm := &scriptedLLM{reply: "42"}
	a := NewAnswerer(llm, "m")

	got, err := a.Answer(context.Background(), "What is the answer?", []Passage{
		{Text: "The answer is 42.", Filename: "guide.pdf", Page: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", got)
	assert.Contains(t, llm.prompt(), "guide.pdf (page 3)")
	assert.Contains(t, llm.prompt(), "Question: What is the answer?")
}

func TestAnswerer_PropagatesLLMError(t *testing.T) {
	boom := errors.New("unavailable")
	_, err := NewAnswerer(&scriptedLLM{err: boom}, "m").Answer(context.Background(), "q", nil)
	assert.ErrorIs(t, err, boom)
}

func TestAnswerer_SampleQuestions(t *testing.T) {
	reply := strings.Join([]string{
		"Here are some questions:",
		"1. What does the warranty cover?",
		"- How long is the return window? (Clarifies policy)",
		"* ¿Dónde está la oficina?",
		"Not a question",
	}, "\n")
	got, err := NewAnswerer(&scriptedLLM{reply: reply}, "m").SampleQuestions(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"What does the warranty cover?",
		"How long is the return window?",
		"¿Dónde está la oficina?",
	}, got)
}

func TestParseQuestionsLimit(t *testing.T) {
	raw := strings.Repeat("Why?\n", 15)
	assert.Len(t, parseQuestions(raw, 10), 10)
}

func TestLLMTranslator(t *testing.T) {
	llm := &scriptedLLM{reply: "Hello world"}
	tr := NewLLMTranslator(llm, "m", nil)

	out, ok := tr.Translate(context.Background(), "Bonjour le monde", "fr", "en")
	assert.True(t, ok)
	assert.Equal(t, "Hello world", out)
	assert.Contains(t, llm.last.Messages[0].Content, "from French to English")

	llm.last = nil
	out, ok = tr.Translate(context.Background(), "Hallo", "de", "de-DE")
	assert.True(t, ok)
	assert.Equal(t, "Hallo", out)
	assert.Nil(t, llm.last, "same language must not call the LLM")

	failing := NewLLMTranslator(&scriptedLLM{err: errors.New("down")}, "m", nil)
	out, ok = failing.Translate(context.Background(), "Hola", "es", "en")
	assert.False(t, ok)
	assert.Equal(t, "Hola", out)
}
