package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigApplyEnv(t *testing.T) {
	t.Setenv("RAG_FALLBACK_LANGUAGE", "")
	t.Setenv("RAG_DEFAULT_TOP_K", "8")
	t.Setenv("RAG_CHUNK_OVERLAP", "0")
	t.Setenv("RAG_CHUNK_SIZE", "-5")
	t.Setenv("RAG_EMBEDDING_MODELS", "fr=french-model, de = german-model ,broken")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "", cfg.FallbackLanguage)
	assert.Equal(t, 8, cfg.DefaultTopK)
	assert.Equal(t, 0, cfg.ChunkOverlap)
	assert.Equal(t, 2000, cfg.ChunkSize)
	assert.Equal(t, map[string]string{"fr": "french-model", "de": "german-model"}, cfg.EmbeddingModels)
}

func TestConfigModelTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbeddingModels = map[string]string{"EN": "override", "hi": "indic"}

	table := cfg.ModelTable()
	assert.Equal(t, "override", table["en"])
	assert.Equal(t, "indic", table["hi"])
	assert.Equal(t, int64(50<<20), cfg.MaxFileBytes())
}
