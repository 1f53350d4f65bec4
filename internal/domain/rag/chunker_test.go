package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_MergesParagraphsWithOverlap(t *testing.T) {
	c := NewChunker(10, 3)
	got := c.Split("aaaa\nbbbb\ncccc")
	assert.Equal(t, []string{"aaaa\nbbbb", "bbb\ncccc"}, got)
}

func TestChunker_HardSplitsLongParagraph(t *testing.T) {
	c := NewChunker(10, 3)
	long := strings.Repeat("x", 25)
	got := c.Split(long)
	require.Len(t, got, 4)
	assert.Equal(t, 10, len(got[0]))
	assert.Equal(t, 4, len(got[3]))
}

func TestChunker_NeverExceedsSize(t *testing.T) {
	c := NewChunker(50, 20)
	text := strings.Repeat("Ünïcödé wörds and more wörds\n", 40) + strings.Repeat("長", 130)
	for _, chunk := range c.Split(text) {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}

func TestChunker_SplitPagesKeepsPageNumbers(t *testing.T) {
	c := NewChunker(100, 10)
	got := c.SplitPages([]string{"first page", "   ", "third page"})
	require.Len(t, got, 2)
	assert.Equal(t, ChunkText{Text: "first page", Page: 1}, got[0])
	assert.Equal(t, ChunkText{Text: "third page", Page: 3}, got[1])
}

func TestChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, 2000, c.chunkSize)
	assert.Equal(t, 500, c.overlap)
	assert.Empty(t, c.Split("  \n \n"))
}
