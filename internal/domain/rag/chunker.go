package rag

import (
	"strings"
	"unicode/utf8"
)

// ChunkText 分块结果，Page 从 1 开始
type ChunkText struct {
	Text string
	Page int
}

// Chunker 按页分块：段落合并到不超过 chunkSize 个 rune，块间保留 overlap 个 rune 的重叠。
// 单个段落超长时按 chunkSize 硬切。块不跨页。
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker 创建分块器
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// SplitPages 逐页分块，空白页跳过但页码保持
func (c *Chunker) SplitPages(pages []string) []ChunkText {
	var out []ChunkText
	for i, page := range pages {
		for _, text := range c.Split(page) {
			out = append(out, ChunkText{Text: text, Page: i + 1})
		}
	}
	return out
}

// Split 对单段文本分块
func (c *Chunker) Split(text string) []string {
	var chunks []string
	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, string(cur))
		}
	}

	for _, para := range paragraphs(text) {
		runes := []rune(para)

		if len(runes) > c.chunkSize {
			flush()
			cur = nil
			chunks = append(chunks, c.hardSplit(runes)...)
			continue
		}

		if len(cur) > 0 && len(cur)+1+len(runes) > c.chunkSize {
			flush()
			cur = c.tail(cur)
			if len(cur)+1+len(runes) > c.chunkSize {
				cur = nil
			}
		}
		if len(cur) > 0 {
			cur = append(cur, '\n')
		}
		cur = append(cur, runes...)
	}
	flush()
	return chunks
}

// hardSplit 超长段落按窗口切分，步长 chunkSize - overlap
func (c *Chunker) hardSplit(runes []rune) []string {
	step := c.chunkSize - c.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+c.chunkSize, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// tail 上一块末尾 overlap 个 rune，作为下一块开头
func (c *Chunker) tail(prev []rune) []rune {
	if c.overlap == 0 || len(prev) <= c.overlap {
		return nil
	}
	next := make([]rune, c.overlap, c.chunkSize)
	copy(next, prev[len(prev)-c.overlap:])
	return next
}

func paragraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// truncateRunes 截断到 n 个 rune
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
