package rag

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	applog "talkdoc/internal/platform/log"
)

// ParseResult 解析结果。Pages 按页保存文本（页码 = 下标 + 1），
// 不分页的格式只有一页。
type ParseResult struct {
	Content  string            `json:"content"`
	Pages    []string          `json:"-"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PageCount 页数
func (r *ParseResult) PageCount() int { return len(r.Pages) }

// Parser 文档解析器
type Parser interface {
	Parse(reader io.Reader, filename string) (*ParseResult, error)
	SupportedTypes() []string
}

func singlePage(content string, meta map[string]string) *ParseResult {
	content = strings.TrimSpace(content)
	return &ParseResult{Content: content, Pages: []string{content}, Metadata: meta}
}

// ── Markdown ─────────────────────────────────────────────────

// MarkdownParser 去掉 Markdown 标记后的纯文本
type MarkdownParser struct{}

var (
	reMdFence  = regexp.MustCompile("(?s)```[^\n]*\n(.*?)```")
	reMdImage  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reMdLink   = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reMdBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reMdItalic = regexp.MustCompile(`\*(.+?)\*`)
	reMdCode   = regexp.MustCompile("`([^`]+)`")
	reMdHeader = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reHTMLTag  = regexp.MustCompile(`<[^>]+>`)
)

func (p *MarkdownParser) SupportedTypes() []string { return []string{".md", ".markdown"} }

func (p *MarkdownParser) Parse(reader io.Reader, _ string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	text := string(data)

	meta := map[string]string{"format": "markdown"}
	for _, line := range strings.SplitN(text, "\n", 10) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			meta["title"] = title
			break
		}
	}

	for _, r := range []struct {
		re   *regexp.Regexp
		repl string
	}{
		{reMdFence, "$1"},
		{reMdImage, "$1"},
		{reMdLink, "$1"},
		{reMdBold, "$1"},
		{reMdItalic, "$1"},
		{reMdCode, "$1"},
		{reMdHeader, ""},
		{reHTMLTag, ""},
	} {
		text = r.re.ReplaceAllString(text, r.repl)
	}

	return singlePage(collapseBlankLines(text), meta), nil
}

// ── Plain text ───────────────────────────────────────────────

// PlainTextParser 纯文本
type PlainTextParser struct{}

func (p *PlainTextParser) SupportedTypes() []string {
	return []string{".txt", ".text", ".csv", ".log"}
}

func (p *PlainTextParser) Parse(reader io.Reader, _ string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return singlePage(string(data), map[string]string{"format": "text"}), nil
}

// ── PDF ──────────────────────────────────────────────────────

// PDFParser 逐页提取 PDF 文本
type PDFParser struct{}

func (p *PDFParser) SupportedTypes() []string { return []string{".pdf"} }

func (p *PDFParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	// pdf.NewReader 需要 io.ReaderAt
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	pages := make([]string, n)
	var nonEmpty []string
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			applog.Warn("[RAG/PDF] Page text extraction failed", "filename", filename, "page", i, "error", err)
			continue
		}
		text = strings.TrimSpace(collapseBlankLines(text))
		pages[i-1] = text
		if text != "" {
			nonEmpty = append(nonEmpty, text)
		}
	}

	return &ParseResult{
		Content: strings.Join(nonEmpty, "\n\n"),
		Pages:   pages,
		Metadata: map[string]string{
			"format": "pdf",
			"pages":  fmt.Sprintf("%d", n),
		},
	}, nil
}

// ── DOCX ─────────────────────────────────────────────────────

// DOCXParser 提取 Word 正文
type DOCXParser struct{}

var (
	reDocxParaEnd = regexp.MustCompile(`</w:p>|<w:br\s*/>|<w:cr\s*/>`)
	reDocxTab     = regexp.MustCompile(`<w:tab\s*/>`)
)

func (p *DOCXParser) SupportedTypes() []string { return []string{".docx"} }

func (p *DOCXParser) Parse(reader io.Reader, _ string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	return singlePage(docxText(r.Editable().GetContent()), map[string]string{"format": "docx"}), nil
}

// docxText document.xml -> 纯文本，段落之间换行
func docxText(xml string) string {
	xml = reDocxParaEnd.ReplaceAllString(xml, "\n")
	xml = reDocxTab.ReplaceAllString(xml, "\t")
	text := html.UnescapeString(reHTMLTag.ReplaceAllString(xml, ""))

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

var reBlankLines = regexp.MustCompile(`\n{3,}`)

func collapseBlankLines(text string) string {
	return reBlankLines.ReplaceAllString(text, "\n\n")
}
