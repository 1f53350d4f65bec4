package rag

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ParserRegistry 按扩展名选择解析器
type ParserRegistry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // key = ".ext"
}

// NewParserRegistry 注册内置的 pdf / docx / markdown / text 解析器
func NewParserRegistry() *ParserRegistry {
	r := &ParserRegistry{parsers: make(map[string]Parser)}
	r.Register(&PDFParser{})
	r.Register(&DOCXParser{})
	r.Register(&MarkdownParser{})
	r.Register(&PlainTextParser{})
	return r
}

// Register 注册解析器，同扩展名后注册者覆盖
func (r *ParserRegistry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range p.SupportedTypes() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// Get 按文件名扩展名取解析器
func (r *ParserRegistry) Get(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	r.mu.RLock()
	p, ok := r.parsers[ext]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFileType, ext, strings.Join(r.SupportedTypes(), ", "))
	}
	return p, nil
}

// Parse 选择解析器并解析；无文本时返回 ErrEmptyDocument
func (r *ParserRegistry) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	p, err := r.Get(filename)
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", filename, err)
	}
	if strings.TrimSpace(res.Content) == "" {
		return nil, fmt.Errorf("parse %q: %w", filename, ErrEmptyDocument)
	}
	return res, nil
}

// SupportedTypes 已注册扩展名（排序）
func (r *ParserRegistry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		types = append(types, ext)
	}
	sort.Strings(types)
	return types
}
