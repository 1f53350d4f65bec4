package retrieval

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DocumentCatalog 已上传文档目录：文件名 -> 文档
type DocumentCatalog struct {
	mu    sync.RWMutex
	docs  map[string]*Document // key = filename
	byID  map[string]string    // docID -> filename
	names []string             // 注册顺序
}

// NewDocumentCatalog 创建空目录
func NewDocumentCatalog() *DocumentCatalog {
	return &DocumentCatalog{
		docs: make(map[string]*Document),
		byID: make(map[string]string),
	}
}

// Register 注册新文档并生成唯一 id；文件名已存在时返回 ErrDuplicateFilename
func (c *DocumentCatalog) Register(filename, language string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[filename]; ok {
		return "", fmt.Errorf("register %q: %w", filename, ErrDuplicateFilename)
	}

	id := uuid.New().String()
	c.docs[filename] = &Document{
		ID:        id,
		Filename:  filename,
		Language:  language,
		CreatedAt: time.Now(),
	}
	c.byID[id] = filename
	c.names = append(c.names, filename)
	return id, nil
}

// Resolve 返回文档快照（ChunkIDs 为副本）
func (c *DocumentCatalog) Resolve(filename string) (Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[filename]
	if !ok {
		return Document{}, fmt.Errorf("document %q: %w", filename, ErrNotFound)
	}
	out := *doc
	out.ChunkIDs = append([]string(nil), doc.ChunkIDs...)
	return out, nil
}

// ResolveID 文件名 -> 文档 id
func (c *DocumentCatalog) ResolveID(filename string) (string, error) {
	doc, err := c.Resolve(filename)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

// ResolveLanguage 文件名 -> 语言代码
func (c *DocumentCatalog) ResolveLanguage(filename string) (string, error) {
	doc, err := c.Resolve(filename)
	if err != nil {
		return "", err
	}
	return doc.Language, nil
}

// FilenameOf 文档 id -> 文件名
func (c *DocumentCatalog) FilenameOf(docID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.byID[docID]
	if !ok {
		return "", fmt.Errorf("document id %q: %w", docID, ErrNotFound)
	}
	return name, nil
}

// ListFilenames 按注册顺序返回全部文件名
func (c *DocumentCatalog) ListFilenames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.names...)
}

// List 按注册顺序返回全部文档快照
func (c *DocumentCatalog) List() []Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Document, 0, len(c.names))
	for _, name := range c.names {
		doc := *c.docs[name]
		doc.ChunkIDs = append([]string(nil), doc.ChunkIDs...)
		out = append(out, doc)
	}
	return out
}

// AppendChunks 追加文档的 chunk id（只增不减）
func (c *DocumentCatalog) AppendChunks(filename string, chunkIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[filename]
	if !ok {
		return fmt.Errorf("append chunks to %q: %w", filename, ErrNotFound)
	}
	doc.ChunkIDs = append(doc.ChunkIDs, chunkIDs...)
	return nil
}
