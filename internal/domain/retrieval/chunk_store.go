package retrieval

import (
	"fmt"
	"sync"
)

// ChunkStore 保存每个文档的 chunk 文本
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]Chunk
	byDoc  map[string][]string // docID -> chunkIDs（按入库顺序）
}

// NewChunkStore 创建 ChunkStore
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[string]Chunk),
		byDoc:  make(map[string][]string),
	}
}

// Put 保存 chunk，id 重复时返回 ErrDuplicateID
func (s *ChunkStore) Put(chunk Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[chunk.ID]; ok {
		return fmt.Errorf("put chunk %q: %w", chunk.ID, ErrDuplicateID)
	}
	s.chunks[chunk.ID] = chunk
	s.byDoc[chunk.DocID] = append(s.byDoc[chunk.DocID], chunk.ID)
	return nil
}

// Remove 删除 chunk，不存在时忽略
func (s *ChunkStore) Remove(chunkID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.chunks[chunkID]
	if !ok {
		return
	}
	delete(s.chunks, chunkID)
	ids := s.byDoc[c.DocID]
	for i, id := range ids {
		if id == chunkID {
			s.byDoc[c.DocID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byDoc[c.DocID]) == 0 {
		delete(s.byDoc, c.DocID)
	}
}

// Get 按 id 获取 chunk
func (s *ChunkStore) Get(chunkID string) (Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chunks[chunkID]
	if !ok {
		return Chunk{}, fmt.Errorf("chunk %q: %w", chunkID, ErrNotFound)
	}
	return c, nil
}

// ListByDocument 按入库顺序返回文档的 chunk；文档不存在或尚无 chunk 时返回空切片
func (s *ChunkStore) ListByDocument(docID string) []Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byDoc[docID]
	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.chunks[id])
	}
	return out
}

// Len 返回 chunk 总数
func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
