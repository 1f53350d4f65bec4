package retrieval

import (
	"context"
	"fmt"
	"time"

	applog "talkdoc/internal/platform/log"
)

// ChunkInput 待入库的 chunk 文本及其向量
type ChunkInput struct {
	Text      string
	Page      int
	Embedding []float32
}

// IngestRequest 文档入库请求
type IngestRequest struct {
	Filename string
	Language string
	Chunks   []ChunkInput
}

// IngestResult 入库结果
type IngestResult struct {
	DocID      string `json:"document_id"`
	Filename   string `json:"filename"`
	Language   string `json:"language"`
	ChunkCount int    `json:"chunk_count"`
}

// Ingestor 入库流程：注册文档 -> 校验维度 -> 保存 chunk -> 写入语言索引 -> 记录 chunk id。
// 中途失败不回滚，已写入的 chunk 保留；未写入索引的 chunk 不会记入目录，也不留在 ChunkStore。
type Ingestor struct {
	catalog  *DocumentCatalog
	chunks   *ChunkStore
	registry *IndexRegistry
}

// NewIngestor 创建入库流程
func NewIngestor(catalog *DocumentCatalog, chunks *ChunkStore, registry *IndexRegistry) *Ingestor {
	return &Ingestor{catalog: catalog, chunks: chunks, registry: registry}
}

// Ingest 入库单个文档
func (in *Ingestor) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	start := time.Now()

	docID, err := in.catalog.Register(req.Filename, req.Language)
	if err != nil {
		return nil, err
	}

	indexed := make([]string, 0, len(req.Chunks))
	ingestErr := func() error {
		for i, ci := range req.Chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(ci.Embedding) == 0 {
				return fmt.Errorf("chunk %d of %q: %w", i, req.Filename, ErrEmptyEmbedding)
			}

			chunk := Chunk{
				ID:       fmt.Sprintf("%s_chunk_%d", docID, i),
				DocID:    docID,
				Text:     ci.Text,
				Language: req.Language,
				Index:    i,
				Page:     ci.Page,
			}
			if idx, err := in.registry.Lookup(req.Language); err == nil {
				if dims := idx.Dims(); dims != 0 && dims != len(ci.Embedding) {
					err := &DimensionMismatchError{Language: req.Language, Want: dims, Got: len(ci.Embedding)}
					return fmt.Errorf("index chunk %d of %q: %w", i, req.Filename, err)
				}
			}
			if err := in.chunks.Put(chunk); err != nil {
				return err
			}
			if err := in.registry.Insert(req.Language, chunk.ID, ci.Embedding, docID); err != nil {
				// 并发入库可能先确定了维度
				in.chunks.Remove(chunk.ID)
				return fmt.Errorf("index chunk %d of %q: %w", i, req.Filename, err)
			}
			indexed = append(indexed, chunk.ID)
		}
		return nil
	}()

	if len(indexed) > 0 {
		if err := in.catalog.AppendChunks(req.Filename, indexed); err != nil {
			return nil, err
		}
	}
	if ingestErr != nil {
		applog.Warn("[Retrieval] Ingest stopped partway",
			"filename", req.Filename,
			"doc_id", docID,
			"indexed", len(indexed),
			"total", len(req.Chunks),
			"error", ingestErr,
		)
		return nil, ingestErr
	}

	applog.Info("[Retrieval] Document ingested",
		"filename", req.Filename,
		"doc_id", docID,
		"language", req.Language,
		"chunks", len(indexed),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &IngestResult{
		DocID:      docID,
		Filename:   req.Filename,
		Language:   req.Language,
		ChunkCount: len(indexed),
	}, nil
}
