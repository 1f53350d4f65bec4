package retrieval

import "time"

// Document 已上传文档（按文件名对外寻址）
type Document struct {
	ID        string    `json:"document_id"`
	Filename  string    `json:"filename"`
	Language  string    `json:"language"`
	ChunkIDs  []string  `json:"chunk_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk 文档片段，检索的最小单元
type Chunk struct {
	ID       string `json:"chunk_id"`
	DocID    string `json:"doc_id"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Index    int    `json:"index"`
	Page     int    `json:"page,omitempty"`
}

// Match 单个语言索引内的命中（score 越小越相似）
type Match struct {
	ChunkID  string  `json:"chunk_id"`
	DocID    string  `json:"doc_id"`
	Language string  `json:"language"`
	Score    float64 `json:"score"`

	seq int // 索引内插入序号，用于同分排序
}

// Result 检索结果（每次查询临时生成，不缓存）
type Result struct {
	ChunkID        string  `json:"chunk_id"`
	Text           string  `json:"text"`
	DocID          string  `json:"doc_id"`
	Filename       string  `json:"filename,omitempty"`
	Page           int     `json:"page,omitempty"`
	Score          float64 `json:"score"`
	SourceLanguage string  `json:"source_language"`
}

// Query 检索请求
type Query struct {
	Text      string    `json:"query"`
	Embedding []float32 `json:"-"`
	// LanguageEmbeddings 按语言覆盖 Embedding（各语言索引可能使用不同的向量模型）
	LanguageEmbeddings map[string][]float32 `json:"-"`
	Language           string               `json:"query_language"`
	Filenames          []string             `json:"filenames,omitempty"`
	TopK               int                  `json:"top_k"`
}

// embeddingFor 返回用于指定语言索引的查询向量
func (q *Query) embeddingFor(language string) []float32 {
	if v, ok := q.LanguageEmbeddings[language]; ok && len(v) > 0 {
		return v
	}
	return q.Embedding
}

// IndexStats 单个语言索引的统计信息
type IndexStats struct {
	Language string `json:"language"`
	Vectors  int    `json:"vectors"`
	Dims     int    `json:"dims"`
}
