package retrieval

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// indexSnapshot 索引的只读视图。
// 切片只追加：已发布快照长度以内的元素永不修改，读者无需加锁。
type indexSnapshot struct {
	dims    int
	ids     []string
	docIDs  []string
	vectors [][]float32
}

// LanguageIndex 单语言向量索引（精确暴力检索，squared L2）
type LanguageIndex struct {
	language string

	mu   sync.Mutex // 串行化写入
	snap atomic.Pointer[indexSnapshot]
}

// NewLanguageIndex 创建空索引
func NewLanguageIndex(language string) *LanguageIndex {
	idx := &LanguageIndex{language: language}
	idx.snap.Store(&indexSnapshot{})
	return idx
}

// Language 返回索引语言代码
func (idx *LanguageIndex) Language() string {
	return idx.language
}

// Insert 追加向量。维度由第一次插入确定，之后不一致返回 ErrDimensionMismatch
func (idx *LanguageIndex) Insert(chunkID string, embedding []float32, docID string) error {
	if len(embedding) == 0 {
		return fmt.Errorf("insert %q into %q: %w", chunkID, idx.language, ErrEmptyEmbedding)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	dims := cur.dims
	if dims == 0 {
		dims = len(embedding)
	} else if len(embedding) != dims {
		return &DimensionMismatchError{Language: idx.language, Want: dims, Got: len(embedding)}
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	idx.snap.Store(&indexSnapshot{
		dims:    dims,
		ids:     append(cur.ids, chunkID),
		docIDs:  append(cur.docIDs, docID),
		vectors: append(cur.vectors, vec),
	})
	return nil
}

// Search 返回与 query 距离最近的 k 个向量，按 score 升序，同分按插入顺序。
// docIDFilter 非空时只检索该文档的向量。
func (idx *LanguageIndex) Search(query []float32, k int, docIDFilter string) ([]Match, error) {
	snap := idx.snap.Load()
	n := len(snap.ids)
	if n == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(query) != snap.dims {
		return nil, &DimensionMismatchError{Language: idx.language, Want: snap.dims, Got: len(query)}
	}

	matches := make([]Match, 0, min(n, 64))
	for i := 0; i < n; i++ {
		if docIDFilter != "" && snap.docIDs[i] != docIDFilter {
			continue
		}
		matches = append(matches, Match{
			ChunkID:  snap.ids[i],
			DocID:    snap.docIDs[i],
			Language: idx.language,
			Score:    squaredL2(query, snap.vectors[i]),
			seq:      i,
		})
	}

	// 候选按插入顺序收集，稳定排序即保证同分时先插入者在前
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len 返回当前向量数
func (idx *LanguageIndex) Len() int {
	return len(idx.snap.Load().ids)
}

// Dims 返回索引维度（尚未插入时为 0）
func (idx *LanguageIndex) Dims() int {
	return idx.snap.Load().dims
}

// Stats 返回索引统计
func (idx *LanguageIndex) Stats() IndexStats {
	snap := idx.snap.Load()
	return IndexStats{Language: idx.language, Vectors: len(snap.ids), Dims: snap.dims}
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
