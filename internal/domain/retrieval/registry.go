package retrieval

import (
	"fmt"
	"sort"
	"sync"

	applog "talkdoc/internal/platform/log"
)

// IndexRegistry 按语言代码持有 LanguageIndex，首次写入时创建，进程内不销毁
type IndexRegistry struct {
	mu      sync.RWMutex
	indexes map[string]*LanguageIndex
	order   []string // 创建顺序，用于稳定的统计输出
}

// NewIndexRegistry 创建空注册表
func NewIndexRegistry() *IndexRegistry {
	return &IndexRegistry{
		indexes: make(map[string]*LanguageIndex),
	}
}

// GetOrCreate 返回语言索引，不存在则创建
func (r *IndexRegistry) GetOrCreate(language string) *LanguageIndex {
	r.mu.RLock()
	idx, ok := r.indexes[language]
	r.mu.RUnlock()
	if ok {
		return idx
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[language]; ok {
		return idx
	}
	idx = NewLanguageIndex(language)
	r.indexes[language] = idx
	r.order = append(r.order, language)
	applog.Info("[Retrieval] Language index created", "language", language)
	return idx
}

// Lookup 返回已存在的语言索引
func (r *IndexRegistry) Lookup(language string) (*LanguageIndex, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.indexes[language]
	if !ok {
		return nil, fmt.Errorf("language index %q: %w", language, ErrNotFound)
	}
	return idx, nil
}

// Insert 写入对应语言的索引
func (r *IndexRegistry) Insert(language, chunkID string, embedding []float32, docID string) error {
	return r.GetOrCreate(language).Insert(chunkID, embedding, docID)
}

// Search 按给定语言顺序检索各索引并全局按 score 升序合并，截断到 k。
// 没有索引的语言直接跳过；同分按（语言顺序, 插入顺序）排序。
func (r *IndexRegistry) Search(languages []string, query []float32, k int, docIDFilter string) ([]Match, error) {
	return r.search(languages, func(string) []float32 { return query }, k, docIDFilter)
}

func (r *IndexRegistry) search(languages []string, queryFor func(language string) []float32, k int, docIDFilter string) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	type ranked struct {
		Match
		langOrder int
	}

	var all []ranked
	seen := make(map[string]struct{}, len(languages))
	for order, lang := range languages {
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}

		r.mu.RLock()
		idx, ok := r.indexes[lang]
		r.mu.RUnlock()
		if !ok {
			continue
		}

		matches, err := idx.Search(queryFor(lang), k, docIDFilter)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			all = append(all, ranked{Match: m, langOrder: order})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.langOrder != b.langOrder {
			return a.langOrder < b.langOrder
		}
		return a.seq < b.seq
	})
	if len(all) > k {
		all = all[:k]
	}

	out := make([]Match, len(all))
	for i, m := range all {
		out[i] = m.Match
	}
	return out, nil
}

// Languages 返回已创建索引的语言（按创建顺序）
func (r *IndexRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Stats 返回全部索引统计
func (r *IndexRegistry) Stats() []IndexStats {
	r.mu.RLock()
	indexes := make([]*LanguageIndex, 0, len(r.order))
	for _, lang := range r.order {
		indexes = append(indexes, r.indexes[lang])
	}
	r.mu.RUnlock()

	stats := make([]IndexStats, len(indexes))
	for i, idx := range indexes {
		stats[i] = idx.Stats()
	}
	return stats
}
