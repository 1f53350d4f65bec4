package retrieval

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	applog "talkdoc/internal/platform/log"
)

// CoordinatorConfig 检索协调器配置
type CoordinatorConfig struct {
	// FallbackLanguage 查询语言索引不足时追加检索的语言，空表示不回退
	FallbackLanguage string
	DefaultTopK      int
	// MaxParallel 按文档检索时的最大并发数
	MaxParallel int
}

// Coordinator 查询入口：解析目标文档、选择语言索引、合并截断结果。
// 纯读路径，不做任何写入，也不做翻译。
type Coordinator struct {
	catalog  *DocumentCatalog
	chunks   *ChunkStore
	registry *IndexRegistry
	config   CoordinatorConfig
}

// NewCoordinator 创建检索协调器
func NewCoordinator(catalog *DocumentCatalog, chunks *ChunkStore, registry *IndexRegistry, cfg CoordinatorConfig) *Coordinator {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &Coordinator{
		catalog:  catalog,
		chunks:   chunks,
		registry: registry,
		config:   cfg,
	}
}

// FallbackLanguage 返回配置的回退语言
func (c *Coordinator) FallbackLanguage() string {
	return c.config.FallbackLanguage
}

// Plan 是一次查询的检索计划：解析后的目标文档与将检索的语言（按检索顺序）。
// Documents 为空时按语言候选检索。
type Plan struct {
	Documents []Document
	Languages []string
}

// Plan 解析目标文件名并确定检索语言。调用方据此为每种语言计算查询向量，
// 再把同一个 Plan 交给 RetrievePlan，避免两次解析之间目录变化。
func (c *Coordinator) Plan(q *Query) *Plan {
	docs := c.resolveTargets(q.Filenames)
	if len(docs) == 0 {
		return &Plan{Languages: c.languageCandidates(q.Language)}
	}
	var langs []string
	seen := make(map[string]struct{})
	for _, d := range docs {
		if _, ok := seen[d.Language]; ok {
			continue
		}
		seen[d.Language] = struct{}{}
		langs = append(langs, d.Language)
	}
	return &Plan{Documents: docs, Languages: langs}
}

// Retrieve 执行检索：
//   - 指定了可解析的文件名：每个文档只检索其自身语言索引（docIDFilter = 文档 id），全局按 score 合并；
//   - 否则按 [查询语言, 回退语言] 检索。
//
// 结果按 chunk id 去重（保留最低 score），截断到 k。无结果返回空切片而非错误。
func (c *Coordinator) Retrieve(ctx context.Context, q *Query) ([]Result, error) {
	return c.RetrievePlan(ctx, q, c.Plan(q))
}

// RetrievePlan 按给定计划检索。没有查询向量的语言跳过并告警，不按零长度向量检索。
func (c *Coordinator) RetrievePlan(ctx context.Context, q *Query, plan *Plan) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	k := q.TopK
	if k <= 0 {
		k = c.config.DefaultTopK
	}

	var (
		matches []Match
		err     error
	)
	if len(plan.Documents) > 0 {
		matches, err = c.searchDocuments(ctx, q, c.withEmbedding(q, plan.Documents), k)
	} else {
		matches, err = c.registry.search(c.embeddedLanguages(q, plan.Languages), q.embeddingFor, k, "")
	}
	if err != nil {
		return nil, err
	}

	matches = dedupeByChunk(matches)
	if len(matches) > k {
		matches = matches[:k]
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		chunk, err := c.chunks.Get(m.ChunkID)
		if err != nil {
			applog.Warn("[Retrieval] Indexed chunk missing from store", "chunk_id", m.ChunkID, "error", err)
			continue
		}
		filename, _ := c.catalog.FilenameOf(m.DocID)
		results = append(results, Result{
			ChunkID:        m.ChunkID,
			Text:           chunk.Text,
			DocID:          m.DocID,
			Filename:       filename,
			Page:           chunk.Page,
			Score:          m.Score,
			SourceLanguage: m.Language,
		})
	}

	applog.Info("[Retrieval] Retrieved",
		"query_language", q.Language,
		"documents", len(plan.Documents),
		"top_k", k,
		"results", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// searchDocuments 并发检索各文档，按文档顺序收集后全局排序
func (c *Coordinator) searchDocuments(ctx context.Context, q *Query, docs []Document, k int) ([]Match, error) {
	perDoc := make([][]Match, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.MaxParallel)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches, err := c.registry.search([]string{doc.Language}, q.embeddingFor, k, doc.ID)
			if err != nil {
				return err
			}
			perDoc[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Match
	for _, m := range perDoc {
		all = append(all, m...)
	}
	// 各文档结果已按 (score, seq) 有序，稳定排序后同分按文档顺序
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score < all[j].Score
	})
	return all, nil
}

// withEmbedding 过滤掉语言没有查询向量的文档
func (c *Coordinator) withEmbedding(q *Query, docs []Document) []Document {
	out := docs[:0:0]
	for _, d := range docs {
		if len(q.embeddingFor(d.Language)) == 0 {
			applog.Warn("[Retrieval] No query embedding for document language, skipped",
				"filename", d.Filename,
				"language", d.Language,
			)
			continue
		}
		out = append(out, d)
	}
	return out
}

// embeddedLanguages 过滤掉没有查询向量的语言
func (c *Coordinator) embeddedLanguages(q *Query, langs []string) []string {
	out := make([]string, 0, len(langs))
	for _, lang := range langs {
		if len(q.embeddingFor(lang)) == 0 {
			applog.Warn("[Retrieval] No query embedding for language, skipped", "language", lang)
			continue
		}
		out = append(out, lang)
	}
	return out
}

// resolveTargets 文件名 -> 文档；未知文件名跳过
func (c *Coordinator) resolveTargets(filenames []string) []Document {
	docs := make([]Document, 0, len(filenames))
	seen := make(map[string]struct{}, len(filenames))
	for _, name := range filenames {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		doc, err := c.catalog.Resolve(name)
		if err != nil {
			applog.Warn("[Retrieval] Unknown document skipped", "filename", name)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

// languageCandidates 查询语言优先，回退语言（若配置且不同）其次
func (c *Coordinator) languageCandidates(queryLanguage string) []string {
	var langs []string
	if queryLanguage != "" {
		langs = append(langs, queryLanguage)
	}
	if fb := c.config.FallbackLanguage; fb != "" && fb != queryLanguage {
		langs = append(langs, fb)
	}
	return langs
}

// dedupeByChunk 输入已按 score 升序，保留每个 chunk 第一次出现（即最低 score）
func dedupeByChunk(matches []Match) []Match {
	seen := make(map[string]struct{}, len(matches))
	out := matches[:0:0]
	for _, m := range matches {
		if _, ok := seen[m.ChunkID]; ok {
			continue
		}
		seen[m.ChunkID] = struct{}{}
		out = append(out, m)
	}
	return out
}
