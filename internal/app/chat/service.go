package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"talkdoc/internal/domain/rag"
	"talkdoc/internal/domain/retrieval"
	"talkdoc/internal/metrics"
	applog "talkdoc/internal/platform/log"
)

// NoRelevantInformation 检索无结果时的固定回答
const NoRelevantInformation = "No relevant information found in the selected documents."

// Options 服务依赖
type Options struct {
	Catalog     *retrieval.DocumentCatalog
	Chunks      *retrieval.ChunkStore
	Registry    *retrieval.IndexRegistry
	Coordinator *retrieval.Coordinator
	Ingestor    *retrieval.Ingestor

	Parsers    *rag.ParserRegistry
	Chunker    *rag.Chunker
	Detector   rag.LanguageDetector
	Embedder   *rag.LanguageEmbedder
	Answerer   *rag.Answerer
	Translator rag.Translator

	Metrics *metrics.Metrics

	MaxFileBytes       int64
	LanguageSampleSize int
	// TranslateParallel 来源片段并发翻译数
	TranslateParallel int
}

// Service 文档问答服务：上传入库、检索问答、摘要、示例问题
type Service struct {
	opts Options
}

// New 创建服务
func New(opts Options) *Service {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 50 << 20
	}
	if opts.LanguageSampleSize <= 0 {
		opts.LanguageSampleSize = 1000
	}
	if opts.TranslateParallel <= 0 {
		opts.TranslateParallel = 4
	}
	return &Service{opts: opts}
}

// UploadResult 上传结果
type UploadResult struct {
	DocID        string `json:"document_id"`
	Filename     string `json:"filename"`
	Language     string `json:"language"`
	LanguageName string `json:"language_name"`
	Pages        int    `json:"pages"`
	ChunkCount   int    `json:"chunk_count"`
}

// Upload 解析 -> 语言检测 -> 分块 -> 向量化 -> 入库
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	start := time.Now()

	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, ErrInvalidFilename
	}
	// 提前拒绝重复文件名，避免无谓的向量化
	if _, err := s.opts.Catalog.ResolveID(filename); err == nil {
		return nil, fmt.Errorf("%w: %q", retrieval.ErrDuplicateFilename, filename)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.opts.MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", filename, err)
	}
	if int64(len(data)) > s.opts.MaxFileBytes {
		return nil, fmt.Errorf("%w: %q exceeds %d bytes", ErrFileTooLarge, filename, s.opts.MaxFileBytes)
	}

	parsed, err := s.opts.Parsers.Parse(bytes.NewReader(data), filename)
	if err != nil {
		s.opts.Metrics.ObserveIngestFailure()
		return nil, err
	}

	lang, langName := rag.DetectSample(s.opts.Detector, parsed.Content, s.opts.LanguageSampleSize)
	applog.Info("[Chat] Document language detected", "filename", filename, "language", lang, "name", langName)

	pieces := s.opts.Chunker.SplitPages(parsed.Pages)
	if len(pieces) == 0 {
		s.opts.Metrics.ObserveIngestFailure()
		return nil, fmt.Errorf("%w: %q", rag.ErrEmptyDocument, filename)
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := s.opts.Embedder.EmbedFor(ctx, lang, texts)
	if err != nil {
		s.opts.Metrics.ObserveIngestFailure()
		return nil, fmt.Errorf("embed %q: %w", filename, err)
	}
	if len(vectors) != len(texts) {
		s.opts.Metrics.ObserveIngestFailure()
		return nil, fmt.Errorf("embed %q: %w", filename, rag.ErrEmbeddingCount)
	}

	inputs := make([]retrieval.ChunkInput, len(pieces))
	for i, p := range pieces {
		inputs[i] = retrieval.ChunkInput{Text: p.Text, Page: p.Page, Embedding: vectors[i]}
	}
	res, err := s.opts.Ingestor.Ingest(ctx, &retrieval.IngestRequest{
		Filename: filename,
		Language: lang,
		Chunks:   inputs,
	})
	if err != nil {
		s.opts.Metrics.ObserveIngestFailure()
		return nil, err
	}

	s.opts.Metrics.ObserveIngest(lang, res.ChunkCount)
	if idx, err := s.opts.Registry.Lookup(lang); err == nil {
		s.opts.Metrics.SetIndexVectors(lang, idx.Len())
	}

	applog.Info("[Chat] Upload complete",
		"filename", filename,
		"doc_id", res.DocID,
		"pages", parsed.PageCount(),
		"chunks", res.ChunkCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &UploadResult{
		DocID:        res.DocID,
		Filename:     filename,
		Language:     lang,
		LanguageName: langName,
		Pages:        parsed.PageCount(),
		ChunkCount:   res.ChunkCount,
	}, nil
}

// AskRequest 问答请求
type AskRequest struct {
	Query          string
	Filenames      []string
	QueryLanguage  string
	TargetLanguage string
	TopK           int
}

// Source 回答引用的片段，Text 已本地化到目标语言
type Source struct {
	ChunkID        string  `json:"chunk_id"`
	DocID          string  `json:"document_id"`
	Filename       string  `json:"filename"`
	Page           int     `json:"page,omitempty"`
	Score          float64 `json:"score"`
	SourceLanguage string  `json:"source_language"`
	Text           string  `json:"text"`
	OriginalText   string  `json:"original_text,omitempty"`
}

// AskResult 问答结果
type AskResult struct {
	Answer           string   `json:"response"`
	Sources          []Source `json:"sources"`
	QueryLanguage    string   `json:"query_language"`
	ResponseLanguage string   `json:"response_language"`
	Translated       bool     `json:"translated"`
}

// Ask 检索相关片段并生成回答。
// 查询语言缺省时自动检测，目标语言缺省时与查询语言相同。
func (s *Service) Ask(ctx context.Context, req *AskRequest) (*AskResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	queryLang := rag.NormalizeLanguage(req.QueryLanguage)
	if queryLang == "" {
		queryLang, _ = s.opts.Detector.Detect(query)
	}
	target := rag.NormalizeLanguage(req.TargetLanguage)
	if target == "" {
		target = queryLang
	}

	q := &retrieval.Query{
		Text:      query,
		Language:  queryLang,
		Filenames: req.Filenames,
		TopK:      req.TopK,
	}

	start := time.Now()
	plan := s.opts.Coordinator.Plan(q)
	langs := plan.Languages
	if len(langs) > 0 {
		embeddings, err := s.opts.Embedder.EmbedQuery(ctx, query, langs)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		q.LanguageEmbeddings = embeddings
	}

	results, err := s.opts.Coordinator.RetrievePlan(ctx, q, plan)
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.ObserveRetrieval(queryLang, len(results), time.Since(start))

	if len(results) == 0 {
		applog.Info("[Chat] No relevant chunks found", "query_language", queryLang, "languages", langs)
		answer, ok := s.opts.Translator.Translate(ctx, NoRelevantInformation, rag.DefaultLanguage, target)
		return &AskResult{
			Answer:           answer,
			Sources:          []Source{},
			QueryLanguage:    queryLang,
			ResponseLanguage: responseLanguage(rag.DefaultLanguage, target, ok),
			Translated:       ok && target != rag.DefaultLanguage,
		}, nil
	}

	passages := make([]rag.Passage, len(results))
	for i, r := range results {
		passages[i] = rag.Passage{Text: r.Text, Filename: r.Filename, Page: r.Page}
	}
	answer, err := s.opts.Answerer.Answer(ctx, query, passages)
	if err != nil {
		return nil, err
	}

	answerLang, _ := s.opts.Detector.Detect(answer)
	translated := false
	if answerLang != target {
		applog.Info("[Chat] Translating answer", "from", answerLang, "to", target)
		answer, translated = s.opts.Translator.Translate(ctx, answer, answerLang, target)
	}

	sources, err := s.localize(ctx, results, target)
	if err != nil {
		return nil, err
	}

	return &AskResult{
		Answer:           answer,
		Sources:          sources,
		QueryLanguage:    queryLang,
		ResponseLanguage: responseLanguage(answerLang, target, translated),
		Translated:       translated,
	}, nil
}

// localize 把来源片段翻译到目标语言，失败时保留原文
func (s *Service) localize(ctx context.Context, results []retrieval.Result, target string) ([]Source, error) {
	sources := make([]Source, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.TranslateParallel)
	for i, r := range results {
		sources[i] = Source{
			ChunkID:        r.ChunkID,
			DocID:          r.DocID,
			Filename:       r.Filename,
			Page:           r.Page,
			Score:          r.Score,
			SourceLanguage: r.SourceLanguage,
			Text:           r.Text,
		}
		if r.SourceLanguage == target {
			continue
		}
		g.Go(func() error {
			if text, ok := s.opts.Translator.Translate(gctx, r.Text, r.SourceLanguage, target); ok {
				sources[i].Text = text
				sources[i].OriginalText = r.Text
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

// SummaryResult 摘要结果
type SummaryResult struct {
	DocID       string          `json:"document_id"`
	Filename    string          `json:"filename"`
	SummaryType rag.SummaryType `json:"summary_type"`
	Summary     string          `json:"summary"`
	Language    string          `json:"language"`
	Translated  bool            `json:"translated"`
}

// Summarize 以文档语言生成摘要，必要时翻译到目标语言
func (s *Service) Summarize(ctx context.Context, filename string, kind rag.SummaryType, targetLanguage string) (*SummaryResult, error) {
	doc, texts, err := s.documentTexts(filename)
	if err != nil {
		return nil, err
	}

	summary, err := s.opts.Answerer.Summarize(ctx, texts, kind)
	if err != nil {
		return nil, err
	}

	target := rag.NormalizeLanguage(targetLanguage)
	if target == "" {
		target = doc.Language
	}
	translated := false
	if target != doc.Language {
		summary, translated = s.opts.Translator.Translate(ctx, summary, doc.Language, target)
	}

	return &SummaryResult{
		DocID:       doc.ID,
		Filename:    doc.Filename,
		SummaryType: kind,
		Summary:     summary,
		Language:    responseLanguage(doc.Language, target, translated),
		Translated:  translated,
	}, nil
}

// QuestionsResult 示例问题
type QuestionsResult struct {
	DocID      string   `json:"document_id"`
	Filename   string   `json:"filename"`
	Questions  []string `json:"questions"`
	Language   string   `json:"language"`
	Translated bool     `json:"translated"`
}

// SampleQuestions 生成示例问题，必要时整体翻译到目标语言
func (s *Service) SampleQuestions(ctx context.Context, filename, targetLanguage string) (*QuestionsResult, error) {
	doc, texts, err := s.documentTexts(filename)
	if err != nil {
		return nil, err
	}

	questions, err := s.opts.Answerer.SampleQuestions(ctx, texts)
	if err != nil {
		return nil, err
	}

	target := rag.NormalizeLanguage(targetLanguage)
	if target == "" {
		target = doc.Language
	}
	translated := false
	if target != doc.Language && len(questions) > 0 {
		var joined string
		joined, translated = s.opts.Translator.Translate(ctx, strings.Join(questions, "\n"), doc.Language, target)
		if translated {
			questions = splitLines(joined)
		}
	}

	return &QuestionsResult{
		DocID:      doc.ID,
		Filename:   doc.Filename,
		Questions:  questions,
		Language:   responseLanguage(doc.Language, target, translated),
		Translated: translated,
	}, nil
}

// Documents 已上传文档（按上传顺序）
func (s *Service) Documents() []retrieval.Document {
	return s.opts.Catalog.List()
}

// LanguageInfo 语言索引概况
type LanguageInfo struct {
	Language string `json:"language"`
	Name     string `json:"name"`
	Model    string `json:"embedding_model"`
	Vectors  int    `json:"vectors"`
	Dims     int    `json:"dims"`
}

// Languages 已建立索引的语言
func (s *Service) Languages() []LanguageInfo {
	stats := s.opts.Registry.Stats()
	out := make([]LanguageInfo, len(stats))
	for i, st := range stats {
		out[i] = LanguageInfo{
			Language: st.Language,
			Name:     rag.LanguageName(st.Language),
			Model:    s.opts.Embedder.ModelFor(st.Language),
			Vectors:  st.Vectors,
			Dims:     st.Dims,
		}
	}
	return out
}

// Stats 服务概况
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Languages int `json:"languages"`
}

func (s *Service) Stats() Stats {
	return Stats{
		Documents: len(s.opts.Catalog.ListFilenames()),
		Chunks:    s.opts.Chunks.Len(),
		Languages: len(s.opts.Registry.Languages()),
	}
}

// SupportedTypes 可上传的扩展名
func (s *Service) SupportedTypes() []string {
	return s.opts.Parsers.SupportedTypes()
}

func (s *Service) documentTexts(filename string) (retrieval.Document, []string, error) {
	doc, err := s.opts.Catalog.Resolve(strings.TrimSpace(filename))
	if err != nil {
		return retrieval.Document{}, nil, err
	}
	chunks := s.opts.Chunks.ListByDocument(doc.ID)
	if len(chunks) == 0 {
		return retrieval.Document{}, nil, fmt.Errorf("%w: %q", ErrNoChunks, filename)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return doc, texts, nil
}

// responseLanguage 翻译成功时为目标语言，否则为原语言
func responseLanguage(source, target string, translated bool) string {
	if translated || source == target {
		return target
	}
	return source
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
