package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"talkdoc/internal/metrics"
	applog "talkdoc/internal/platform/log"
)

// Embedder 文本向量化
type Embedder interface {
	// Embed 批量向量化，输出与输入一一对应
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model 模型名
	Model() string
}

// OpenAIEmbedder 调用 OpenAI 兼容的 /embeddings 接口
type OpenAIEmbedder struct {
	baseURL   string
	apiKey    string
	model     string
	dims      int
	batchSize int
	client    *http.Client
	metrics   *metrics.Metrics
}

// OpenAIEmbedderConfig 配置
type OpenAIEmbedderConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dims      int // 0 = 模型默认维度
	BatchSize int
	Metrics   *metrics.Metrics
}

// NewOpenAIEmbedder 创建 embedder
func NewOpenAIEmbedder(cfg OpenAIEmbedderConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &OpenAIEmbedder{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dims:      cfg.Dims,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: 60 * time.Second},
		metrics:   cfg.Metrics,
	}
}

func (e *OpenAIEmbedder) Model() string { return e.model }

// Embed 分批请求
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed %s batch %d-%d: %w", e.model, start, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()

	req := embeddingRequest{Input: texts, Model: e.model, EncodingFormat: "float"}
	// 只有 text-embedding-3-* 支持 dimensions 参数
	if e.dims > 0 && strings.Contains(e.model, "embedding-3") {
		req.Dimensions = e.dims
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// 按 index 回填，保证顺序
	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmbeddingCount)
		}
	}

	e.metrics.ObserveEmbedding(e.model, len(texts))
	applog.Debug("[RAG/Embedder] Batch embedded",
		"model", e.model,
		"count", len(texts),
		"dims", len(vectors[0]),
		"tokens", parsed.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return vectors, nil
}
