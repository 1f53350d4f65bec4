package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"talkdoc/internal/app/chat"
	"talkdoc/internal/domain/rag"
	"talkdoc/internal/domain/retrieval"
	applog "talkdoc/internal/platform/log"
)

// DocumentService 文档问答服务（*chat.Service 实现）
type DocumentService interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*chat.UploadResult, error)
	Ask(ctx context.Context, req *chat.AskRequest) (*chat.AskResult, error)
	Summarize(ctx context.Context, filename string, kind rag.SummaryType, targetLanguage string) (*chat.SummaryResult, error)
	SampleQuestions(ctx context.Context, filename, targetLanguage string) (*chat.QuestionsResult, error)
	Documents() []retrieval.Document
	Languages() []chat.LanguageInfo
	Stats() chat.Stats
	SupportedTypes() []string
}

// multipart 表单除文件外的开销
const multipartOverhead = 1 << 20

// DocumentHandler 文档上传、问答、摘要 API
type DocumentHandler struct {
	service        DocumentService
	maxUploadBytes int64
	requestTimeout time.Duration
}

// NewDocumentHandler 创建处理器
func NewDocumentHandler(service DocumentService, maxUploadBytes int64, requestTimeout time.Duration) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	if requestTimeout <= 0 {
		requestTimeout = 3 * time.Minute
	}
	return &DocumentHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		requestTimeout: requestTimeout,
	}
}

// RegisterRoutes 注册路由
func (h *DocumentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/documents", h.ListDocuments)
	r.Post("/upload", h.Upload)
	r.Post("/query", h.Query)
	r.Post("/summary", h.Summary)
	r.Post("/questions", h.Questions)
	r.Get("/languages", h.Languages)
}

func (h *DocumentHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"documents":       stats.Documents,
		"chunks":          stats.Chunks,
		"languages":       stats.Languages,
		"supported_types": h.service.SupportedTypes(),
	})
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := h.service.Documents()
	writeMessage(w, http.StatusOK, "Documents retrieved successfully", map[string]interface{}{
		"documents": docs,
		"total":     len(docs),
	})
}

// Upload multipart/form-data，字段名 file
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadBytes + multipartOverhead
	if r.ContentLength > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file size exceeds limit (%dMB)", h.maxUploadBytes>>20))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file size exceeds limit (%dMB)", h.maxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file size exceeds limit (%dMB)", h.maxUploadBytes>>20))
		return
	}

	res, err := h.service.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, "upload", err)
		return
	}
	writeMessage(w, http.StatusCreated,
		fmt.Sprintf("Document %s processed (%d chunks, language: %s)", res.Filename, res.ChunkCount, res.LanguageName),
		res)
}

type queryRequest struct {
	Query          string   `json:"query"`
	DocumentIDs    []string `json:"document_ids"`
	Filenames      []string `json:"filenames"`
	QueryLanguage  string   `json:"query_language"`
	TargetLanguage string   `json:"target_language"`
	TopK           int      `json:"top_k"`
}

func (h *DocumentHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.service.Ask(ctx, &chat.AskRequest{
		Query:          req.Query,
		Filenames:      h.resolveFilenames(append(req.DocumentIDs, req.Filenames...)),
		QueryLanguage:  req.QueryLanguage,
		TargetLanguage: req.TargetLanguage,
		TopK:           req.TopK,
	})
	if err != nil {
		writeServiceError(w, "query", err)
		return
	}
	writeMessage(w, http.StatusOK, "Query processed successfully", res)
}

type documentRequest struct {
	DocumentID     string `json:"document_id"`
	Filename       string `json:"filename"`
	SummaryType    string `json:"summary_type"`
	TargetLanguage string `json:"target_language"`
}

func (r *documentRequest) target() string {
	if r.Filename != "" {
		return r.Filename
	}
	return r.DocumentID
}

func (h *DocumentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.target() == "" {
		writeError(w, http.StatusBadRequest, "document_id or filename is required")
		return
	}
	kind, err := rag.ParseSummaryType(req.SummaryType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "summary_type must be 'small', 'medium', or 'detailed'")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.service.Summarize(ctx, h.resolveFilename(req.target()), kind, req.TargetLanguage)
	if err != nil {
		writeServiceError(w, "summary", err)
		return
	}
	writeMessage(w, http.StatusOK, "Summary generated successfully", res)
}

func (h *DocumentHandler) Questions(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.target() == "" {
		writeError(w, http.StatusBadRequest, "document_id or filename is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.service.SampleQuestions(ctx, h.resolveFilename(req.target()), req.TargetLanguage)
	if err != nil {
		writeServiceError(w, "questions", err)
		return
	}
	writeMessage(w, http.StatusOK, "Questions generated successfully", res)
}

func (h *DocumentHandler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages": h.service.Languages(),
	})
}

// resolveFilenames document_ids 既可以是文档 id 也可以是文件名，统一转成文件名
func (h *DocumentHandler) resolveFilenames(refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	byID := make(map[string]string)
	for _, d := range h.service.Documents() {
		byID[d.ID] = d.Filename
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if name, ok := byID[ref]; ok {
			ref = name
		}
		out = append(out, ref)
	}
	applog.Debug("[API] Resolved document references", "refs", len(refs), "filenames", len(out))
	return out
}

func (h *DocumentHandler) resolveFilename(ref string) string {
	if names := h.resolveFilenames([]string{ref}); len(names) > 0 {
		return names[0]
	}
	return ref
}
