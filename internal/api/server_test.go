package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"talkdoc/internal/app/chat"
	"talkdoc/internal/domain/rag"
	"talkdoc/internal/domain/retrieval"
	"talkdoc/internal/metrics"
)

type fakeService struct {
	docs        []retrieval.Document
	lastAsk     *chat.AskRequest
	lastSummary string
	lastKind    rag.SummaryType
	uploaded    map[string]string
	askErr      error
}

func newFakeService() *fakeService {
	return &fakeService{
		docs: []retrieval.Document{
			{ID: "doc-1", Filename: "guide.pdf", Language: "en"},
			{ID: "doc-2", Filename: "notes.docx", Language: "fr"},
		},
		uploaded: make(map[string]string),
	}
}

func (f *fakeService) Upload(_ context.Context, filename string, r io.Reader) (*chat.UploadResult, error) {
	if filename == "guide.pdf" {
		return nil, fmt.Errorf("register: %w", retrieval.ErrDuplicateFilename)
	}
	if strings.HasSuffix(filename, ".png") {
		return nil, fmt.Errorf("%w: .png", rag.ErrUnsupportedFileType)
	}
	data, _ := io.ReadAll(r)
	f.uploaded[filename] = string(data)
	return &chat.UploadResult{DocID: "doc-3", Filename: filename, Language: "en", LanguageName: "English", Pages: 1, ChunkCount: 2}, nil
}

func (f *fakeService) Ask(_ context.Context, req *chat.AskRequest) (*chat.AskResult, error) {
	f.lastAsk = req
	if f.askErr != nil {
		return nil, f.askErr
	}
	return &chat.AskResult{Answer: "answer", Sources: []chat.Source{}, QueryLanguage: "en", ResponseLanguage: "en"}, nil
}

func (f *fakeService) Summarize(_ context.Context, filename string, kind rag.SummaryType, _ string) (*chat.SummaryResult, error) {
	f.lastSummary, f.lastKind = filename, kind
	if filename == "missing.txt" {
		return nil, fmt.Errorf("document %q: %w", filename, retrieval.ErrNotFound)
	}
	return &chat.SummaryResult{Filename: filename, SummaryType: kind, Summary: "summary"}, nil
}

func (f *fakeService) SampleQuestions(_ context.Context, filename, _ string) (*chat.QuestionsResult, error) {
	return &chat.QuestionsResult{Filename: filename, Questions: []string{"Why?"}}, nil
}

func (f *fakeService) Documents() []retrieval.Document { return f.docs }

func (f *fakeService) Languages() []chat.LanguageInfo {
	return []chat.LanguageInfo{{Language: "en", Name: "English", Vectors: 3, Dims: 4}}
}

func (f *fakeService) Stats() chat.Stats { return chat.Stats{Documents: 2, Chunks: 5, Languages: 2} }

func (f *fakeService) SupportedTypes() []string { return []string{".docx", ".md", ".pdf", ".txt"} }

func newTestHandler(t *testing.T, svc DocumentService) http.Handler {
	t.Helper()
	cfg := DefaultServerConfig()
	cfg.MaxUploadBytes = 1 << 20
	return NewServer(cfg, svc, metrics.New()).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp APIResponse
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, resp
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthAndDocuments(t *testing.T) {
	h := newTestHandler(t, newFakeService())

	rr, resp := doJSON(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK || resp.Code != http.StatusOK {
		t.Fatalf("health: got %d", rr.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["status"] != "ok" || data["documents"].(float64) != 2 {
		t.Fatalf("unexpected health payload: %v", data)
	}

	rr, resp = doJSON(t, h, http.MethodGet, "/documents", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("documents: got %d", rr.Code)
	}
	docs := resp.Data.(map[string]interface{})["documents"].([]interface{})
	if len(docs) != 2 || docs[0].(map[string]interface{})["filename"] != "guide.pdf" {
		t.Fatalf("unexpected documents: %v", docs)
	}
}

func TestUpload(t *testing.T) {
	svc := newFakeService()
	h := newTestHandler(t, svc)

	tests := []struct {
		name     string
		filename string
		want     int
	}{
		{name: "accepted", filename: "report.txt", want: http.StatusCreated},
		{name: "duplicate filename", filename: "guide.pdf", want: http.StatusConflict},
		{name: "unsupported type", filename: "scan.png", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, multipartUpload(t, tt.filename, "hello world"))
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
	if svc.uploaded["report.txt"] != "hello world" {
		t.Fatalf("service did not receive file content: %v", svc.uploaded)
	}
}

func TestUploadRequiresFileField(t *testing.T) {
	h := newTestHandler(t, newFakeService())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("title", "no file")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	h := newTestHandler(t, newFakeService())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, multipartUpload(t, "big.txt", strings.Repeat("x", 3<<20)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestQuery(t *testing.T) {
	svc := newFakeService()
	h := newTestHandler(t, svc)

	rr, resp := doJSON(t, h, http.MethodPost, "/query",
		`{"query":"what is it?","document_ids":["doc-2","guide.pdf"],"target_language":"fr","top_k":3}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if resp.Data.(map[string]interface{})["response"] != "answer" {
		t.Fatalf("unexpected payload: %v", resp.Data)
	}

	got := svc.lastAsk
	if strings.Join(got.Filenames, ",") != "notes.docx,guide.pdf" {
		t.Fatalf("document ids should resolve to filenames, got %v", got.Filenames)
	}
	if got.TargetLanguage != "fr" || got.TopK != 3 {
		t.Fatalf("unexpected ask request: %+v", got)
	}
}

func TestQueryValidation(t *testing.T) {
	svc := newFakeService()
	h := newTestHandler(t, svc)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{"query":`, want: http.StatusBadRequest},
		{name: "empty query", body: `{"query":"  "}`, want: http.StatusBadRequest},
		{name: "negative top_k", body: `{"query":"q","top_k":-1}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := doJSON(t, h, http.MethodPost, "/query", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}

	svc.askErr = fmt.Errorf("index: %w", retrieval.ErrDimensionMismatch)
	rr, resp := doJSON(t, h, http.MethodPost, "/query", `{"query":"q"}`)
	if rr.Code != http.StatusInternalServerError || resp.Message != "query failed" {
		t.Fatalf("expected sanitized 500, got %d %q", rr.Code, resp.Message)
	}
}

func TestSummary(t *testing.T) {
	svc := newFakeService()
	h := newTestHandler(t, svc)

	rr, _ := doJSON(t, h, http.MethodPost, "/summary", `{"document_id":"doc-1","summary_type":"small"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if svc.lastSummary != "guide.pdf" || svc.lastKind != rag.SummarySmall {
		t.Fatalf("unexpected summary call: %q %q", svc.lastSummary, svc.lastKind)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/summary", `{"filename":"notes.docx"}`)
	if rr.Code != http.StatusOK || svc.lastKind != rag.SummaryMedium {
		t.Fatalf("default summary type should be medium, got %d %q", rr.Code, svc.lastKind)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/summary", `{"filename":"notes.docx","summary_type":"huge"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid summary type, got %d", rr.Code)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/summary", `{"filename":"missing.txt"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/summary", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without document, got %d", rr.Code)
	}
}

func TestQuestionsAndLanguages(t *testing.T) {
	h := newTestHandler(t, newFakeService())

	rr, resp := doJSON(t, h, http.MethodPost, "/questions", `{"document_id":"doc-2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp.Data.(map[string]interface{})["filename"] != "notes.docx" {
		t.Fatalf("unexpected payload: %v", resp.Data)
	}

	rr, resp = doJSON(t, h, http.MethodGet, "/languages", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	langs := resp.Data.(map[string]interface{})["languages"].([]interface{})
	if len(langs) != 1 {
		t.Fatalf("unexpected languages: %v", langs)
	}
}

func TestCORSAndMetrics(t *testing.T) {
	h := newTestHandler(t, newFakeService())

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight failed: %d %v", rr.Code, rr.Header())
	}

	doJSON(t, h, http.MethodGet, "/documents", "")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `talkdoc_http_requests_total{`) ||
		!strings.Contains(rr.Body.String(), `route="/documents"`) {
		t.Fatalf("request metrics missing:\n%s", rr.Body.String())
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.AllowedOrigins = []string{"https://app.example"}
	h := NewServer(cfg, newFakeService(), nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("allowed origin not echoed: %v", rr.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected origin allowed: %v", rr.Header())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("metrics should be disabled without registry, got %d", rr.Code)
	}
}
