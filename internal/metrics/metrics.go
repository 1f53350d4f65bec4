// Package metrics provides Prometheus metrics for the document chat service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DocumentsIngested  *prometheus.CounterVec
	ChunksIndexed      *prometheus.CounterVec
	IngestFailures     prometheus.Counter
	RetrievalsTotal    *prometheus.CounterVec
	RetrievalResults   prometheus.Histogram
	RetrievalDuration  prometheus.Histogram
	EmbeddingCacheHits *prometheus.CounterVec
	EmbeddingRequests  *prometheus.CounterVec
	Translations       *prometheus.CounterVec
	IndexVectors       *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkdoc_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "talkdoc_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		DocumentsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkdoc_documents_ingested_total",
			Help: "Documents ingested, by language",
		}, []string{"language"}),
		ChunksIndexed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkdoc_chunks_indexed_total",
			Help: "Chunks inserted into language indexes",
		}, []string{"language"}),
		IngestFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "talkdoc_ingest_failures_total",
			Help: "Uploads that failed before or during ingestion",
		}),
		RetrievalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkdoc_retrievals_total",
			Help: "Retrieval requests, by query language",
		}, []string{"language"}),
		RetrievalResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "talkdoc_retrieval_results",
			Help:    "Number of passages returned per retrieval",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		RetrievalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "talkdoc_retrieval_duration_seconds",
			Help:    "Duration of the retrieval step in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		EmbeddingCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkdoc_embedding_cache_lookups_total",
			Help: "Embedding cache lookups, by result",
		}, []string{"result"}),
		EmbeddingRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkdoc_embedding_requests_total",
			Help: "Texts sent to the embedding API, by model",
		}, []string{"model"}),
		Translations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkdoc_translations_total",
			Help: "Translation calls, by status",
		}, []string{"status"}),
		IndexVectors: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "talkdoc_index_vectors",
			Help: "Vectors held per language index",
		}, []string{"language"}),
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, statusClass(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveIngest(language string, chunks int) {
	if m == nil {
		return
	}
	m.DocumentsIngested.WithLabelValues(language).Inc()
	m.ChunksIndexed.WithLabelValues(language).Add(float64(chunks))
}

func (m *Metrics) ObserveIngestFailure() {
	if m == nil {
		return
	}
	m.IngestFailures.Inc()
}

func (m *Metrics) ObserveRetrieval(language string, results int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RetrievalsTotal.WithLabelValues(language).Inc()
	m.RetrievalResults.Observe(float64(results))
	m.RetrievalDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EmbeddingCacheHits.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveEmbedding(model string, texts int) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.WithLabelValues(model).Add(float64(texts))
}

func (m *Metrics) ObserveTranslation(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Translations.WithLabelValues(status).Inc()
}

func (m *Metrics) SetIndexVectors(language string, n int) {
	if m == nil {
		return
	}
	m.IndexVectors.WithLabelValues(language).Set(float64(n))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
