package metrics

import "github.com/prometheus/client_golang/prometheus"

// Embedding, cache, and index Prometheus metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rci",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rci",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rci",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rci",
			Name:      "embedding_errors_total",
			Help:      "Total embedding errors after retries",
		},
		[]string{"provider", "model"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rci",
			Name:      "cache_total",
			Help:      "Search cache lookups by result",
		},
		[]string{"result"}, // "hit" / "semantic_hit" / "miss"
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rci",
			Name:      "sync_duration_seconds",
			Help:      "Component tree sync duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	StoreDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rci",
			Name:      "store_documents",
			Help:      "Vector documents currently in the index",
		},
	)
)

var coreMetricsRegistered bool

// RegisterCoreMetrics registers the embedding, cache, and index metrics.
// Must be called once from main.
func RegisterCoreMetrics() {
	if coreMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(EmbeddingErrorsTotal)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(SyncDuration)
	prometheus.MustRegister(StoreDocuments)
	coreMetricsRegistered = true
}
