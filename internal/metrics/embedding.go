package metrics

import "github.com/prometheus/client_golang/prometheus"

// Provider call metrics for embeddings.
var (
	EmbeddingRequestsTotal = counter("embedding_requests_total",
		"Embedding provider calls by outcome", "provider", "model", "status")
	EmbeddingRequestDuration = histogram("embedding_request_duration_seconds",
		"Embedding provider call latency", []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, "provider", "model")
	EmbeddingTokensTotal = counter("embedding_tokens_total",
		"Tokens billed for embeddings", "provider", "model", "type")
	EmbeddingErrorsTotal = counter("embedding_errors_total",
		"Failed embedding calls by cause", "provider", "model", "error_type")

	// EmbeddingCacheTotal is labelled "hit" or "miss".
	EmbeddingCacheTotal = counter("embedding_cache_total", "Embedding cache lookups", "result")

	// EmbeddingRetriesTotal counts repeated calls after a transient error.
	EmbeddingRetriesTotal = counter("embedding_retries_total", "Embedding calls retried", "provider")
)

var embedding = group{collectors: []prometheus.Collector{
	EmbeddingRequestsTotal, EmbeddingRequestDuration, EmbeddingTokensTotal,
	EmbeddingErrorsTotal, EmbeddingCacheTotal, EmbeddingRetriesTotal,
}}

// RegisterEmbeddingMetrics registers the embedding collectors. Safe to call repeatedly.
func RegisterEmbeddingMetrics() { embedding.register() }
