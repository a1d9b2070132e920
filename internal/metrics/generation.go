package metrics

import "github.com/prometheus/client_golang/prometheus"

// Provider call metrics for answer generation.
var (
	GenerationRequestsTotal = counter("generation_requests_total",
		"Chat completion calls by outcome", "provider", "model", "status")
	GenerationRequestDuration = histogram("generation_request_duration_seconds",
		"Chat completion latency", []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30}, "provider", "model")
	// GenerationTokensTotal type is "prompt" or "completion".
	GenerationTokensTotal = counter("generation_tokens_total",
		"Tokens billed for generation", "provider", "model", "type")
	GenerationErrorsTotal = counter("generation_errors_total",
		"Failed chat completions by cause", "provider", "model", "error_type")
)

var generation = group{collectors: []prometheus.Collector{
	GenerationRequestsTotal, GenerationRequestDuration, GenerationTokensTotal, GenerationErrorsTotal,
}}

// RegisterGenerationMetrics registers the generation collectors. Safe to call repeatedly.
func RegisterGenerationMetrics() { generation.register() }
