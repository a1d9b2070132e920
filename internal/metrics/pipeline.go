package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PipelineStageDuration = histogram("pipeline_stage_duration_seconds",
		"Time spent in each query stage", []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}, "stage", "status")

	// PipelineOutcomesTotal is labelled with the error kind, or "ok".
	PipelineOutcomesTotal = counter("pipeline_outcomes_total", "Finished queries by outcome", "kind")

	// IngestChunksTotal status is "stored" or "failed".
	IngestChunksTotal = counter("ingest_chunks_total", "Chunks handled by ingestion", "status")

	// LanguageDetectionsTotal outcome is "detected" or "fallback".
	LanguageDetectionsTotal = counter("language_detections_total", "Question language detections", "outcome")
)

var pipeline = group{collectors: []prometheus.Collector{
	PipelineStageDuration, PipelineOutcomesTotal, IngestChunksTotal, LanguageDetectionsTotal,
}}

// RegisterPipelineMetrics registers query, ingestion and language collectors.
func RegisterPipelineMetrics() { pipeline.register() }
