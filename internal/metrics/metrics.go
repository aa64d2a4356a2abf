package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Diagnosis service metrics for production monitoring
var (
	// Analysis metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchlens_ai_analyses_total",
			Help: "Total number of analysis runs started",
		},
		[]string{"status"}, // completed/degraded/cancelled
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batchlens_ai_analysis_duration_seconds",
			Help:    "Analysis run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
		[]string{"problem_type"},
	)

	AnalysisRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batchlens_ai_analysis_rounds",
			Help:    "Reasoning rounds used per analysis run",
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		},
	)

	AnalysisConfidence = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batchlens_ai_analysis_confidence",
			Help:    "Aggregate confidence of completed analyses",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"problem_type"},
	)

	// LLM metrics
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchlens_ai_llm_requests_total",
			Help: "Total number of LLM API requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchlens_ai_llm_tokens_total",
			Help: "Total number of LLM tokens consumed",
		},
		[]string{"provider", "model", "type"}, // type: input/output
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batchlens_ai_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"provider", "model"},
	)

	// Artifact metrics
	ArtifactFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchlens_ai_artifact_fetches_total",
			Help: "Total number of evidence artifact reads",
		},
		[]string{"status"}, // ok/not_found/error
	)

	ArtifactBytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "batchlens_ai_artifact_bytes_total",
			Help: "Total bytes of artifact content read (after truncation)",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batchlens_ai_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batchlens_ai_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: inbound/outbound
	)
)
