package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors for the assistant pipeline. Label sets are closed
// vocabularies (tier, operation, tool name, outcome) so cardinality stays
// bounded.
var (
	// OCRLookups counts OCR cache lookups by the tier that answered:
	// memory, store or fetch (provider call).
	OCRLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocr_cache_lookups_total",
			Help: "OCR cache lookups by answering tier.",
		},
		[]string{"tier"},
	)

	// ProviderRetries counts retried provider calls by operation and reason.
	ProviderRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Retried LLM/OCR provider calls.",
		},
		[]string{"op", "reason"},
	)

	// ToolCalls counts tool invocations by tool and outcome (ok|rejected|invalid|error).
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_tool_calls_total",
			Help: "Assistant tool invocations by outcome.",
		},
		[]string{"tool", "outcome"},
	)

	// Turns counts conversation turns by phase (analysis|execute).
	Turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Assistant turns by phase.",
		},
		[]string{"phase"},
	)

	// ExtractionDuration observes structured extraction latency by kind and strategy.
	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Structured extraction latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"kind", "strategy"},
	)
)

func init() {
	prometheus.MustRegister(OCRLookups, ProviderRetries, ToolCalls, Turns, ExtractionDuration)
}
