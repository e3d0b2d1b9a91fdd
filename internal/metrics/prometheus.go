package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Negotiation metrics
	NegotiationTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_negotiation_turns_total",
			Help: "Total number of negotiation turns",
		},
		[]string{"outcome"}, // outcome: respond|priced|not_found|error
	)

	NegotiationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hermes_negotiation_duration_seconds",
			Help:    "End-to-end negotiation turn duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	DiscountClamped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hermes_discount_clamped_total",
			Help: "Pricing decisions whose discount exceeded the margin and was clamped",
		},
	)

	// Inference metrics
	InferenceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_inference_calls_total",
			Help: "Total number of structured inference calls",
		},
		[]string{"schema", "status"}, // status: success|invalid|unavailable
	)

	InferenceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_inference_latency_seconds",
			Help:    "Inference call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"schema"},
	)

	// Feature store metrics
	StoreReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_store_reads_total",
			Help: "Total number of feature store reads",
		},
		[]string{"store", "status"}, // store: cold|hot, status: hit|miss|error
	)
)

func init() {
	prometheus.MustRegister(
		NegotiationTurns,
		NegotiationDuration,
		DiscountClamped,
		InferenceCalls,
		InferenceLatency,
		StoreReads,
	)
}

// Handler returns the HTTP handler exposing all registered metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
