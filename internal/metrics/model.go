package metrics

import "github.com/prometheus/client_golang/prometheus"

// Model API metrics. The call label is "completion" for the reasoner and "embedding" for the embedder.
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "requests_total",
			Help:      "Model API calls by kind, provider, model and outcome",
		},
		[]string{"call", "provider", "model", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "request_duration_seconds",
			Help:      "Model API call latency in seconds, failures included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"call", "provider"},
	)

	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "tokens_total",
			Help:      "Tokens billed by the model API",
		},
		[]string{"call", "model", "type"},
	)
)
