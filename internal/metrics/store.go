package metrics

import "github.com/prometheus/client_golang/prometheus"

// Local catalog store metrics.
var (
	StoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "ops_total",
			Help:      "Store commands by operation and outcome",
		},
		[]string{"op", "status"},
	)

	StoreOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_duration_seconds",
			Help:      "Store command latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		},
		[]string{"op"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache lookups by result",
		},
		[]string{"result"},
	)
)

// ObserveStoreOp records one store command. status is "ok", "miss" or "error".
func ObserveStoreOp(op, status string, seconds float64) {
	StoreOpsTotal.WithLabelValues(op, status).Inc()
	StoreOpDuration.WithLabelValues(op).Observe(seconds)
}
