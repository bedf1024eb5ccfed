package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline metrics: extraction, sources, retrieval, dialogue and details.
var (
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Keyword extractions by result",
		},
		[]string{"result"}, // "ok" / "passthrough"
	)

	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Candidate source calls by source and status",
		},
		[]string{"source", "status"},
	)

	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Candidate source call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	RetrievalOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_outcomes_total",
			Help:      "Retrieval outcomes by kind",
		},
		[]string{"kind"},
	)

	DialogueTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogue_turns_total",
			Help:      "Dialogue turns by resulting status",
		},
		[]string{"status"},
	)

	ActiveConversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Conversations currently held in memory",
		},
	)

	DetailCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detail_cache_total",
			Help:      "Detail resolver cache hits and misses",
		},
		[]string{"result"},
	)
)
