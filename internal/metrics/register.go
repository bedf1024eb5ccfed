// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hwfinder"

var registerOnce sync.Once

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpInFlight,
		httpRequestDuration,
		httpRequestsTotal,
		ModelRequestsTotal,
		ModelRequestDuration,
		ModelTokensTotal,
		StoreOpsTotal,
		StoreOpDuration,
		EmbeddingCacheTotal,
		ExtractionsTotal,
		SourceRequestsTotal,
		SourceRequestDuration,
		RetrievalOutcomesTotal,
		DialogueTurnsTotal,
		ActiveConversations,
		DetailCacheTotal,
	}
}

// Register adds every collector to the default registry once. Later calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(collectors()...)
	})
}
