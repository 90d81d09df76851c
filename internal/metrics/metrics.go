package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewire_items_fetched_total",
			Help: "Raw items retrieved from connectors",
		},
		[]string{"source_type"},
	)

	ItemsNormalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewire_items_normalized_total",
			Help: "Canonical items created or refreshed",
		},
		[]string{"outcome"},
	)

	ItemsClustered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsewire_items_clustered_total",
			Help: "Successful cluster assignments",
		},
	)

	AggregatesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pulsewire_aggregates_created_total",
			Help: "New story aggregates seeded by the clustering engine",
		},
	)

	SummariesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewire_summaries_generated_total",
			Help: "Summary versions inserted, by provider",
		},
		[]string{"provider"},
	)

	RunsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulsewire_runs_total",
			Help: "Ingestion runs finalized, by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		ItemsFetched,
		ItemsNormalized,
		ItemsClustered,
		AggregatesCreated,
		SummariesGenerated,
		RunsCompleted,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
