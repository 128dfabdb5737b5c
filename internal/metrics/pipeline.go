package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postdex"

// Document pipeline Prometheus metrics.
var (
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Document builds by document type and outcome",
		},
		[]string{"doc_type", "outcome"}, // "built" / "rejected" / "error"
	)

	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Document build duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"doc_type"},
	)

	ExtractorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_failures_total",
			Help:      "Optional extractor failures skipped during builds",
		},
		[]string{"extractor"},
	)

	FieldsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_dropped_total",
			Help:      "Dynamic fields dropped because their value did not fit the template type",
		},
		[]string{"template"},
	)

	ReindexItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reindex_items_total",
			Help:      "Entities processed by reindex runs",
		},
		[]string{"status"}, // "ok" / "skipped" / "error"
	)

	ReindexRunsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reindex_runs_in_flight",
			Help:      "Bulk reindex runs currently executing",
		},
	)

	PartialUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_updates_total",
			Help:      "Incremental updates by field and how they were applied",
		},
		[]string{"field", "mode"}, // "patch" / "rebuild"
	)
)

var registerOnce sync.Once

// Register registers every collector of this package with the default
// registry. Must be called from main; repeated calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			BuildsTotal,
			BuildDuration,
			ExtractorFailuresTotal,
			FieldsDroppedTotal,
			ReindexItemsTotal,
			ReindexRunsInFlight,
			PartialUpdatesTotal,
		)
	})
}
