package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for catalog
// selection and dataset assembly.
type Metrics struct {
	EntriesSelected prometheus.Counter
	DatasetsOpened  prometheus.Counter
	OpenErrors      prometheus.Counter

	FixesApplied prometheus.Counter
	FixErrors    prometheus.Counter

	GroupsMerged   prometheus.Counter
	GroupsRejected *prometheus.CounterVec // label: stage={open,fix,merge,verify}

	AssemblyDuration prometheus.Histogram

	// Catalog fetch cache metrics.
	CatalogCache *prometheus.CounterVec // label: result={hit,miss}
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EntriesSelected,
		m.DatasetsOpened,
		m.OpenErrors,
		m.FixesApplied,
		m.FixErrors,
		m.GroupsMerged,
		m.GroupsRejected,
		m.AssemblyDuration,
		m.CatalogCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EntriesSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "entries_selected_total",
			Help:      "Total catalog entries returned by selection.",
		}),
		DatasetsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "datasets_opened_total",
			Help:      "Total datasets opened successfully during assembly.",
		}),
		OpenErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "open_errors_total",
			Help:      "Total per-entry open failures.",
		}),
		FixesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "fixes_applied_total",
			Help:      "Total fix rules applied to datasets.",
		}),
		FixErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "fix_errors_total",
			Help:      "Total corrections that could not be applied.",
		}),
		GroupsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "groups_merged_total",
			Help:      "Total groups merged and verified into the result mapping.",
		}),
		GroupsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "groups_rejected_total",
			Help:      "Rejected entries and groups by assembly stage.",
		}, []string{"stage"}),
		AssemblyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evaltools",
			Name:      "assembly_duration_seconds",
			Help:      "Duration of a complete assemble call.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evaltools",
			Name:      "catalog_cache_total",
			Help:      "Catalog fetch cache lookups by result.",
		}, []string{"result"}),
	}
}
