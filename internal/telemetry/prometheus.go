package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gallerysearch"

// Collectors holds the Prometheus metrics fed by QueryMetrics.
type Collectors struct {
	SearchesTotal         *prometheus.CounterVec
	SearchDuration        *prometheus.HistogramVec
	StaleHitsDroppedTotal prometheus.Counter
	IndexUnavailableTotal prometheus.Counter
	ReturnedPackages      prometheus.Histogram
}

// NewCollectors creates an unregistered set of search collectors.
func NewCollectors() *Collectors {
	return &Collectors{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of package searches",
			},
			[]string{"sort", "outcome"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Package search duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"sort"},
		),
		StaleHitsDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_hits_dropped_total",
			Help:      "Index hits dropped because the catalog no longer has the package",
		}),
		IndexUnavailableTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_unavailable_total",
			Help:      "Searches answered empty because the index was missing or being rebuilt",
		}),
		ReturnedPackages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_returned_packages",
			Help:      "Number of packages returned per search",
			Buckets:   []float64{0, 1, 10, 20, 50, 100, 250, 1000},
		}),
	}
}

// Register adds every collector to reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.SearchesTotal,
		c.SearchDuration,
		c.StaleHitsDroppedTotal,
		c.IndexUnavailableTotal,
		c.ReturnedPackages,
	} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collectors) observe(event SearchEvent, outcome Outcome) {
	c.SearchesTotal.WithLabelValues(event.Sort, string(outcome)).Inc()
	c.SearchDuration.WithLabelValues(event.Sort).Observe(event.Latency.Seconds())
	if event.StaleDropped > 0 {
		c.StaleHitsDroppedTotal.Add(float64(event.StaleDropped))
	}
	if event.IndexUnavailable {
		c.IndexUnavailableTotal.Inc()
	}
	if !event.Failed {
		c.ReturnedPackages.Observe(float64(event.Returned))
	}
}
