package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_Register(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollectors()

	require.NoError(t, c.Register(reg))

	// Registering the same set twice must fail
	assert.Error(t, c.Register(reg))
}

func TestQueryMetrics_WithCollectors_MirrorsEvents(t *testing.T) {
	// Given: metrics wired to a fresh collector set
	c := NewCollectors()
	m := NewQueryMetrics(DefaultQueryMetricsConfig()).WithCollectors(c)

	// When: a mix of outcomes is recorded
	m.Record(SearchEvent{Term: "json", Sort: "popularity", TotalCount: 12, Returned: 10, StaleDropped: 2, Latency: 20 * time.Millisecond})
	m.Record(SearchEvent{Term: "json", Sort: "popularity", TotalCount: 12, Returned: 12, Latency: 5 * time.Millisecond})
	m.Record(SearchEvent{Term: "gone", Sort: "relevance", IndexUnavailable: true})
	m.Record(SearchEvent{Term: "bad", Sort: "relevance", Failed: true})

	// Then: counters reflect them
	assert.Equal(t, 2.0, testutil.ToFloat64(c.SearchesTotal.WithLabelValues("popularity", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SearchesTotal.WithLabelValues("relevance", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SearchesTotal.WithLabelValues("relevance", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.StaleHitsDroppedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.IndexUnavailableTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(c.SearchDuration))

	// Failed searches do not observe a returned-packages sample
	var metric dto.Metric
	require.NoError(t, c.ReturnedPackages.Write(&metric))
	assert.Equal(t, uint64(3), metric.GetHistogram().GetSampleCount())
	assert.Equal(t, 22.0, metric.GetHistogram().GetSampleSum())
}

func TestQueryMetrics_Reset_KeepsPrometheusCounters(t *testing.T) {
	c := NewCollectors()
	m := NewQueryMetrics(DefaultQueryMetricsConfig()).WithCollectors(c)
	m.Record(SearchEvent{Term: "json", Sort: "recency", TotalCount: 1, Returned: 1})

	m.Reset()

	assert.Zero(t, m.Snapshot().TotalSearches)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SearchesTotal.WithLabelValues("recency", "ok")))
}
