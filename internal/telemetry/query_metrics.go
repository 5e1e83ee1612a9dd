// Package telemetry records local search telemetry: which sorts are used,
// what people search for, which searches come back empty and how long they take.
// Nothing is reported externally unless the caller registers the Prometheus
// collectors with its own registry.
package telemetry

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Search Event
// =============================================================================

// Outcome labels a finished search.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeEmpty       Outcome = "empty"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeError       Outcome = "error"
)

// SearchEvent describes one completed search call.
type SearchEvent struct {
	Term             string
	Sort             string
	TotalCount       int
	Returned         int
	StaleDropped     int
	IndexUnavailable bool
	Failed           bool
	Latency          time.Duration
	Timestamp        time.Time
}

// IsZeroResult reports whether the index matched nothing.
func (e SearchEvent) IsZeroResult() bool {
	return e.TotalCount == 0
}

// Outcome classifies the event. Failure wins over unavailability.
func (e SearchEvent) Outcome() Outcome {
	switch {
	case e.Failed:
		return OutcomeError
	case e.IndexUnavailable:
		return OutcomeUnavailable
	case e.IsZeroResult():
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest one when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
		return result
	}
	n := copy(result, b.items[b.head:])
	copy(result[n:], b.items[:b.head])
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all items.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.items)
	b.head = 0
	b.size = 0
}

// =============================================================================
// Term Extraction
// =============================================================================

// ExtractTerms splits a search term into lower-cased words of at least two
// characters. Package ids like "ef" or "ui" are common, so the floor is lower
// than a prose tokenizer would use.
func ExtractTerms(term string) []string {
	words := strings.Fields(strings.ToLower(term))
	terms := words[:0]
	for _, w := range words {
		if len(w) >= 2 {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Snapshot
// =============================================================================

// QueryMetricsSnapshot is an immutable copy of the collected metrics.
type QueryMetricsSnapshot struct {
	SortCounts          map[string]int64        `json:"sort_counts"`
	OutcomeCounts       map[Outcome]int64       `json:"outcome_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalSearches       int64                   `json:"total_searches"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	StaleHitsDropped    int64                   `json:"stale_hits_dropped"`
	IndexUnavailable    int64                   `json:"index_unavailable"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of searches that matched nothing.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalSearches) * 100
}

// Summary returns a one-line human readable digest.
func (s *QueryMetricsSnapshot) Summary() string {
	if s.TotalSearches == 0 {
		return "No searches recorded"
	}
	return fmt.Sprintf("searches=%d, zero-result=%.1f%%, stale-dropped=%d, unavailable=%d",
		s.TotalSearches, s.ZeroResultPercentage(), s.StaleHitsDropped, s.IndexUnavailable)
}

// =============================================================================
// Query Metrics
// =============================================================================

// QueryMetricsConfig configures the collector.
type QueryMetricsConfig struct {
	TopTermsCapacity    int // Max distinct terms tracked (default: 1000)
	ZeroResultsCapacity int // Max zero-result terms kept (default: 100)
}

// DefaultQueryMetricsConfig returns sensible defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:    1000,
		ZeroResultsCapacity: 100,
	}
}

// QueryMetrics collects search telemetry in memory.
// Thread-safe for concurrent access.
type QueryMetrics struct {
	mu sync.RWMutex

	sortCounts       map[string]int64
	outcomes         map[Outcome]int64
	topTerms         *lru.Cache[string, int64]
	zeroResults      *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	totalSearches    int64
	zeroResultCount  int64
	staleDropped     int64
	indexUnavailable int64
	startTime        time.Time

	collectors *Collectors
}

// NewQueryMetrics creates a collector with the given configuration.
func NewQueryMetrics(cfg QueryMetricsConfig) *QueryMetrics {
	defaults := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = defaults.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = defaults.ZeroResultsCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	return &QueryMetrics{
		sortCounts:  make(map[string]int64),
		outcomes:    make(map[Outcome]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		startTime:   time.Now(),
	}
}

// WithCollectors mirrors every recorded event into the Prometheus collectors.
func (m *QueryMetrics) WithCollectors(c *Collectors) *QueryMetrics {
	m.mu.Lock()
	m.collectors = c
	m.mu.Unlock()
	return m
}

// Record captures one search event.
func (m *QueryMetrics) Record(event SearchEvent) {
	outcome := event.Outcome()

	m.mu.Lock()
	m.sortCounts[event.Sort]++
	m.outcomes[outcome]++
	m.totalSearches++

	for _, term := range ExtractTerms(event.Term) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() && !event.Failed && !event.IndexUnavailable {
		m.zeroResults.Add(event.Term)
		m.zeroResultCount++
	}
	if event.IndexUnavailable {
		m.indexUnavailable++
	}
	m.staleDropped += int64(event.StaleDropped)
	m.latencies[LatencyToBucket(event.Latency)]++
	collectors := m.collectors
	m.mu.Unlock()

	if collectors != nil {
		collectors.observe(event, outcome)
	}
}

// Snapshot returns a copy of the current metrics.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sortCounts := make(map[string]int64, len(m.sortCounts))
	for k, v := range m.sortCounts {
		sortCounts[k] = v
	}
	outcomes := make(map[Outcome]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	topTerms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	slices.SortStableFunc(topTerms, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Term, b.Term)
	})

	return &QueryMetricsSnapshot{
		SortCounts:          sortCounts,
		OutcomeCounts:       outcomes,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalSearches:       m.totalSearches,
		ZeroResultCount:     m.zeroResultCount,
		StaleHitsDropped:    m.staleDropped,
		IndexUnavailable:    m.indexUnavailable,
		Since:               m.startTime,
	}
}

// Reset clears all in-memory aggregates. Prometheus counters are left alone.
func (m *QueryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.sortCounts)
	clear(m.outcomes)
	clear(m.latencies)
	m.topTerms.Purge()
	m.zeroResults.Clear()
	m.totalSearches = 0
	m.zeroResultCount = 0
	m.staleDropped = 0
	m.indexUnavailable = 0
	m.startTime = time.Now()
}
