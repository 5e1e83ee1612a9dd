// Package search ranks catalog packages for a free-text term. It builds a
// weighted multi-field bleve query, runs it against the package index with
// the requested sort and resolves the hits through the catalog.
package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/store"
	"github.com/kariantti/NuGetGallery/internal/telemetry"
)

// Searcher is the caller-facing search operation.
type Searcher interface {
	Search(ctx context.Context, term, sortToken string, take int) (*Results, error)
}

// Results is a rank-ordered page of packages plus the total match count.
type Results struct {
	Packages []*store.Package `json:"packages"`
	// Count is the number of documents the index matched, before the window
	// cap, truncation to take and stale-entry filtering.
	Count int `json:"count"`
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = stderrors.New("nil dependency")

// Service orchestrates query building, index search and catalog projection.
// It is safe for concurrent use.
type Service struct {
	builder  *QueryBuilder
	executor *Executor
	catalog  store.Catalog
	metrics  *telemetry.QueryMetrics
}

var _ Searcher = (*Service)(nil)

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	weights FieldWeights
	metrics *telemetry.QueryMetrics
}

// WithFieldWeights replaces the default ranking weights.
func WithFieldWeights(w FieldWeights) ServiceOption {
	return func(o *serviceOptions) {
		o.weights = w
	}
}

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.QueryMetrics) ServiceOption {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// NewService creates a search service over index and catalog.
func NewService(index IndexSource, catalog store.Catalog, opts ...ServiceOption) (*Service, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: package index is required", ErrNilDependency)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrNilDependency)
	}

	o := serviceOptions{weights: DefaultFieldWeights()}
	for _, opt := range opts {
		opt(&o)
	}

	builder, err := NewQueryBuilder(o.weights)
	if err != nil {
		return nil, err
	}

	return &Service{
		builder:  builder,
		executor: NewExecutor(index),
		catalog:  catalog,
		metrics:  o.metrics,
	}, nil
}

// Search returns up to min(take, WindowSize) packages matching term in the
// order sortToken selects. Count is always the full match count, so take <= 0
// returns no packages but still reports it. An index that is missing or being
// rebuilt gives an empty result.
func (s *Service) Search(ctx context.Context, term, sortToken string, take int) (*Results, error) {
	start := time.Now()

	if strings.TrimSpace(term) == "" {
		return nil, errors.ValidationError("search term is required", nil).
			WithSuggestion("Provide at least one word to search for")
	}

	sort := SelectSort(sortToken)
	event := telemetry.SearchEvent{Term: term, Sort: sort.String()}
	defer func() {
		event.Latency = time.Since(start)
		s.record(event)
	}()

	slog.Debug("search_started",
		slog.String("term", term),
		slog.String("sort", sort.String()),
		slog.Int("take", take))

	q, err := s.builder.Build(term)
	if err != nil {
		event.Failed = true
		return nil, err
	}

	hits, total, unavailable, err := s.executor.execute(ctx, q, sort)
	if err != nil {
		event.Failed = true
		return nil, err
	}
	event.IndexUnavailable = unavailable
	event.TotalCount = total

	if limit := min(max(take, 0), WindowSize); len(hits) > limit {
		hits = hits[:limit]
	}

	if len(hits) == 0 {
		return &Results{Packages: []*store.Package{}, Count: total}, nil
	}

	pkgs, err := Project(ctx, hits, s.catalog)
	if err != nil {
		event.Failed = true
		return nil, err
	}

	if dropped := len(hits) - len(pkgs); dropped > 0 {
		event.StaleDropped = dropped
		slog.Debug("catalog_stale_hits",
			slog.String("term", term),
			slog.Int("dropped", dropped))
	}
	event.Returned = len(pkgs)

	slog.Debug("search_complete",
		slog.String("term", term),
		slog.String("sort", sort.String()),
		slog.Int("count", total),
		slog.Int("returned", len(pkgs)),
		slog.Duration("latency", time.Since(start)))

	return &Results{Packages: pkgs, Count: total}, nil
}

// SearchByRelevance searches term by score with the full window.
func (s *Service) SearchByRelevance(ctx context.Context, term string) (*Results, error) {
	return s.Search(ctx, term, SortTokenRelevance, WindowSize)
}

// Weights returns the field weights the service ranks with.
func (s *Service) Weights() FieldWeights {
	return s.builder.Weights()
}

func (s *Service) record(event telemetry.SearchEvent) {
	if s.metrics == nil {
		return
	}
	event.Timestamp = time.Now()
	s.metrics.Record(event)
}
