package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/kariantti/NuGetGallery/internal/config"
	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/output"
	"github.com/kariantti/NuGetGallery/internal/search"
	"github.com/kariantti/NuGetGallery/internal/store"
	"github.com/kariantti/NuGetGallery/internal/telemetry"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	sort    string
	take    int
	format  string // "text", "json"
	metrics bool   // dump Prometheus metrics to stderr afterwards
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <term...>",
		Short: "Search the package index",
		Long: `Search the package index and print matching packages in rank order.

The term is matched against package id, title, tags, description and authors.
An exact id match ranks above an id prefix match, which ranks above text
matches. Sort modes:
  popularity  download count, highest first (default)
  relevance   match score
  recency     publish date, newest first
  alphabetic  package id, A to Z`,
		Example: `  gallerysearch search json
  gallerysearch search "logging abstractions" --sort relevance -n 5
  gallerysearch search newtonsoft --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, term, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.sort, "sort", "s", "", "Sort mode: "+strings.Join(search.SortTokens, ", ")+" (default from config)")
	cmd.Flags().IntVarP(&opts.take, "take", "n", 0, "Maximum number of packages to print (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print Prometheus metrics for this search to stderr")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, term string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return errors.ValidationError(fmt.Sprintf("unknown output format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	sortToken := opts.sort
	if sortToken == "" {
		sortToken = cfg.Search.DefaultSort
	}
	take := opts.take
	if !cmd.Flags().Changed("take") {
		take = cfg.Search.DefaultTake
	}

	weights, err := search.FieldWeightsFromConfig(cfg.Search.FieldWeights)
	if err != nil {
		return err
	}

	catalog, err := store.NewSQLiteCatalog(cfg.Catalog.Path, store.CatalogOptions{
		Driver:            cfg.Catalog.Driver,
		LookupBatchSize:   cfg.Catalog.LookupBatchSize,
		LookupConcurrency: cfg.Catalog.LookupConcurrency,
	})
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	index := store.NewPackageIndex(cfg.Index.Path)
	serviceOpts := []search.ServiceOption{search.WithFieldWeights(weights)}

	var (
		metrics  *telemetry.QueryMetrics
		registry *prometheus.Registry
	)
	if cfg.Telemetry.IsEnabled() {
		metrics = telemetry.NewQueryMetrics(telemetry.QueryMetricsConfig{
			TopTermsCapacity:    cfg.Telemetry.TopTermsCapacity,
			ZeroResultsCapacity: cfg.Telemetry.ZeroResultCapacity,
		})
		if opts.metrics {
			collectors := telemetry.NewCollectors()
			registry = prometheus.NewRegistry()
			if err := collectors.Register(registry); err != nil {
				return errors.InternalError("cannot register search metrics", err)
			}
			metrics.WithCollectors(collectors)
		}
		serviceOpts = append(serviceOpts, search.WithMetrics(metrics))
	}

	svc, err := search.NewService(index, catalog, serviceOpts...)
	if err != nil {
		return err
	}

	res, err := svc.Search(ctx, term, sortToken, take)
	if err != nil {
		return err
	}

	if metrics != nil {
		slog.Debug("search_metrics", slog.String("summary", metrics.Snapshot().Summary()))
	}

	// Diagnostics go to stderr so JSON output stays parseable.
	diag := output.New(cmd.ErrOrStderr())
	if res.Count == 0 && !index.Exists() {
		diag.Warningf("No package index at %s", index.Path())
	}
	if opts.metrics {
		if registry == nil {
			diag.Warning("Telemetry is disabled in configuration; no metrics recorded")
		} else if err := writeMetrics(cmd.ErrOrStderr(), registry); err != nil {
			return err
		}
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(res)
	}
	out.Results(term, search.SelectSort(sortToken), res)
	return nil
}

// writeMetrics renders every family in reg in the Prometheus text format.
func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.InternalError("cannot gather search metrics", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
