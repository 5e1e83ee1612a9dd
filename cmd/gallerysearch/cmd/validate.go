package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kariantti/NuGetGallery/internal/config"
	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/output"
	"github.com/kariantti/NuGetGallery/internal/search"
	"github.com/kariantti/NuGetGallery/internal/store"
	"github.com/kariantti/NuGetGallery/internal/validation"
)

type validateOptions struct {
	suite      string
	jsonOutput bool
}

func newValidateCmd() *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run relevance checks",
		Long: `Run ranking and negative queries and report which return the expected packages.

Without --suite, the bundled suite is seeded into a temporary gallery, which
checks the ranking rules themselves. With --suite, the suite's queries run
against the configured index and catalog; its packages section is ignored.`,
		Example: `  gallerysearch validate
  gallerysearch validate --suite relevance.yaml --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.suite, "suite", "", "Suite YAML to run against the configured gallery")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output report as JSON")

	return cmd
}

func runValidate(ctx context.Context, cmd *cobra.Command, opts validateOptions) error {
	suite, searcher, cleanup, err := validationTarget(ctx, opts.suite)
	if err != nil {
		return err
	}
	defer cleanup()

	report := validation.NewValidator(searcher, 0).Run(ctx, suite)

	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		if err := out.JSON(report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	if !report.Passed() {
		return errors.New(errors.ErrCodeSearchFailed,
			fmt.Sprintf("%d relevance checks failed", len(report.Failures())), nil)
	}
	return nil
}

// validationTarget returns the suite and the searcher it runs against.
func validationTarget(ctx context.Context, suitePath string) (*validation.Suite, search.Searcher, func(), error) {
	if suitePath == "" {
		suite, err := validation.DefaultSuite()
		if err != nil {
			return nil, nil, nil, err
		}
		dir, err := os.MkdirTemp("", "gallerysearch-validate-")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create temp gallery: %w", err)
		}
		svc, closeCatalog, err := suite.Seed(ctx, dir)
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, nil, nil, err
		}
		return suite, svc, func() {
			_ = closeCatalog()
			_ = os.RemoveAll(dir)
		}, nil
	}

	suite, err := validation.LoadSuite(suitePath)
	if err != nil {
		return nil, nil, nil, errors.ValidationError("cannot load suite", err).WithDetail("path", suitePath)
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, nil, nil, err
	}
	weights, err := search.FieldWeightsFromConfig(cfg.Search.FieldWeights)
	if err != nil {
		return nil, nil, nil, err
	}
	catalog, err := store.NewSQLiteCatalog(cfg.Catalog.Path, store.CatalogOptions{
		Driver:            cfg.Catalog.Driver,
		LookupBatchSize:   cfg.Catalog.LookupBatchSize,
		LookupConcurrency: cfg.Catalog.LookupConcurrency,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	svc, err := search.NewService(store.NewPackageIndex(cfg.Index.Path), catalog, search.WithFieldWeights(weights))
	if err != nil {
		_ = catalog.Close()
		return nil, nil, nil, err
	}
	return suite, svc, func() { _ = catalog.Close() }, nil
}

func printReport(out *output.Writer, report *validation.Report) {
	for _, res := range report.Ranking {
		printResult(out, res)
	}
	for _, res := range report.Negative {
		printResult(out, res)
	}
	out.Newline()
	out.Statusf("📊", "Ranking: %d/%d passed, negative: %d/%d passed",
		report.RankingPass, len(report.Ranking), report.NegativePass, len(report.Negative))
}

func printResult(out *output.Writer, res validation.TestResult) {
	label := fmt.Sprintf("%s %s (%q)", res.Spec.ID, res.Spec.Name, res.Spec.Query)
	if res.Passed {
		out.Success(label)
		return
	}
	out.Error(label)
	out.Status("", res.Error)
}
