package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kariantti/NuGetGallery/internal/config"
	"github.com/kariantti/NuGetGallery/internal/output"
	"github.com/kariantti/NuGetGallery/internal/store"
)

// statusReport is the JSON shape of `gallerysearch status --json`.
type statusReport struct {
	IndexPath     string `json:"index_path"`
	IndexReady    bool   `json:"index_ready"`
	CatalogPath   string `json:"catalog_path"`
	CatalogDriver string `json:"catalog_driver"`
	Packages      int    `json:"packages"`
	DefaultSort   string `json:"default_sort"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index and catalog status",
		Long:  `Report whether the package index is built and how many packages the catalog holds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := config.Load(workDir)
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

	count, err := catalog.Count(cmd.Context())
	if err != nil {
		return err
	}

	index := store.NewPackageIndex(cfg.Index.Path)
	report := statusReport{
		IndexPath:     index.Path(),
		IndexReady:    index.Exists(),
		CatalogPath:   cfg.Catalog.Path,
		CatalogDriver: cfg.Catalog.Driver,
		Packages:      count,
		DefaultSort:   cfg.Search.DefaultSort,
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(report)
	}

	if report.IndexReady {
		out.Successf("Index ready: %s", report.IndexPath)
	} else {
		out.Warningf("Index not built: %s", report.IndexPath)
	}
	out.Statusf("📦", "Catalog: %d packages (%s, driver %s)", report.Packages, report.CatalogPath, report.CatalogDriver)
	out.Statusf("🔢", "Default sort: %s", report.DefaultSort)
	return nil
}
