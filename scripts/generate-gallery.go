//go:build ignore

// Package main seeds a synthetic gallery (catalog and index) for trying the
// CLI and for profiling.
// Usage: go run scripts/generate-gallery.go -packages 10000 -dir /tmp/gallery
//
// The output matches the default config paths, so
// `gallerysearch --dir /tmp/gallery search json` works without a config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kariantti/NuGetGallery/internal/gallerytest"
	"github.com/kariantti/NuGetGallery/internal/store"
)

var (
	numPackages = flag.Int("packages", 1000, "Number of packages to generate")
	outputDir   = flag.String("dir", ".", "Gallery directory")
	seed        = flag.Uint64("seed", 42, "Random seed for reproducibility")
	driver      = flag.String("driver", "sqlite", "Catalog driver: sqlite or sqlite3")
)

func main() {
	flag.Parse()

	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	start := time.Now()
	dataDir := filepath.Join(*outputDir, ".gallerysearch")

	opts := store.DefaultCatalogOptions()
	opts.Driver = *driver
	catalog, err := store.NewSQLiteCatalog(filepath.Join(dataDir, "catalog.db"), opts)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	genOpts := gallerytest.DefaultOptions()
	genOpts.Count = *numPackages
	genOpts.Seed = *seed

	index := store.NewPackageIndex(filepath.Join(dataDir, "index"))
	if err := gallerytest.Seed(ctx, catalog, index, gallerytest.Packages(genOpts)); err != nil {
		return err
	}

	fmt.Printf("Generated %d packages in %s (%s)\n", *numPackages, dataDir, time.Since(start).Round(time.Millisecond))
	return nil
}
