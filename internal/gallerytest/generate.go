// Package gallerytest generates synthetic gallery packages and seeds
// catalogs and indexes from them, for benchmarks and local trials.
package gallerytest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/kariantti/NuGetGallery/internal/store"
)

// Word pools for realistic package names.
var (
	vendors = []string{
		"Contoso", "Fabrikam", "Northwind", "Tailspin", "Litware",
		"Adatum", "Proseware", "Woodgrove", "Humongous", "Wingtip",
	}
	areas = []string{
		"Json", "Logging", "Http", "Caching", "Messaging",
		"Validation", "Serialization", "Compression", "Crypto", "Scheduling",
		"Data", "Identity", "Configuration", "Testing", "Storage",
	}
	suffixes = []string{
		"", "Core", "Extensions", "Abstractions", "Client",
		"Server", "Analyzers", "Tools", "Primitives", "Redis",
	}
	adjectives = []string{
		"fast", "simple", "lightweight", "async", "structured",
		"high-performance", "extensible", "cross-platform", "minimal", "fluent",
	}
	nouns = []string{
		"library", "framework", "toolkit", "runtime", "adapter",
		"provider", "middleware", "helpers", "bindings", "driver",
	}
)

// Options controls Packages.
type Options struct {
	Count int
	Seed  uint64
	// Since is the earliest publish date; packages are spread over the
	// following two years.
	Since time.Time
}

// DefaultOptions returns 1000 packages with a fixed seed.
func DefaultOptions() Options {
	return Options{
		Count: 1000,
		Seed:  42,
		Since: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Packages returns opts.Count deterministic packages keyed 1..Count. Ids are
// unique; download counts follow a long tail.
func Packages(opts Options) []*store.Package {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	seen := make(map[string]int, opts.Count)
	pkgs := make([]*store.Package, 0, opts.Count)

	for key := 1; key <= opts.Count; key++ {
		vendor := pick(rng, vendors)
		area := pick(rng, areas)
		id := vendor + "." + area
		if s := pick(rng, suffixes); s != "" {
			id += "." + s
		}
		// Disambiguate repeats so ids stay unique, as in a real gallery.
		if n := seen[strings.ToLower(id)]; n > 0 {
			id = fmt.Sprintf("%s%d", id, n+1)
		}
		seen[strings.ToLower(id)]++

		adjective := pick(rng, adjectives)
		noun := pick(rng, nouns)
		pkgs = append(pkgs, &store.Package{
			Key:     key,
			ID:      id,
			Version: fmt.Sprintf("%d.%d.%d", rng.IntN(9)+1, rng.IntN(20), rng.IntN(10)),
			Title:   fmt.Sprintf("%s %s", vendor, area),
			Description: fmt.Sprintf("A %s %s %s for .NET by %s.",
				adjective, strings.ToLower(area), noun, vendor),
			Authors:       vendor + " Team",
			Tags:          strings.ToLower(area) + " " + noun + " " + strings.ReplaceAll(adjective, "-", ""),
			DownloadCount: int64(rng.ExpFloat64() * 50_000),
			Published:     opts.Since.Add(time.Duration(rng.Int64N(int64(2 * 365 * 24 * time.Hour)))),
			Listed:        true,
		})
	}
	return pkgs
}

// Queries returns n search terms drawn from the same vocabulary as Packages.
func Queries(n int, seed uint64) []string {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]string, n)
	for i := range out {
		switch i % 3 {
		case 0:
			out[i] = strings.ToLower(pick(rng, areas))
		case 1:
			out[i] = pick(rng, vendors) + "." + pick(rng, areas)
		default:
			out[i] = pick(rng, adjectives) + " " + pick(rng, nouns)
		}
	}
	return out
}

// Seed writes pkgs to catalog and index. The index is written from the same
// records so every indexed key resolves.
func Seed(ctx context.Context, catalog *store.SQLiteCatalog, index *store.PackageIndex, pkgs []*store.Package) error {
	if err := catalog.SavePackages(ctx, pkgs); err != nil {
		return err
	}
	docs := make([]*store.SearchableDocument, len(pkgs))
	for i, p := range pkgs {
		docs[i] = store.NewSearchableDocument(p)
	}
	return index.Write(ctx, docs)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}
