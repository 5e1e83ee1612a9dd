// Package validation runs data-driven relevance checks against a search
// service: ranking queries with expected top results, and negative queries
// that must never fail.
//
// The bundled suite lives in testdata/suite.yaml and carries its own package
// fixture, so it can be rerun after any ranking change without touching code.
package validation

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kariantti/NuGetGallery/internal/gallerytest"
	"github.com/kariantti/NuGetGallery/internal/search"
	"github.com/kariantti/NuGetGallery/internal/store"
)

//go:embed testdata/suite.yaml
var defaultSuite []byte

// FixturePackage is a catalog record as written in a suite file.
type FixturePackage struct {
	Key         int       `yaml:"key"`
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Tags        string    `yaml:"tags"`
	Description string    `yaml:"description"`
	Authors     string    `yaml:"authors"`
	Downloads   int64     `yaml:"downloads"`
	Published   time.Time `yaml:"published"`
}

// QuerySpec defines a query with expected results.
type QuerySpec struct {
	ID       string   `yaml:"id"`       // e.g. "R3"
	Name     string   `yaml:"name"`     // Human-readable name
	Query    string   `yaml:"query"`    // The search term
	Sort     string   `yaml:"sort"`     // Sort token; empty means the default
	Expected []string `yaml:"expected"` // Ids expected first, in order
	Count    *int     `yaml:"count"`    // Exact match count, when set
	Notes    string   `yaml:"notes"`    // Optional explanation for maintainers
}

// Suite holds a fixture and the queries run against it.
type Suite struct {
	Packages []FixturePackage `yaml:"packages"`
	Ranking  []QuerySpec      `yaml:"ranking"`
	Negative []QuerySpec      `yaml:"negative"`
}

// DefaultSuite parses the bundled suite.
func DefaultSuite() (*Suite, error) {
	return ParseSuite(defaultSuite)
}

// LoadSuite reads a suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file %s: %w", path, err)
	}
	return ParseSuite(data)
}

// ParseSuite parses suite YAML.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite YAML: %w", err)
	}
	return &s, nil
}

// CatalogPackages converts the fixture into catalog records.
func (s *Suite) CatalogPackages() []*store.Package {
	out := make([]*store.Package, 0, len(s.Packages))
	for _, p := range s.Packages {
		out = append(out, &store.Package{
			Key:           p.Key,
			ID:            p.ID,
			Version:       "1.0.0",
			Title:         p.Title,
			Description:   p.Description,
			Authors:       p.Authors,
			Tags:          p.Tags,
			DownloadCount: p.Downloads,
			Published:     p.Published,
			Listed:        true,
		})
	}
	return out
}

// Seed writes the fixture into a catalog and index under dir and returns a
// service over them. Call the returned close function when done.
func (s *Suite) Seed(ctx context.Context, dir string) (*search.Service, func() error, error) {
	catalog, err := store.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"), store.DefaultCatalogOptions())
	if err != nil {
		return nil, nil, err
	}
	index := store.NewPackageIndex(filepath.Join(dir, "index"))
	if err := gallerytest.Seed(ctx, catalog, index, s.CatalogPackages()); err != nil {
		_ = catalog.Close()
		return nil, nil, err
	}
	svc, err := search.NewService(index, catalog)
	if err != nil {
		_ = catalog.Close()
		return nil, nil, err
	}
	return svc, catalog.Close, nil
}

// TestResult captures the outcome of a single query.
type TestResult struct {
	Spec       QuerySpec     `json:"spec"`
	Passed     bool          `json:"passed"`
	Duration   time.Duration `json:"duration_ms"`
	TopResults []string      `json:"top_results"`
	Count      int           `json:"count"`
	Error      string        `json:"error,omitempty"`
}

// Report captures a full run.
type Report struct {
	Timestamp    time.Time    `json:"timestamp"`
	Ranking      []TestResult `json:"ranking"`
	Negative     []TestResult `json:"negative"`
	RankingPass  int          `json:"ranking_pass"`
	NegativePass int          `json:"negative_pass"`
}

// Passed reports whether every query passed.
func (r *Report) Passed() bool {
	return r.RankingPass == len(r.Ranking) && r.NegativePass == len(r.Negative)
}

// Failures returns the failed results.
func (r *Report) Failures() []TestResult {
	var out []TestResult
	for _, res := range slices.Concat(r.Ranking, r.Negative) {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// Validator runs suites against a searcher.
type Validator struct {
	searcher search.Searcher
	take     int
}

// NewValidator creates a validator reading up to take results per query.
func NewValidator(searcher search.Searcher, take int) *Validator {
	if take <= 0 {
		take = 20
	}
	return &Validator{searcher: searcher, take: take}
}

// Run executes every query in s.
func (v *Validator) Run(ctx context.Context, s *Suite) *Report {
	report := &Report{Timestamp: time.Now()}
	for _, spec := range s.Ranking {
		res := v.runRanking(ctx, spec)
		if res.Passed {
			report.RankingPass++
		}
		report.Ranking = append(report.Ranking, res)
	}
	for _, spec := range s.Negative {
		res := v.runNegative(ctx, spec)
		if res.Passed {
			report.NegativePass++
		}
		report.Negative = append(report.Negative, res)
	}
	return report
}

func (v *Validator) search(ctx context.Context, spec QuerySpec) (TestResult, error) {
	res := TestResult{Spec: spec}
	start := time.Now()
	results, err := v.searcher.Search(ctx, spec.Query, spec.Sort, v.take)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.Count = results.Count
	for _, p := range results.Packages {
		res.TopResults = append(res.TopResults, p.ID)
	}
	return res, nil
}

// runRanking passes when the first len(Expected) results equal Expected and
// the count matches, if one is given.
func (v *Validator) runRanking(ctx context.Context, spec QuerySpec) TestResult {
	res, err := v.search(ctx, spec)
	if err != nil {
		return res
	}
	n := min(len(spec.Expected), len(res.TopResults))
	switch {
	case !slices.Equal(res.TopResults[:n], spec.Expected):
		res.Error = fmt.Sprintf("expected %v first, got %v", spec.Expected, res.TopResults)
	case spec.Count != nil && *spec.Count != res.Count:
		res.Error = fmt.Sprintf("expected count %d, got %d", *spec.Count, res.Count)
	default:
		res.Passed = true
	}
	return res
}

// runNegative passes when the search succeeds and, if given, the count matches.
func (v *Validator) runNegative(ctx context.Context, spec QuerySpec) TestResult {
	res, err := v.search(ctx, spec)
	if err != nil {
		return res
	}
	if spec.Count != nil && *spec.Count != res.Count {
		res.Error = fmt.Sprintf("expected count %d, got %d", *spec.Count, res.Count)
		return res
	}
	res.Passed = true
	return res
}
