package search

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/stretchr/testify/require"

	"github.com/kariantti/NuGetGallery/internal/store"
)

// pkg builds a catalog record with a deterministic publish date.
func pkg(key int, id, title, tags, description string, downloads int64) *store.Package {
	return &store.Package{
		Key:           key,
		ID:            id,
		Version:       "1.0.0",
		Title:         title,
		Description:   description,
		Authors:       "Gallery Tests",
		Tags:          tags,
		DownloadCount: downloads,
		Published:     time.Unix(1_600_000_000+int64(key)*86_400, 0).UTC(),
		Listed:        true,
	}
}

// newIndexFor writes pkgs into a fresh on-disk index.
func newIndexFor(t testing.TB, pkgs []*store.Package) *store.PackageIndex {
	t.Helper()
	docs := make([]*store.SearchableDocument, len(pkgs))
	for i, p := range pkgs {
		docs[i] = store.NewSearchableDocument(p)
	}
	idx := store.NewPackageIndex(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, idx.Write(context.Background(), docs))
	return idx
}

// newCatalogFor stores pkgs in a fresh SQLite catalog.
func newCatalogFor(t testing.TB, pkgs []*store.Package) *store.SQLiteCatalog {
	t.Helper()
	cat, err := store.NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"), store.DefaultCatalogOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	if len(pkgs) > 0 {
		require.NoError(t, cat.SavePackages(context.Background(), pkgs))
	}
	return cat
}

// ids returns the package ids in order.
func ids(pkgs []*store.Package) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.ID
	}
	return out
}

// hitKeys returns the keys of hits in order.
func hitKeys(hits []RankedHit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Key
	}
	return out
}

// fakeCatalog serves packages from memory and records lookups.
type fakeCatalog struct {
	mu       sync.Mutex
	packages map[int]*store.Package
	err      error
	calls    [][]int
}

func newFakeCatalog(pkgs ...*store.Package) *fakeCatalog {
	c := &fakeCatalog{packages: make(map[int]*store.Package)}
	for _, p := range pkgs {
		c.packages[p.Key] = p
	}
	return c
}

func (c *fakeCatalog) GetPackages(_ context.Context, keys []int) (map[int]*store.Package, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]int(nil), keys...))
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[int]*store.Package)
	for _, k := range keys {
		if p, ok := c.packages[k]; ok {
			out[k] = p
		}
	}
	return out, nil
}

func (c *fakeCatalog) Close() error { return nil }

func (c *fakeCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// fakeIndex hands out a fixed reader or error.
type fakeIndex struct {
	reader *fakeReader
	err    error
}

func (f *fakeIndex) OpenReader() (store.IndexReader, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reader, nil
}

// fakeReader returns a canned result and tracks Close.
type fakeReader struct {
	result *bleve.SearchResult
	err    error
	closed bool
	req    *bleve.SearchRequest
}

func (r *fakeReader) SearchInContext(_ context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	r.req = req
	return r.result, r.err
}

// corruptResult is a single hit whose stored key is not a number.
func corruptResult() *bleve.SearchResult {
	return &bleve.SearchResult{
		Total: 1,
		Hits: blevesearch.DocumentMatchCollection{
			{ID: "broken", Score: 1, Fields: map[string]interface{}{store.FieldKey: "not-a-key"}},
		},
	}
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}
