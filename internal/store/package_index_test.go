package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocs() []*SearchableDocument {
	return []*SearchableDocument{
		{ID: "Newtonsoft.Json", Title: "Json.NET", Tags: "json serializer", Description: "Popular high-performance JSON framework", Author: "James Newton-King", DownloadCount: 900, PublishedDate: 1_600_000_000, Key: 1},
		{ID: "NUnit", Title: "NUnit", Tags: "test unit", Description: "Unit-testing framework", Author: "Charlie Poole", DownloadCount: 500, PublishedDate: 1_500_000_000, Key: 2},
		{ID: "Dapper", Title: "Dapper", Tags: "orm sql", Description: "A simple object mapper", Author: "Sam Saffron", DownloadCount: 300, PublishedDate: 1_700_000_000, Key: 3},
	}
}

func newTestIndex(t *testing.T, docs []*SearchableDocument) *PackageIndex {
	t.Helper()
	idx := NewPackageIndex(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, idx.Write(context.Background(), docs))
	return idx
}

func TestPackageIndex_MissingIsUnavailable(t *testing.T) {
	// Given: an index path that was never written
	idx := NewPackageIndex(filepath.Join(t.TempDir(), "index"))

	// Then: it does not exist and readers are refused
	assert.False(t, idx.Exists())
	r, err := idx.OpenReader()
	assert.Nil(t, r)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestPackageIndex_CorruptMetaIsUnavailable(t *testing.T) {
	// Given: a directory with an empty index_meta.json
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexMetaFile), nil, 0o644))
	idx := NewPackageIndex(dir)

	// Then: the integrity probe fails
	assert.False(t, idx.Exists())
	_, err := idx.OpenReader()
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestPackageIndex_WriteThenRead(t *testing.T) {
	// Given: an index with three packages
	idx := newTestIndex(t, sampleDocs())
	require.True(t, idx.Exists())

	// When: searching the exact identifier field
	r, err := idx.OpenReader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	q := bleve.NewTermQuery("newtonsoft.json")
	q.SetField(FieldIDExact)
	req := bleve.NewSearchRequest(q)
	req.Fields = []string{FieldKey}
	res, err := r.SearchInContext(context.Background(), req)

	// Then: the stored key comes back as a string
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "1", res.Hits[0].Fields[FieldKey])
}

func TestPackageIndex_TextFieldsAreAnalyzed(t *testing.T) {
	idx := newTestIndex(t, sampleDocs())
	r, err := idx.OpenReader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	q := bleve.NewMatchQuery("FRAMEWORK")
	q.SetField(FieldDescription)
	res, err := r.SearchInContext(context.Background(), bleve.NewSearchRequest(q))

	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)
}

func TestPackageIndex_NumericSort(t *testing.T) {
	idx := newTestIndex(t, sampleDocs())
	r, err := idx.OpenReader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.SortByCustom(search.SortOrder{
		&search.SortField{Field: FieldPublishedDate, Desc: true, Type: search.SortFieldAsNumber},
	})
	res, err := r.SearchInContext(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	assert.Equal(t, []string{"3", "1", "2"}, []string{res.Hits[0].ID, res.Hits[1].ID, res.Hits[2].ID})
}

func TestPackageIndex_WriteUpserts(t *testing.T) {
	// Given: an index, then a rewrite of key 2 with a new id
	idx := newTestIndex(t, sampleDocs())
	updated := &SearchableDocument{ID: "xunit", Title: "xUnit", Key: 2, DownloadCount: 1}
	require.NoError(t, idx.Write(context.Background(), []*SearchableDocument{updated}))

	// When: counting all documents
	r, err := idx.OpenReader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	res, err := r.SearchInContext(context.Background(), bleve.NewSearchRequest(bleve.NewMatchAllQuery()))

	// Then: still three documents
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
}

func TestPackageIndex_LockedForRebuildIsUnavailable(t *testing.T) {
	// Given: a built index whose rebuild lock is held
	idx := newTestIndex(t, sampleDocs())
	writer := NewFileLock(idx.LockPath())
	require.NoError(t, writer.LockContext(context.Background()))

	// Then: readers report unavailable
	_, err := idx.OpenReader()
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	// And: after release they succeed
	require.NoError(t, writer.Unlock())
	r, err := idx.OpenReader()
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestPackageIndex_ConcurrentReaders(t *testing.T) {
	idx := newTestIndex(t, sampleDocs())

	r1, err := idx.OpenReader()
	require.NoError(t, err)
	r2, err := idx.OpenReader()
	require.NoError(t, err)

	assert.NoError(t, r1.Close())
	assert.NoError(t, r2.Close())
}

func TestPackageIndex_WriteWaitsForReaders(t *testing.T) {
	// Given: an open reader
	idx := newTestIndex(t, sampleDocs())
	r, err := idx.OpenReader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// When: writing with a short deadline
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err = idx.Write(ctx, sampleDocs())

	// Then: the write cannot take the lock
	assert.Error(t, err)
}

func TestNewSearchableDocument_ProjectsPackage(t *testing.T) {
	published := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &Package{Key: 42, ID: "Serilog", Title: "Serilog", Authors: "Serilog Contributors", Tags: "logging", DownloadCount: 7, Published: published}

	doc := NewSearchableDocument(p)

	assert.Equal(t, "42", doc.DocID())
	assert.Equal(t, "Serilog Contributors", doc.Author)
	assert.Equal(t, published.Unix(), doc.PublishedDate)
	assert.Equal(t, "Serilog", doc.fields()[FieldIDExact])
}
