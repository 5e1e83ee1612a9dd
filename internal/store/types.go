// Package store holds the two collaborators of the search core: the bleve
// package index and the SQLite package catalog.
package store

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/blevesearch/bleve/v2"
)

// Indexed field names. Text fields are analyzed with the standard analyzer;
// FieldIDExact holds the whole lower-cased identifier as a single term.
const (
	FieldID            = "Id"
	FieldIDExact       = "IdExact"
	FieldTitle         = "Title"
	FieldTags          = "Tags"
	FieldDescription   = "Description"
	FieldAuthor        = "Author"
	FieldDownloadCount = "DownloadCount"
	FieldPublishedDate = "PublishedDate"
	FieldKey           = "Key"
)

// ErrIndexUnavailable reports that the index has not been built yet or is
// being rebuilt. Callers treat it as an empty index.
var ErrIndexUnavailable = stderrors.New("package index unavailable")

// Package is a catalog record.
type Package struct {
	Key           int       `json:"key"`
	ID            string    `json:"id"`
	Version       string    `json:"version"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Authors       string    `json:"authors,omitempty"`
	Tags          string    `json:"tags,omitempty"`
	DownloadCount int64     `json:"downloadCount"`
	Published     time.Time `json:"published"`
	Listed        bool      `json:"listed"`
}

// SearchableDocument is the indexed projection of a Package.
type SearchableDocument struct {
	ID            string
	Title         string
	Tags          string
	Description   string
	Author        string
	DownloadCount int64
	PublishedDate int64 // unix seconds
	Key           int
}

// NewSearchableDocument projects p into its indexed form.
func NewSearchableDocument(p *Package) *SearchableDocument {
	return &SearchableDocument{
		ID:            p.ID,
		Title:         p.Title,
		Tags:          p.Tags,
		Description:   p.Description,
		Author:        p.Authors,
		DownloadCount: p.DownloadCount,
		PublishedDate: p.Published.Unix(),
		Key:           p.Key,
	}
}

// DocID is the bleve document id, the decimal form of Key.
func (d *SearchableDocument) DocID() string {
	return strconv.Itoa(d.Key)
}

// fields returns the map bleve indexes for d.
func (d *SearchableDocument) fields() map[string]interface{} {
	return map[string]interface{}{
		FieldID:            d.ID,
		FieldIDExact:       d.ID,
		FieldTitle:         d.Title,
		FieldTags:          d.Tags,
		FieldDescription:   d.Description,
		FieldAuthor:        d.Author,
		FieldDownloadCount: float64(d.DownloadCount),
		FieldPublishedDate: float64(d.PublishedDate),
		FieldKey:           d.DocID(),
	}
}

// IndexReader is a read-only view of the package index scoped to one search.
type IndexReader interface {
	SearchInContext(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error)
	Close() error
}

// Catalog resolves index keys to full package records.
type Catalog interface {
	// GetPackages returns the records for keys that exist. Missing keys are
	// absent from the map, not errors.
	GetPackages(ctx context.Context, keys []int) (map[int]*Package, error)
	Close() error
}
