package store

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/mapping"
)

// IdentifierAnalyzerName keeps the whole identifier as one lower-cased term.
const IdentifierAnalyzerName = "package_identifier"

// IndexMapping returns the process-wide package index mapping, built once.
var IndexMapping = sync.OnceValues(buildIndexMapping)

func buildIndexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(IdentifierAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add identifier analyzer: %w", err)
	}
	im.DefaultAnalyzer = standard.Name

	text := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = false
		return fm
	}

	idExact := bleve.NewTextFieldMapping()
	idExact.Analyzer = IdentifierAnalyzerName
	idExact.Store = false
	idExact.IncludeTermVectors = false
	idExact.DocValues = true

	number := func() *mapping.FieldMapping {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = false
		fm.DocValues = true
		return fm
	}

	key := bleve.NewKeywordFieldMapping()
	key.Store = true
	key.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(FieldID, text())
	doc.AddFieldMappingsAt(FieldIDExact, idExact)
	doc.AddFieldMappingsAt(FieldTitle, text())
	doc.AddFieldMappingsAt(FieldTags, text())
	doc.AddFieldMappingsAt(FieldDescription, text())
	doc.AddFieldMappingsAt(FieldAuthor, text())
	doc.AddFieldMappingsAt(FieldDownloadCount, number())
	doc.AddFieldMappingsAt(FieldPublishedDate, number())
	doc.AddFieldMappingsAt(FieldKey, key)

	im.DefaultMapping = doc
	return im, nil
}
