package search

import (
	"strings"

	blevesearch "github.com/blevesearch/bleve/v2/search"

	"github.com/kariantti/NuGetGallery/internal/store"
)

// SortCriterion selects the order of search hits.
type SortCriterion int

const (
	SortPopularity SortCriterion = iota // DownloadCount desc
	SortRelevance                       // score desc
	SortRecency                         // PublishedDate desc
	SortAlphabetic                      // lower-cased id asc
)

// Sort tokens accepted by SelectSort.
const (
	SortTokenPopularity = "popularity"
	SortTokenRelevance  = "relevance"
	SortTokenRecency    = "recency"
	SortTokenAlphabetic = "alphabetic"
)

// SortTokens lists the recognised tokens in display order.
var SortTokens = []string{SortTokenPopularity, SortTokenRelevance, SortTokenRecency, SortTokenAlphabetic}

// SelectSort maps a caller token to a criterion. Matching is
// case-insensitive; empty or unknown tokens select popularity.
func SelectSort(token string) SortCriterion {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case SortTokenRelevance:
		return SortRelevance
	case SortTokenRecency:
		return SortRecency
	case SortTokenAlphabetic:
		return SortAlphabetic
	default:
		return SortPopularity
	}
}

// String returns the token that selects s.
func (s SortCriterion) String() string {
	switch s {
	case SortRelevance:
		return SortTokenRelevance
	case SortRecency:
		return SortTokenRecency
	case SortAlphabetic:
		return SortTokenAlphabetic
	default:
		return SortTokenPopularity
	}
}

// Order returns the bleve sort order for s. Every order ends with the
// document id so equal keys come back in the same order on every call.
func (s SortCriterion) Order() blevesearch.SortOrder {
	score := &blevesearch.SortScore{Desc: true}
	docID := &blevesearch.SortDocID{}

	switch s {
	case SortRelevance:
		return blevesearch.SortOrder{score, docID}
	case SortRecency:
		return blevesearch.SortOrder{numericDesc(store.FieldPublishedDate), score, docID}
	case SortAlphabetic:
		return blevesearch.SortOrder{
			&blevesearch.SortField{
				Field:   store.FieldIDExact,
				Type:    blevesearch.SortFieldAsString,
				Missing: blevesearch.SortFieldMissingLast,
			},
			docID,
		}
	default:
		return blevesearch.SortOrder{numericDesc(store.FieldDownloadCount), score, docID}
	}
}

func numericDesc(field string) *blevesearch.SortField {
	return &blevesearch.SortField{
		Field:   field,
		Desc:    true,
		Type:    blevesearch.SortFieldAsNumber,
		Missing: blevesearch.SortFieldMissingLast,
	}
}
