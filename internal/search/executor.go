package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/blevesearch/bleve/v2"

	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/store"
)

// WindowSize is the maximum number of hits one index search returns.
const WindowSize = 1000

// IndexSource opens per-call readers over the package index.
// *store.PackageIndex implements it.
type IndexSource interface {
	OpenReader() (store.IndexReader, error)
}

var _ IndexSource = (*store.PackageIndex)(nil)

// RankedHit is one index hit in result order.
type RankedHit struct {
	Key   int     `json:"key"`
	Rank  int     `json:"rank"` // zero-based position
	Score float64 `json:"score"`
}

// Executor runs composite queries against the package index.
type Executor struct {
	index IndexSource
}

// NewExecutor creates an executor over index.
func NewExecutor(index IndexSource) *Executor {
	return &Executor{index: index}
}

// Execute runs q sorted by sort and returns at most WindowSize hits plus the
// total number of matching documents. A missing or rebuilding index yields
// no hits and no error.
func (e *Executor) Execute(ctx context.Context, q *CompositeQuery, sort SortCriterion) ([]RankedHit, int, error) {
	hits, total, _, err := e.execute(ctx, q, sort)
	return hits, total, err
}

func (e *Executor) execute(ctx context.Context, q *CompositeQuery, sort SortCriterion) (hits []RankedHit, total int, unavailable bool, err error) {
	reader, err := e.index.OpenReader()
	if stderrors.Is(err, store.ErrIndexUnavailable) {
		slog.Info("index_unavailable", slog.String("term", q.Term))
		return nil, 0, true, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			slog.Warn("index_reader_close_failed", slog.String("error", cerr.Error()))
		}
	}()

	req := bleve.NewSearchRequestOptions(q.Query(), WindowSize, 0, false)
	req.Fields = []string{store.FieldKey}
	req.SortByCustom(sort.Order())

	res, err := reader.SearchInContext(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, false, ctxErr
		}
		return nil, 0, false, errors.New(errors.ErrCodeSearchFailed, "package index search failed", err).
			WithDetail("term", q.Term)
	}

	hits = make([]RankedHit, 0, len(res.Hits))
	for i, h := range res.Hits {
		key, err := storedKey(h.Fields[store.FieldKey])
		if err != nil {
			return nil, 0, false, errors.CorruptIndexError(
				fmt.Sprintf("document %s has an invalid catalog key", h.ID), err).
				WithDetail("document", h.ID)
		}
		hits = append(hits, RankedHit{Key: key, Rank: i, Score: h.Score})
	}

	return hits, int(res.Total), false, nil
}

// storedKey parses the stored Key field of a hit.
func storedKey(v interface{}) (int, error) {
	switch k := v.(type) {
	case string:
		return strconv.Atoi(k)
	case nil:
		return 0, fmt.Errorf("key field missing")
	default:
		return 0, fmt.Errorf("key field has unexpected type %T", v)
	}
}
