package search

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/store"
)

// Clause boosts. Their relative order gives exact id > id prefix >
// all-terms text > partial or prefix text.
const (
	ExactIDBoost     = 2.5
	PrefixIDBoost    = 1.5
	ConjunctiveBoost = 1.5
	WildcardBoost    = 0.7
)

// CompositeQuery is the scored union of the five clauses built for one term.
type CompositeQuery struct {
	// Term is the lower-cased term with whitespace collapsed.
	Term string
	// Tokens are the lower-cased whitespace-separated words of Term.
	Tokens []string

	ExactID     query.Query
	PrefixID    query.Query
	Conjunctive query.Query
	Disjunctive query.Query
	Wildcard    query.Query

	union query.Query
}

// Query returns the union to execute.
func (c *CompositeQuery) Query() query.Query {
	return c.union
}

// QueryBuilder turns a raw search term into a CompositeQuery.
// It is stateless apart from its frozen weight table.
type QueryBuilder struct {
	weights FieldWeights
}

// NewQueryBuilder creates a builder over weights. Every weighted field must
// be present.
func NewQueryBuilder(weights FieldWeights) (*QueryBuilder, error) {
	if weights.Len() != len(WeightedFields) {
		return nil, errors.New(errors.ErrCodeInvalidWeights,
			"field weight table is incomplete", nil)
	}
	return &QueryBuilder{weights: weights}, nil
}

// Weights returns the builder's weight table.
func (b *QueryBuilder) Weights() FieldWeights {
	return b.weights
}

// Build creates the composite query for rawTerm.
func (b *QueryBuilder) Build(rawTerm string) (*CompositeQuery, error) {
	plain := strings.Fields(strings.ToLower(rawTerm))
	if len(plain) == 0 {
		return nil, errors.ValidationError("search term is required", nil)
	}

	tokenQueries := make([]query.Query, 0, len(plain))
	for _, tok := range plain {
		tokenQueries = append(tokenQueries, b.tokenQuery(tok))
	}

	conj := bleve.NewConjunctionQuery(tokenQueries...)
	conj.SetBoost(ConjunctiveBoost)

	disj := bleve.NewDisjunctionQuery(tokenQueries...)

	wildcard := b.wildcardQuery(plain)

	term := strings.Join(plain, " ")

	exact := bleve.NewTermQuery(term)
	exact.SetField(store.FieldIDExact)
	exact.SetBoost(ExactIDBoost)

	prefix := bleve.NewPrefixQuery(term)
	prefix.SetField(store.FieldIDExact)
	prefix.SetBoost(PrefixIDBoost)

	return &CompositeQuery{
		Term:        term,
		Tokens:      plain,
		ExactID:     exact,
		PrefixID:    prefix,
		Conjunctive: conj,
		Disjunctive: disj,
		Wildcard:    wildcard,
		union:       bleve.NewDisjunctionQuery(exact, prefix, conj, disj, wildcard),
	}, nil
}

// tokenQuery ORs a match on tok across the weighted fields. Match queries
// run tok through each field's analyzer and have no syntax of their own, so
// characters like * ? : ~ in tok are plain text.
func (b *QueryBuilder) tokenQuery(tok string) query.Query {
	clauses := make([]query.Query, 0, len(b.weights.entries))
	for _, fw := range b.weights.entries {
		mq := bleve.NewMatchQuery(tok)
		mq.SetField(fw.Field)
		mq.SetBoost(fw.Weight)
		clauses = append(clauses, mq)
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// wildcardQuery ORs a prefix match per token and weighted field.
func (b *QueryBuilder) wildcardQuery(tokens []string) query.Query {
	clauses := make([]query.Query, 0, len(tokens)*len(b.weights.entries))
	for _, tok := range tokens {
		for _, fw := range b.weights.entries {
			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(fw.Field)
			pq.SetBoost(WildcardBoost * fw.Weight)
			clauses = append(clauses, pq)
		}
	}
	dq := bleve.NewDisjunctionQuery(clauses...)
	dq.SetBoost(WildcardBoost)
	return dq
}
