package search

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/store"
)

// WeightedFields lists the text fields a query is expanded over, in the
// order clauses are emitted.
var WeightedFields = []string{
	store.FieldID,
	store.FieldTitle,
	store.FieldTags,
	store.FieldDescription,
	store.FieldAuthor,
}

// FieldWeight is a single field boost.
type FieldWeight struct {
	Field  string
	Weight float64
}

// FieldWeights is an immutable, ordered field to boost table.
// The zero value is empty and rejected by the query builder.
type FieldWeights struct {
	entries []FieldWeight
}

// DefaultFieldWeights returns the shared default table.
var DefaultFieldWeights = sync.OnceValue(func() FieldWeights {
	w, err := NewFieldWeights(map[string]float64{
		store.FieldID:          1.2,
		store.FieldTitle:       1.0,
		store.FieldTags:        1.0,
		store.FieldDescription: 0.8,
		store.FieldAuthor:      0.6,
	})
	if err != nil {
		panic(err)
	}
	return w
})

// NewFieldWeights validates weights and freezes them in WeightedFields order.
// Every weighted field needs a positive weight; unknown fields are rejected.
func NewFieldWeights(weights map[string]float64) (FieldWeights, error) {
	var missing []string
	entries := make([]FieldWeight, 0, len(WeightedFields))
	for _, field := range WeightedFields {
		w, ok := weights[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		if w <= 0 {
			return FieldWeights{}, errors.New(errors.ErrCodeInvalidWeights,
				fmt.Sprintf("weight for field %s must be positive, got %g", field, w), nil).
				WithDetail("field", field)
		}
		entries = append(entries, FieldWeight{Field: field, Weight: w})
	}
	if len(missing) > 0 {
		return FieldWeights{}, errors.New(errors.ErrCodeInvalidWeights,
			"missing weights for fields: "+strings.Join(missing, ", "), nil).
			WithSuggestion("Set a weight for every field or remove search.field_weights to use the defaults")
	}

	for _, field := range slices.Sorted(maps.Keys(weights)) {
		if !slices.Contains(WeightedFields, field) {
			return FieldWeights{}, errors.New(errors.ErrCodeInvalidWeights,
				"unknown weighted field: "+field, nil).
				WithDetail("field", field)
		}
	}

	return FieldWeights{entries: entries}, nil
}

// FieldWeightsFromConfig returns the default table when overrides is empty.
func FieldWeightsFromConfig(overrides map[string]float64) (FieldWeights, error) {
	if len(overrides) == 0 {
		return DefaultFieldWeights(), nil
	}
	return NewFieldWeights(overrides)
}

// Entries returns a copy of the table in field order.
func (w FieldWeights) Entries() []FieldWeight {
	return slices.Clone(w.entries)
}

// Weight returns the boost for field.
func (w FieldWeights) Weight(field string) (float64, bool) {
	for _, e := range w.entries {
		if e.Field == field {
			return e.Weight, true
		}
	}
	return 0, false
}

// Len returns the number of weighted fields.
func (w FieldWeights) Len() int {
	return len(w.entries)
}

// Map returns the table as a fresh map.
func (w FieldWeights) Map() map[string]float64 {
	m := make(map[string]float64, len(w.entries))
	for _, e := range w.entries {
		m[e.Field] = e.Weight
	}
	return m
}
