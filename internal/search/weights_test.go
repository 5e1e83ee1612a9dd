package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/store"
)

func TestDefaultFieldWeights(t *testing.T) {
	w := DefaultFieldWeights()

	assert.Equal(t, []FieldWeight{
		{Field: store.FieldID, Weight: 1.2},
		{Field: store.FieldTitle, Weight: 1.0},
		{Field: store.FieldTags, Weight: 1.0},
		{Field: store.FieldDescription, Weight: 0.8},
		{Field: store.FieldAuthor, Weight: 0.6},
	}, w.Entries())

	// Same table on every call
	assert.Equal(t, w, DefaultFieldWeights())
}

func TestFieldWeights_EntriesIsACopy(t *testing.T) {
	w := DefaultFieldWeights()

	entries := w.Entries()
	entries[0].Weight = 99

	got, ok := w.Weight(store.FieldID)
	require.True(t, ok)
	assert.Equal(t, 1.2, got)
}

func TestNewFieldWeights_Validation(t *testing.T) {
	complete := func() map[string]float64 {
		return DefaultFieldWeights().Map()
	}

	tests := []struct {
		name    string
		mutate  func(m map[string]float64)
		wantErr bool
	}{
		{"complete table", func(map[string]float64) {}, false},
		{"missing field", func(m map[string]float64) { delete(m, store.FieldAuthor) }, true},
		{"zero weight", func(m map[string]float64) { m[store.FieldTags] = 0 }, true},
		{"negative weight", func(m map[string]float64) { m[store.FieldTitle] = -1 }, true},
		{"unknown field", func(m map[string]float64) { m["Owner"] = 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := complete()
			tt.mutate(m)

			_, err := NewFieldWeights(m)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidWeights, errors.GetCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewFieldWeights_KeepsFieldOrder(t *testing.T) {
	w, err := NewFieldWeights(map[string]float64{
		store.FieldAuthor:      2,
		store.FieldDescription: 2,
		store.FieldTags:        2,
		store.FieldTitle:       2,
		store.FieldID:          3,
	})
	require.NoError(t, err)

	entries := w.Entries()
	require.Len(t, entries, len(WeightedFields))
	for i, f := range WeightedFields {
		assert.Equal(t, f, entries[i].Field)
	}
}

func TestFieldWeightsFromConfig(t *testing.T) {
	w, err := FieldWeightsFromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultFieldWeights(), w)

	_, err = FieldWeightsFromConfig(map[string]float64{store.FieldID: 2})
	assert.Error(t, err)
}
