package search

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kariantti/NuGetGallery/internal/store"
)

func TestProject_DropsStaleKeysAndKeepsOrder(t *testing.T) {
	// Given: hits [5, 7, 9] and a catalog that no longer has 7
	cat := newFakeCatalog(
		pkg(5, "Five", "", "", "", 0),
		pkg(9, "Nine", "", "", "", 0),
	)
	hits := []RankedHit{{Key: 5, Rank: 0}, {Key: 7, Rank: 1}, {Key: 9, Rank: 2}}

	// When
	pkgs, err := Project(context.Background(), hits, cat)

	// Then: one lookup, rank order kept, 7 dropped
	require.NoError(t, err)
	assert.Equal(t, []string{"Five", "Nine"}, ids(pkgs))
	assert.Equal(t, 1, cat.callCount())
	assert.Equal(t, []int{5, 7, 9}, cat.calls[0])
}

func TestProject_FollowsHitOrderNotCatalogOrder(t *testing.T) {
	// Given: hits ranked 3, 1, 2 and a catalog that returns a map
	cat := newFakeCatalog(
		pkg(1, "One", "", "", "", 0),
		pkg(2, "Two", "", "", "", 0),
		pkg(3, "Three", "", "", "", 0),
	)
	hits := []RankedHit{{Key: 3, Rank: 0}, {Key: 1, Rank: 1}, {Key: 2, Rank: 2}}

	// When
	pkgs, err := Project(context.Background(), hits, cat)

	// Then
	require.NoError(t, err)
	assert.Equal(t, []string{"Three", "One", "Two"}, ids(pkgs))
}

func TestProject_NoHitsSkipsCatalog(t *testing.T) {
	cat := newFakeCatalog()

	pkgs, err := Project(context.Background(), nil, cat)

	require.NoError(t, err)
	assert.NotNil(t, pkgs)
	assert.Empty(t, pkgs)
	assert.Zero(t, cat.callCount())
}

func TestProject_CatalogFailurePropagates(t *testing.T) {
	cat := newFakeCatalog()
	cat.err = stderrors.New("database is locked")

	pkgs, err := Project(context.Background(), []RankedHit{{Key: 1}}, cat)

	assert.Nil(t, pkgs)
	assert.ErrorIs(t, err, cat.err)
}

func TestProject_WithSQLiteCatalog(t *testing.T) {
	cat := newCatalogFor(t, []*store.Package{
		pkg(1, "Serilog", "", "", "", 0),
		pkg(2, "Serilog.Sinks.Console", "", "", "", 0),
	})

	pkgs, err := Project(context.Background(), []RankedHit{{Key: 2, Rank: 0}, {Key: 99, Rank: 1}, {Key: 1, Rank: 2}}, cat)

	require.NoError(t, err)
	assert.Equal(t, []string{"Serilog.Sinks.Console", "Serilog"}, ids(pkgs))
}
