package search

import (
	"context"

	"github.com/kariantti/NuGetGallery/internal/store"
)

// Project resolves hits to catalog records with one batch lookup and returns
// them in the order of hits, which the executor already ranks. Keys the
// catalog no longer knows are dropped.
func Project(ctx context.Context, hits []RankedHit, catalog store.Catalog) ([]*store.Package, error) {
	if len(hits) == 0 {
		return []*store.Package{}, nil
	}

	keys := make([]int, len(hits))
	for i, h := range hits {
		keys[i] = h.Key
	}

	found, err := catalog.GetPackages(ctx, keys)
	if err != nil {
		return nil, err
	}

	pkgs := make([]*store.Package, 0, len(hits))
	for _, h := range hits {
		if p, ok := found[h.Key]; ok && p != nil {
			pkgs = append(pkgs, p)
		}
	}
	return pkgs, nil
}
