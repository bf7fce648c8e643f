package catalog

import (
	"context"

	"github.com/phototools/autotag/internal/source"
)

// photoSource adapts a Store plus a Filter to the source.Source contract.
type photoSource struct {
	store  *Store
	filter Filter
}

// Source returns a stable-order photo source backed by this catalog.
func (s *Store) Source(f Filter) source.Source {
	return &photoSource{store: s, filter: f}
}

func (ps *photoSource) Describe() string {
	return "catalog:" + ps.store.path
}

func (ps *photoSource) Enumerate(ctx context.Context) ([]source.Photo, error) {
	return ps.store.Photos(ctx, ps.filter)
}
