package writer

import (
	"log/slog"

	"github.com/phototools/autotag/internal/sidecar"
	"github.com/phototools/autotag/internal/source"
	"github.com/phototools/autotag/internal/transform"
)

// KeywordStore is the slice of the catalog the destination needs: an
// additive, transactional keyword write that reports how many membership
// rows were new.
type KeywordStore interface {
	AddKeywords(photoID int64, tags []string) (int, error)
}

// CatalogDestination writes keywords into the catalog's vocabulary and
// membership tables through the session's exclusively-held store handle.
type CatalogDestination struct {
	store KeywordStore
}

func NewCatalogDestination(store KeywordStore) *CatalogDestination {
	return &CatalogDestination{store: store}
}

func (d *CatalogDestination) Name() Destination { return DestCatalog }

func (d *CatalogDestination) Write(p source.Photo, ks transform.KeywordSet) Outcome {
	if p.ID == 0 {
		// Photo has no catalog row; nothing to attach keywords to.
		return Unreachable
	}
	added, err := d.store.AddKeywords(p.ID, ks.Added)
	if err != nil {
		slog.Error("Catalog keyword write failed", "photo", p.ID, "err", err)
		return Failed
	}
	if added == 0 {
		return AlreadyPresent
	}
	return Written
}

// OriginalResolver resolves a photo's original image file; a sidecar can
// only be placed next to an accessible original.
type OriginalResolver interface {
	Locate(p source.Photo) (string, bool)
}

// SidecarDestination writes the merged keyword set into the photo's XMP
// sidecar. An inaccessible original yields Unreachable, which is a skip,
// not a failure: the catalog destination may still carry the keywords.
type SidecarDestination struct {
	originals OriginalResolver
}

func NewSidecarDestination(originals OriginalResolver) *SidecarDestination {
	return &SidecarDestination{originals: originals}
}

func (d *SidecarDestination) Name() Destination { return DestSidecar }

func (d *SidecarDestination) Write(p source.Photo, ks transform.KeywordSet) Outcome {
	path, ok := d.originals.Locate(p)
	if !ok {
		slog.Warn("Original not accessible, sidecar skipped", "photo", p.FileName, "path", path)
		return Unreachable
	}
	added, err := sidecar.WriteKeywords(path, ks.All())
	if err != nil {
		slog.Error("Sidecar write failed", "path", sidecar.PathFor(path), "err", err)
		return Failed
	}
	if added == 0 {
		return AlreadyPresent
	}
	return Written
}
