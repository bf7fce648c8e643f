package source

import (
	"context"
	"path/filepath"
	"strings"
)

// Photo identifies one photo from an enumerated source. For catalog photos
// every field is populated from the catalog row; for folder photos only the
// path fields are known and ID is zero.
type Photo struct {
	// ID is the catalog-local identifier (Adobe_images.id_local). Zero for
	// photos enumerated from a plain folder.
	ID int64

	FileName string

	// RootID and RootPath identify the storage root the original lives on
	// (AgLibraryRootFolder). RelPath is the path fragment below that root.
	RootID   int64
	RootPath string
	RelPath  string

	// PreviewUUID is the Smart Preview content token (AgDNGProxyInfo.fileUUID).
	// Empty when the photo has no rendered preview or comes from a folder.
	PreviewUUID string
}

// OriginalPath joins the storage root and the relative fragment into the
// absolute path of the original image file. It does not touch the filesystem.
func (p Photo) OriginalPath() string {
	if p.RelPath == "" {
		return p.RootPath
	}
	return filepath.Join(p.RootPath, filepath.FromSlash(strings.TrimPrefix(p.RelPath, "/")))
}

// Source enumerates candidate photos in a stable order. Stability across runs
// is what makes the checkpoint cursor land on the right boundary after a
// resume, so implementations must not reorder between enumerations of an
// unchanged source.
type Source interface {
	Enumerate(ctx context.Context) ([]Photo, error)
	Describe() string
}

// SupportedExtensions lists the image formats the folder source picks up,
// lower-case with leading dot.
var SupportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true,
	".cr2": true, ".cr3": true, ".nef": true, ".arw": true, ".dng": true,
	".raf": true, ".orf": true, ".rw2": true, ".pef": true, ".srw": true,
}
