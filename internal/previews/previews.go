// Package previews locates rendered preview assets and original image files
// for catalog photos.
package previews

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phototools/autotag/internal/source"
	"github.com/phototools/autotag/internal/volumes"
)

// Handle is the resolved location of a rendered preview. Valid is false when
// the expected asset does not exist; callers fall back to the original file.
type Handle struct {
	Root  string
	Path  string
	Valid bool
}

// Locator computes Smart Preview paths inside the catalog's .lrdata cache.
type Locator struct {
	lrdataDir string
	vols      *volumes.Resolver
}

// NewLocator derives the Smart Previews directory from the catalog path.
// Lightroom names it "<catalog> Smart Previews.lrdata" next to the .lrcat;
// older versions used a bare "Smart Previews.lrdata".
func NewLocator(catalogPath string, vols *volumes.Resolver) *Locator {
	dir := filepath.Dir(catalogPath)
	base := strings.TrimSuffix(filepath.Base(catalogPath), filepath.Ext(catalogPath))

	candidates := []string{
		filepath.Join(dir, base+" Smart Previews.lrdata"),
		filepath.Join(dir, "Smart Previews.lrdata"),
	}

	var found string
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			found = c
			break
		}
	}
	if found == "" {
		slog.Warn("No Smart Previews directory found next to catalog", "catalog", catalogPath)
	} else {
		slog.Debug("Smart Previews directory", "dir", found)
	}

	return &Locator{lrdataDir: found, vols: vols}
}

// BucketPath returns the relative hashed cache path for a preview token:
// first character, then first four characters, then "<token>.dng". The same
// token always maps to the same bucket, across runs and machines.
func BucketPath(token string) string {
	return filepath.Join(token[:1], token[:4], token+".dng")
}

// Locate resolves the preview asset for a photo. Photos without a content
// token (folder source, no Smart Preview generated) get an invalid handle
// immediately; a missing bucket path is likewise an invalid handle, never an
// error, because most photos simply have no rendered preview.
func (l *Locator) Locate(p source.Photo) Handle {
	if p.PreviewUUID == "" || l.lrdataDir == "" {
		return Handle{Valid: false}
	}
	if len(p.PreviewUUID) < 4 {
		slog.Warn("Malformed preview token", "photo", p.ID, "token", p.PreviewUUID)
		return Handle{Valid: false}
	}

	// Lightroom has stored buckets with differing case over the years.
	token := p.PreviewUUID
	candidates := []string{
		filepath.Join(l.lrdataDir, BucketPath(token)),
		filepath.Join(l.lrdataDir, BucketPath(strings.ToLower(token))),
		filepath.Join(l.lrdataDir, BucketPath(strings.ToUpper(token))),
		filepath.Join(l.lrdataDir, token+".dng"),
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return Handle{Root: l.lrdataDir, Path: path, Valid: true}
		}
	}
	return Handle{Root: l.lrdataDir, Valid: false}
}

// OriginalLocator resolves a photo's original image file, consulting the
// volume resolver so unmounted disks are probed at most once per session.
type OriginalLocator struct {
	vols *volumes.Resolver
}

func NewOriginalLocator(vols *volumes.Resolver) *OriginalLocator {
	return &OriginalLocator{vols: vols}
}

// Locate returns the absolute path of the original and whether it is
// accessible. Inaccessibility is a value, not an error: the volume may be
// unmounted or the file moved since it was cataloged.
func (o *OriginalLocator) Locate(p source.Photo) (string, bool) {
	path := p.OriginalPath()
	if path == "" {
		return "", false
	}
	if !o.vols.Available(path) {
		return path, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return path, false
	}
	return path, true
}
