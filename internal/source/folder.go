package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// FolderSource enumerates image files under a directory tree. Results are
// sorted by path so repeated enumerations of the same tree produce the same
// order.
type FolderSource struct {
	dir string
}

func NewFolderSource(dir string) *FolderSource {
	return &FolderSource{dir: dir}
}

func (f *FolderSource) Describe() string {
	return "folder:" + f.dir
}

func (f *FolderSource) Enumerate(ctx context.Context) ([]Photo, error) {
	var photos []Photo

	err := filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !SupportedExtensions[ext] {
			return nil
		}
		rel, err := filepath.Rel(f.dir, path)
		if err != nil {
			return err
		}
		photos = append(photos, Photo{
			FileName: d.Name(),
			RootPath: f.dir,
			RelPath:  filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk folder %s: %w", f.dir, err)
	}

	sort.Slice(photos, func(i, j int) bool { return photos[i].RelPath < photos[j].RelPath })

	slog.Info("Enumerated folder source", "dir", f.dir, "photos", len(photos))
	return photos, nil
}
