package source

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFolderSourceEnumerate(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"b/IMG_0002.NEF",
		"a/IMG_0001.jpg",
		"a/notes.txt",
		"c/IMG_0003.dng",
		"thumbs.db",
	}
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src := NewFolderSource(dir)
	photos, err := src.Enumerate(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var rels []string
	for _, p := range photos {
		rels = append(rels, p.RelPath)
		if p.ID != 0 {
			t.Errorf("folder photo %s has a catalog id", p.RelPath)
		}
		if p.RootPath != dir {
			t.Errorf("folder photo %s root = %q", p.RelPath, p.RootPath)
		}
	}

	expected := []string{"a/IMG_0001.jpg", "b/IMG_0002.NEF", "c/IMG_0003.dng"}
	if !reflect.DeepEqual(rels, expected) {
		t.Errorf("enumeration = %v, want %v (sorted, images only)", rels, expected)
	}

	again, err := src.Enumerate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(photos, again) {
		t.Error("re-enumeration changed order")
	}
}

func TestOriginalPath(t *testing.T) {
	p := Photo{RootPath: "/Volumes/Photos/", RelPath: "2024/alps/IMG_0001.CR2"}
	expected := filepath.Join("/Volumes/Photos", "2024", "alps", "IMG_0001.CR2")
	if got := p.OriginalPath(); got != expected {
		t.Errorf("OriginalPath = %q, want %q", got, expected)
	}
}
