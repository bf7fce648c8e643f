package writer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phototools/autotag/internal/sidecar"
	"github.com/phototools/autotag/internal/source"
	"github.com/phototools/autotag/internal/transform"
)

type fakeStore struct {
	added map[int64][]string
	fail  bool
}

func (f *fakeStore) AddKeywords(photoID int64, tags []string) (int, error) {
	if f.fail {
		return 0, errors.New("disk I/O error")
	}
	if f.added == nil {
		f.added = make(map[int64][]string)
	}
	before := len(f.added[photoID])
	for _, tag := range tags {
		f.added[photoID] = append(f.added[photoID], tag)
	}
	return len(f.added[photoID]) - before, nil
}

type fakeResolver struct {
	paths map[string]string // FileName -> original path, absent means unreachable
}

func (f *fakeResolver) Locate(p source.Photo) (string, bool) {
	path, ok := f.paths[p.FileName]
	return path, ok
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Three photos, both destinations requested, one photo's original is on an
// unmounted drive: the catalog takes all three writes, the sidecar takes two
// and reports the third unreachable, and every photo still counts as
// processed.
func TestCoordinatorIndependentDestinations(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "one.jpg"))
	touch(t, filepath.Join(dir, "three.jpg"))

	store := &fakeStore{}
	resolver := &fakeResolver{paths: map[string]string{
		"one.jpg":   filepath.Join(dir, "one.jpg"),
		"three.jpg": filepath.Join(dir, "three.jpg"),
	}}
	coord := NewCoordinator(NewCatalogDestination(store), NewSidecarDestination(resolver))

	photos := []source.Photo{
		{ID: 1, FileName: "one.jpg"},
		{ID: 2, FileName: "two.jpg"},
		{ID: 3, FileName: "three.jpg"},
	}
	ks := transform.KeywordSet{Added: []string{"Mountain_ai"}}

	catalogWritten, sidecarWritten, unreachable := 0, 0, 0
	for _, p := range photos {
		result := coord.Write(p, ks)
		if !result.Processed() {
			t.Errorf("photo %d should count as processed", p.ID)
		}
		if result[DestCatalog] == Written {
			catalogWritten++
		}
		if result[DestSidecar] == Written {
			sidecarWritten++
		}
		if result[DestSidecar] == Unreachable {
			unreachable++
		}
	}

	if catalogWritten != 3 {
		t.Errorf("catalog writes = %d, want 3", catalogWritten)
	}
	if sidecarWritten != 2 {
		t.Errorf("sidecar writes = %d, want 2", sidecarWritten)
	}
	if unreachable != 1 {
		t.Errorf("unreachable sidecars = %d, want 1", unreachable)
	}
	if len(store.added[2]) != 1 {
		t.Errorf("photo 2 catalog keywords = %v, want one entry", store.added[2])
	}
	if _, err := os.Stat(sidecar.PathFor(filepath.Join(dir, "one.jpg"))); err != nil {
		t.Error("sidecar for photo 1 missing")
	}
}

func TestCatalogDestinationOutcomes(t *testing.T) {
	ks := transform.KeywordSet{Added: []string{"Lake_ai"}}

	t.Run("photo without catalog row is unreachable", func(t *testing.T) {
		d := NewCatalogDestination(&fakeStore{})
		if got := d.Write(source.Photo{ID: 0}, ks); got != Unreachable {
			t.Errorf("outcome = %s, want %s", got, Unreachable)
		}
	})

	t.Run("store error is a failure", func(t *testing.T) {
		d := NewCatalogDestination(&fakeStore{fail: true})
		if got := d.Write(source.Photo{ID: 1}, ks); got != Failed {
			t.Errorf("outcome = %s, want %s", got, Failed)
		}
	})

	t.Run("nothing new to add is already-present", func(t *testing.T) {
		d := NewCatalogDestination(&fakeStore{})
		if got := d.Write(source.Photo{ID: 1}, transform.KeywordSet{Existing: []string{"Lake"}}); got != AlreadyPresent {
			t.Errorf("outcome = %s, want %s", got, AlreadyPresent)
		}
	})
}

func TestSidecarDestinationAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "one.jpg")
	touch(t, image)

	resolver := &fakeResolver{paths: map[string]string{"one.jpg": image}}
	d := NewSidecarDestination(resolver)
	ks := transform.KeywordSet{Added: []string{"Lake_ai"}}
	p := source.Photo{ID: 1, FileName: "one.jpg"}

	if got := d.Write(p, ks); got != Written {
		t.Fatalf("first write = %s, want %s", got, Written)
	}
	if got := d.Write(p, ks); got != AlreadyPresent {
		t.Errorf("second write = %s, want %s", got, AlreadyPresent)
	}
}

func TestCoordinatorDestinations(t *testing.T) {
	coord := NewCoordinator(
		NewCatalogDestination(&fakeStore{}),
		NewSidecarDestination(&fakeResolver{}),
	)

	got := coord.Destinations()
	if len(got) != 2 || got[0] != DestCatalog || got[1] != DestSidecar {
		t.Errorf("Destinations() = %v, want [%s %s]", got, DestCatalog, DestSidecar)
	}
}

func TestResultProcessed(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected bool
	}{
		{"written", Result{DestCatalog: Written}, true},
		{"already present", Result{DestSidecar: AlreadyPresent}, true},
		{"one written one unreachable", Result{DestCatalog: Written, DestSidecar: Unreachable}, true},
		{"all unreachable", Result{DestCatalog: Unreachable, DestSidecar: Unreachable}, false},
		{"all failed", Result{DestCatalog: Failed, DestSidecar: Failed}, false},
		{"empty", Result{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Processed(); got != tt.expected {
				t.Errorf("Processed() = %v, want %v", got, tt.expected)
			}
		})
	}
}
