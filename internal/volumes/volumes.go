// Package volumes resolves storage-root paths to mounted filesystem
// locations. Disks holding originals are routinely unplugged between runs,
// so an unavailable root is a normal verdict, not an error.
package volumes

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Resolver caches one availability verdict per mount root for the lifetime
// of a session. The cache is never persisted; a resumed session starts with
// a fresh resolver because mounts may have changed while the job was paused.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]bool
	probe func(string) bool
}

func NewResolver() *Resolver {
	return &Resolver{
		cache: make(map[string]bool),
		probe: func(root string) bool {
			_, err := os.Stat(root)
			return err == nil
		},
	}
}

// NewResolverWithProbe is for tests that need to control mount state.
func NewResolverWithProbe(probe func(string) bool) *Resolver {
	r := NewResolver()
	r.probe = probe
	return r
}

// MountRoot extracts the mount point that governs availability of a path:
// /Volumes/Name on macOS, /media/user/Name on Linux, the drive letter on
// Windows, and the first path component otherwise.
func MountRoot(path string) string {
	parts := strings.Split(path, string(os.PathSeparator))
	switch {
	case strings.HasPrefix(path, "/Volumes/") && len(parts) >= 3:
		return "/" + parts[1] + "/" + parts[2]
	case strings.HasPrefix(path, "/media/") && len(parts) >= 4:
		return "/" + parts[1] + "/" + parts[2] + "/" + parts[3]
	case len(parts) > 0 && len(parts[0]) == 2 && strings.HasSuffix(parts[0], ":"):
		return parts[0]
	case len(parts) >= 2 && parts[0] == "":
		return "/" + parts[1]
	default:
		return path
	}
}

// Available reports whether the mount root governing path is currently
// reachable. The first lookup per root probes the filesystem; subsequent
// lookups for the same root return the cached verdict.
func (r *Resolver) Available(path string) bool {
	root := MountRoot(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ok, seen := r.cache[root]; seen {
		return ok
	}

	ok := r.probe(root)
	r.cache[root] = ok
	if ok {
		slog.Debug("Volume available", "root", root)
	} else {
		slog.Warn("Volume not mounted, photos on it will be skipped unless a preview exists", "root", root)
	}
	return ok
}

// Reset drops all cached verdicts, forcing fresh probes on next access.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]bool)
}
