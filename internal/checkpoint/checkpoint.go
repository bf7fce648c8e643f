// Package checkpoint persists the durable session snapshot that makes a
// multi-hour batch pausable. Saves are atomic: a reader either sees the
// previous complete state or the new one, never a torn file.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/phototools/autotag/internal/config"
)

// SchemaVersion guards against loading checkpoints written by an
// incompatible build.
const SchemaVersion = 1

// ErrNoState means there is nothing to resume. A corrupt or incompatible
// checkpoint is reported the same way (after a warning); it is never
// silently repaired.
var ErrNoState = errors.New("no resumable session")

// Counters are the cumulative session statistics, carried in the checkpoint
// so a resumed run continues them exactly.
type Counters struct {
	Analyzed           int `json:"analyzed"`
	Degraded           int `json:"degraded"`
	Tagged             int `json:"tagged"`
	CatalogWritten     int `json:"catalog_written"`
	SidecarWritten     int `json:"sidecar_written"`
	SkippedNoTags      int `json:"skipped_no_tags"`
	SkippedUnreachable int `json:"skipped_unreachable"`
	SkippedNoSource    int `json:"skipped_no_source"`
	Failed             int `json:"failed"`
}

// State is the on-disk session snapshot.
type State struct {
	SchemaVersion int            `json:"schema_version"`
	SavedAt       time.Time      `json:"saved_at"`
	Config        config.Session `json:"config"`
	Fingerprint   string         `json:"fingerprint"`

	// Cursor is the index of the next unprocessed photo under the stable
	// enumeration order of the source.
	Cursor   int      `json:"cursor"`
	Total    int      `json:"total"`
	Counters Counters `json:"counters"`
}

// Manager serializes and restores session state at a fixed path. It never
// decides whether the referenced configuration is still valid; that is the
// runner's call at resume time.
type Manager struct {
	path string
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Path() string {
	return m.path
}

// Save writes the state to a temporary file in the same directory and
// atomically renames it over the checkpoint path.
func (m *Manager) Save(state *State) error {
	state.SchemaVersion = SchemaVersion
	state.SavedAt = time.Now()

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".autotag-session-*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Load reads the checkpoint. Absence, unreadable JSON and schema mismatch
// all surface as ErrNoState; the latter two are logged first so the
// operator knows a checkpoint existed.
func (m *Manager) Load() (*State, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		slog.Warn("Checkpoint is corrupt, treating as no resumable session", "path", m.path, "err", err)
		return nil, ErrNoState
	}
	if state.SchemaVersion != SchemaVersion {
		slog.Warn("Checkpoint schema version mismatch, treating as no resumable session",
			"path", m.path, "found", state.SchemaVersion, "want", SchemaVersion)
		return nil, ErrNoState
	}
	return &state, nil
}

// Clear removes the checkpoint. Missing files are fine; completion and stop
// both call this.
func (m *Manager) Clear() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
