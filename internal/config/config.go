// Package config holds the explicit session configuration. It is built once
// at startup from flags, environment and an optional profile, then passed to
// every component that needs it; nothing reads ambient global state.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Source modes.
const (
	SourceCatalog = "catalog"
	SourceFolder  = "folder"
)

// Tagging modes.
const (
	ModeAuto     = "auto"
	ModeTargeted = "targeted"
)

// Mapping pairs a detection criterion with the tag to apply when the
// criterion evaluates affirmative (targeted mode).
type Mapping struct {
	Criterion string `json:"criterion" yaml:"criterion"`
	Tag       string `json:"tag" yaml:"tag"`
}

// Session is the full recognized configuration of one tagging run.
type Session struct {
	SourceMode  string `json:"source_mode" yaml:"source_mode"`
	CatalogPath string `json:"catalog_path,omitempty" yaml:"catalog_path,omitempty"`
	FolderPath  string `json:"folder_path,omitempty" yaml:"folder_path,omitempty"`

	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model" yaml:"model"`
	Language    string  `json:"language" yaml:"language"`
	Temperature float64 `json:"temperature" yaml:"temperature"`

	Mode     string    `json:"mode" yaml:"mode"`
	Mappings []Mapping `json:"mappings,omitempty" yaml:"mappings,omitempty"`
	AutoTags []string  `json:"auto_tags,omitempty" yaml:"auto_tags,omitempty"`

	WriteCatalog bool `json:"write_catalog" yaml:"write_catalog"`
	WriteSidecar bool `json:"write_sidecar" yaml:"write_sidecar"`

	SuffixEnabled   bool   `json:"suffix_enabled" yaml:"suffix_enabled"`
	Suffix          string `json:"suffix" yaml:"suffix"`
	SuffixSeparator string `json:"suffix_separator" yaml:"suffix_separator"`
	MaxTags         int    `json:"max_tags" yaml:"max_tags"`

	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int `json:"max_retries" yaml:"max_retries"`

	// Enumeration filters (catalog source only).
	OnlyUntagged bool   `json:"only_untagged,omitempty" yaml:"only_untagged,omitempty"`
	DateFrom     string `json:"date_from,omitempty" yaml:"date_from,omitempty"`
	DateTo       string `json:"date_to,omitempty" yaml:"date_to,omitempty"`
	MinRating    int    `json:"min_rating" yaml:"min_rating"`
	Collection   string `json:"collection,omitempty" yaml:"collection,omitempty"`

	CheckpointPath string `json:"checkpoint_path" yaml:"checkpoint_path"`
}

// Default returns the baseline configuration before flags and profiles are
// applied. Provider and model defaults follow the usual environment
// variables.
func Default() Session {
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = "qwen2-vl"
	}
	return Session{
		SourceMode:      SourceCatalog,
		Provider:        "ollama",
		Model:           model,
		Language:        "english",
		Temperature:     0.1,
		Mode:            ModeAuto,
		WriteCatalog:    true,
		WriteSidecar:    true,
		SuffixEnabled:   true,
		Suffix:          "ai",
		SuffixSeparator: "_",
		MaxTags:         15,
		TimeoutSeconds:  300,
		MaxRetries:      2,
		MinRating:       -1,
		CheckpointPath:  "autotag-session.json",
	}
}

// Timeout returns the per-call inference deadline.
func (s Session) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Validate checks the startup preconditions that are fatal before any photo
// is processed.
func (s Session) Validate() error {
	switch s.SourceMode {
	case SourceCatalog:
		if s.CatalogPath == "" {
			return fmt.Errorf("catalog source selected but no catalog path given")
		}
		if _, err := os.Stat(s.CatalogPath); err != nil {
			return fmt.Errorf("catalog not found: %s", s.CatalogPath)
		}
	case SourceFolder:
		if s.FolderPath == "" {
			return fmt.Errorf("folder source selected but no folder path given")
		}
		if info, err := os.Stat(s.FolderPath); err != nil || !info.IsDir() {
			return fmt.Errorf("folder not found: %s", s.FolderPath)
		}
		if s.WriteCatalog {
			return fmt.Errorf("folder source cannot write to a catalog; use --sidecar only")
		}
	default:
		return fmt.Errorf("unknown source mode %q", s.SourceMode)
	}

	if !s.WriteCatalog && !s.WriteSidecar {
		return fmt.Errorf("at least one destination (catalog, sidecar) must be selected")
	}

	switch s.Mode {
	case ModeAuto:
	case ModeTargeted:
		if len(s.Mappings) == 0 {
			return fmt.Errorf("targeted mode requires at least one criterion/tag mapping")
		}
	default:
		return fmt.Errorf("unknown tagging mode %q", s.Mode)
	}

	if s.MaxTags <= 0 {
		return fmt.Errorf("max tags must be positive, got %d", s.MaxTags)
	}
	return nil
}

// Fingerprint hashes the recognized configuration. A checkpoint saved under
// one fingerprint must not be resumed under another; the mismatch is
// surfaced to the operator instead of being silently honored or ignored.
func (s Session) Fingerprint() string {
	// CheckpointPath is where the fingerprint is stored, not part of what it
	// protects.
	s.CheckpointPath = ""
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// FullSuffix is the complete suffix appended to generated tags, separator
// included, or empty when suffixing is disabled.
func (s Session) FullSuffix() string {
	if !s.SuffixEnabled || s.Suffix == "" {
		return ""
	}
	return s.SuffixSeparator + s.Suffix
}
