// Package profiles manages reusable tagging presets stored as YAML files.
// A profile is a partial configuration overlay: only the fields it sets are
// applied on top of the session defaults, flags still win afterwards.
package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phototools/autotag/internal/config"
)

// Profile is a named tagging preset.
type Profile struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Mode        string           `yaml:"mode,omitempty"`
	Mappings    []config.Mapping `yaml:"mappings,omitempty"`
	AutoTags    []string         `yaml:"auto_tags,omitempty"`
	Language    string           `yaml:"language,omitempty"`
	MaxTags     int              `yaml:"max_tags,omitempty"`
	Suffix      string           `yaml:"suffix,omitempty"`
}

// Apply overlays the profile's set fields onto the session.
func (p Profile) Apply(s *config.Session) {
	if p.Mode != "" {
		s.Mode = p.Mode
	}
	if len(p.Mappings) > 0 {
		s.Mappings = p.Mappings
	}
	if len(p.AutoTags) > 0 {
		s.AutoTags = p.AutoTags
	}
	if p.Language != "" {
		s.Language = p.Language
	}
	if p.MaxTags > 0 {
		s.MaxTags = p.MaxTags
	}
	if p.Suffix != "" {
		s.Suffix = p.Suffix
	}
}

// builtins ship with the binary and cover the common shoot types. A file
// profile with the same name shadows the builtin.
var builtins = []Profile{
	{
		Name:        "astro",
		Description: "Night sky and astrophotography sessions",
		Mode:        config.ModeTargeted,
		Mappings: []config.Mapping{
			{Criterion: "the Milky Way core or band is visible", Tag: "Milky Way"},
			{Criterion: "star trails from a long exposure are visible", Tag: "Star Trails"},
			{Criterion: "the aurora borealis or australis is visible", Tag: "Aurora"},
			{Criterion: "the Moon is a prominent subject", Tag: "Moon"},
			{Criterion: "a comet or meteor is visible", Tag: "Comet"},
		},
		AutoTags: []string{"Astrophotography", "Night"},
	},
	{
		Name:        "travel",
		Description: "General travel and street photography",
		Mode:        config.ModeAuto,
		AutoTags:    []string{"Travel"},
		MaxTags:     10,
	},
	{
		Name:        "architecture",
		Description: "Buildings, interiors and urban structures",
		Mode:        config.ModeTargeted,
		Mappings: []config.Mapping{
			{Criterion: "a church, cathedral or temple is the main subject", Tag: "Sacral"},
			{Criterion: "a modern glass or steel building is the main subject", Tag: "Modern Architecture"},
			{Criterion: "the photo shows a building interior", Tag: "Interior"},
			{Criterion: "a bridge is the main subject", Tag: "Bridge"},
			{Criterion: "the photo is dominated by stairs or a staircase", Tag: "Stairs"},
		},
		AutoTags: []string{"Architecture"},
	},
}

// Store reads and writes profiles under a single directory.
type Store struct {
	dir string
}

// NewStore returns a profile store at dir. Empty dir selects the default
// location under the user config directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "autotag", "profiles")
	}
	return &Store{dir: dir}, nil
}

// List returns every available profile, builtins included, sorted by name.
func (s *Store) List() ([]Profile, error) {
	byName := make(map[string]Profile, len(builtins))
	for _, p := range builtins {
		byName[p.Name] = p
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		p, err := s.load(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		byName[p.Name] = p
	}

	out := make([]Profile, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Load returns the named profile, preferring a file over a builtin.
func (s *Store) Load(name string) (Profile, error) {
	path := filepath.Join(s.dir, name+".yaml")
	if _, err := os.Stat(path); err == nil {
		return s.load(path)
	}
	for _, p := range builtins {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("profile %q not found in %s", name, s.dir)
}

// Save writes the profile as <name>.yaml, creating the directory as needed.
func (s *Store) Save(p Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile needs a name")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create profiles dir: %w", err)
	}

	raw, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	path := filepath.Join(s.dir, p.Name+".yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

func (s *Store) load(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), ".yaml")
	}
	return p, nil
}
