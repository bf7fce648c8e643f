package profiles

import (
	"testing"

	"github.com/phototools/autotag/internal/config"
)

func TestLoadBuiltin(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	p, err := store.Load("astro")
	if err != nil {
		t.Fatal(err)
	}
	if p.Mode != config.ModeTargeted || len(p.Mappings) == 0 {
		t.Errorf("astro profile = %+v", p)
	}
}

func TestSaveShadowsBuiltin(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	custom := Profile{Name: "travel", Description: "mine", Mode: config.ModeAuto, AutoTags: []string{"Trip"}}
	if err := store.Save(custom); err != nil {
		t.Fatal(err)
	}

	p, err := store.Load("travel")
	if err != nil {
		t.Fatal(err)
	}
	if p.Description != "mine" || len(p.AutoTags) != 1 || p.AutoTags[0] != "Trip" {
		t.Errorf("file profile did not shadow the builtin: %+v", p)
	}

	all, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, q := range all {
		if q.Name == "travel" {
			count++
			if q.Description != "mine" {
				t.Error("List returned the builtin instead of the file profile")
			}
		}
	}
	if count != 1 {
		t.Errorf("travel appears %d times in List, want 1", count)
	}
}

func TestApplyOverlaysOnlySetFields(t *testing.T) {
	cfg := config.Default()
	cfg.Language = "french"

	p := Profile{Mode: config.ModeTargeted, Mappings: []config.Mapping{{Criterion: "a bridge", Tag: "Bridge"}}}
	p.Apply(&cfg)

	if cfg.Mode != config.ModeTargeted {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Language != "french" {
		t.Errorf("unset profile field clobbered language: %q", cfg.Language)
	}
	if cfg.MaxTags != 15 {
		t.Errorf("unset profile field clobbered max tags: %d", cfg.MaxTags)
	}
}

func TestLoadUnknownProfile(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("no-such-profile"); err == nil {
		t.Fatal("expected an error")
	}
}
