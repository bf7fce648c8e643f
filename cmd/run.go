package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/phototools/autotag/internal/catalog"
	"github.com/phototools/autotag/internal/checkpoint"
	"github.com/phototools/autotag/internal/config"
	"github.com/phototools/autotag/internal/previews"
	"github.com/phototools/autotag/internal/profiles"
	"github.com/phototools/autotag/internal/session"
	"github.com/phototools/autotag/internal/source"
	"github.com/phototools/autotag/internal/tagging"
	"github.com/phototools/autotag/internal/volumes"
	"github.com/phototools/autotag/internal/writer"
)

func newRunCmd() *cobra.Command {
	cfg := config.Default()
	var (
		folderPath  string
		mappings    []string
		profileName string
		noCatalog   bool
		noSidecar   bool
		noSuffix    bool
		resume      bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tag photos from a catalog or folder",
		Long: `Run a tagging session over a Lightroom catalog or a plain photo folder.

Interrupting with Ctrl-C pauses the session at the current photo boundary;
run again with --resume to continue exactly where it left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if folderPath != "" {
				cfg.SourceMode = config.SourceFolder
				cfg.FolderPath = folderPath
				cfg.WriteCatalog = false
			}
			if noCatalog {
				cfg.WriteCatalog = false
			}
			if noSidecar {
				cfg.WriteSidecar = false
			}
			if noSuffix {
				cfg.SuffixEnabled = false
			}

			parsed, err := parseMappings(mappings)
			if err != nil {
				return err
			}
			if len(parsed) > 0 {
				cfg.Mappings = parsed
				cfg.Mode = config.ModeTargeted
			}

			if profileName != "" {
				if err := applyProfile(cmd, &cfg, profileName, len(parsed) > 0); err != nil {
					return err
				}
			}

			return executeRun(cmd, cfg, resume, force)
		},
	}

	cmd.Flags().StringVar(&cfg.CatalogPath, "catalog", "", "Path to the Lightroom catalog (.lrcat)")
	cmd.Flags().StringVar(&folderPath, "folder", "", "Tag a photo folder instead of a catalog (sidecars only)")
	cmd.Flags().StringVar(&cfg.Provider, "provider", cfg.Provider, "Inference provider (ollama or gemini)")
	cmd.Flags().StringVar(&cfg.Model, "model", cfg.Model, "Vision model name")
	cmd.Flags().StringVar(&cfg.Language, "language", cfg.Language, "Keyword language")
	cmd.Flags().Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "Sampling temperature")
	cmd.Flags().StringArrayVar(&mappings, "detect", nil, "Targeted mapping as 'criterion=tag' (repeatable)")
	cmd.Flags().StringSliceVar(&cfg.AutoTags, "auto-tag", nil, "Tag applied to every processed photo (repeatable)")
	cmd.Flags().StringVar(&profileName, "profile", "", "Tagging profile to apply")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Do not write keywords into the catalog")
	cmd.Flags().BoolVar(&noSidecar, "no-sidecar", false, "Do not write XMP sidecar files")
	cmd.Flags().StringVar(&cfg.Suffix, "suffix", cfg.Suffix, "Suffix appended to generated keywords")
	cmd.Flags().BoolVar(&noSuffix, "no-suffix", false, "Disable the generated-keyword suffix")
	cmd.Flags().IntVar(&cfg.MaxTags, "max-tags", cfg.MaxTags, "Maximum generated keywords per photo")
	cmd.Flags().IntVar(&cfg.TimeoutSeconds, "timeout", cfg.TimeoutSeconds, "Per-call inference timeout in seconds")
	cmd.Flags().IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "Retries per inference call on transient failures")
	cmd.Flags().BoolVar(&cfg.OnlyUntagged, "only-untagged", false, "Only photos without any keyword")
	cmd.Flags().StringVar(&cfg.DateFrom, "from", "", "Only photos captured on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.DateTo, "to", "", "Only photos captured on or before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&cfg.MinRating, "min-rating", cfg.MinRating, "Only photos rated at least this (-1 disables)")
	cmd.Flags().StringVar(&cfg.Collection, "collection", "", "Only photos in collections matching this name")
	cmd.Flags().StringVar(&cfg.CheckpointPath, "state", cfg.CheckpointPath, "Session checkpoint file")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume the paused session from its checkpoint")
	cmd.Flags().BoolVar(&force, "force", false, "Discard any existing checkpoint and start fresh")

	return cmd
}

func parseMappings(raw []string) ([]config.Mapping, error) {
	var out []config.Mapping
	for _, m := range raw {
		criterion, tag, ok := strings.Cut(m, "=")
		if !ok || criterion == "" || tag == "" {
			return nil, fmt.Errorf("invalid --detect value %q, expected 'criterion=tag'", m)
		}
		out = append(out, config.Mapping{Criterion: strings.TrimSpace(criterion), Tag: strings.TrimSpace(tag)})
	}
	return out, nil
}

// applyProfile overlays the named profile onto the session for every field
// the operator did not set explicitly on the command line.
func applyProfile(cmd *cobra.Command, cfg *config.Session, name string, explicitMappings bool) error {
	store, err := profiles.NewStore("")
	if err != nil {
		return err
	}
	p, err := store.Load(name)
	if err != nil {
		return err
	}

	if explicitMappings {
		p.Mode = ""
		p.Mappings = nil
	}
	if cmd.Flags().Changed("auto-tag") {
		p.AutoTags = nil
	}
	if cmd.Flags().Changed("language") {
		p.Language = ""
	}
	if cmd.Flags().Changed("max-tags") {
		p.MaxTags = 0
	}
	if cmd.Flags().Changed("suffix") {
		p.Suffix = ""
	}
	p.Apply(cfg)
	return nil
}

// resumeCompatible lists the flags that may accompany --resume. Everything
// else belongs to the checkpointed configuration, which a resume restores
// wholesale; accepting such a flag and silently discarding it would hide a
// configuration mismatch from the operator.
var resumeCompatible = map[string]bool{
	"resume":  true,
	"state":   true,
	"force":   true,
	"verbose": true,
}

func conflictingResumeFlags(cmd *cobra.Command) []string {
	var names []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if !resumeCompatible[f.Name] {
			names = append(names, "--"+f.Name)
		}
	})
	return names
}

func executeRun(cmd *cobra.Command, cfg config.Session, resume, force bool) error {
	if resume {
		if conflicts := conflictingResumeFlags(cmd); len(conflicts) > 0 {
			return fmt.Errorf("--resume restores the session's saved configuration and cannot be combined with %s; drop them, or start fresh with --force",
				strings.Join(conflicts, ", "))
		}
	}

	ckpt := checkpoint.NewManager(cfg.CheckpointPath)
	state, err := ckpt.Load()
	switch {
	case err != nil && !errors.Is(err, checkpoint.ErrNoState):
		return err
	case resume:
		if errors.Is(err, checkpoint.ErrNoState) {
			return fmt.Errorf("--resume given but %s holds no resumable session", ckpt.Path())
		}
		// The saved configuration is the session's configuration; the current
		// flags only told us where the checkpoint lives.
		cfg = state.Config
		cfg.CheckpointPath = ckpt.Path()
	case err == nil && !force:
		return fmt.Errorf("a paused session exists at %s (saved %s, photo %d of %d); rerun with --resume to continue it or --force to discard it",
			ckpt.Path(), state.SavedAt.Format("2006-01-02 15:04"), state.Cursor, state.Total)
	case err == nil && force:
		if err := ckpt.Clear(); err != nil {
			return err
		}
		state = nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	vols := volumes.NewResolver()
	originals := previews.NewOriginalLocator(vols)

	var (
		src      source.Source
		prevLoc  session.PreviewLocator
		kwReader session.KeywordReader
		store    *catalog.Store
		dests    []writer.DestinationWriter
	)

	if cfg.SourceMode == config.SourceCatalog {
		store, err = catalog.Open(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer store.Close()

		src = store.Source(catalog.Filter{
			OnlyUntagged: cfg.OnlyUntagged,
			DateFrom:     cfg.DateFrom,
			DateTo:       cfg.DateTo,
			MinRating:    cfg.MinRating,
			Collection:   cfg.Collection,
		})
		prevLoc = previews.NewLocator(cfg.CatalogPath, vols)
		kwReader = store
	} else {
		src = source.NewFolderSource(cfg.FolderPath)
	}

	if cfg.WriteCatalog {
		dests = append(dests, writer.NewCatalogDestination(store))
	}
	if cfg.WriteSidecar {
		dests = append(dests, writer.NewSidecarDestination(originals))
	}

	provider, err := tagging.New(cfg.Provider)
	if err != nil {
		return err
	}
	client := tagging.NewClient(provider, tagging.Options{
		Model:       cfg.Model,
		Language:    cfg.Language,
		Temperature: cfg.Temperature,
		MaxTags:     cfg.MaxTags,
		Timeout:     cfg.Timeout(),
		MaxRetries:  cfg.MaxRetries,
	})

	coord := writer.NewCoordinator(dests...)
	slog.Info("Session configured", "source", src.Describe(), "destinations", coord.Destinations(),
		"provider", cfg.Provider, "model", cfg.Model)

	runner := session.New(cfg, session.Deps{
		Source:      src,
		Previews:    prevLoc,
		Originals:   originals,
		Tagger:      client,
		Coordinator: coord,
		Catalog:     kwReader,
		Checkpoint:  ckpt,
	})

	var summary session.Summary
	if resume {
		summary, err = runner.Resume(cmd.Context(), state)
	} else {
		summary, err = runner.Run(cmd.Context())
	}
	if err != nil {
		if errors.Is(err, session.ErrConfigMismatch) {
			return fmt.Errorf("%w; start fresh with --force or resume with the original settings", err)
		}
		return err
	}

	printSummary(summary, ckpt.Path())
	return nil
}

func printSummary(s session.Summary, checkpointPath string) {
	fmt.Printf("\nSession %s: %d of %d photos\n", s.Phase, s.Cursor, s.Total)
	fmt.Printf("  analyzed:             %d (degraded to original: %d)\n", s.Counters.Analyzed, s.Counters.Degraded)
	fmt.Printf("  tagged:               %d\n", s.Counters.Tagged)
	fmt.Printf("  catalog writes:       %d\n", s.Counters.CatalogWritten)
	fmt.Printf("  sidecar writes:       %d\n", s.Counters.SidecarWritten)
	fmt.Printf("  skipped, no new tags: %d\n", s.Counters.SkippedNoTags)
	fmt.Printf("  skipped, unreachable: %d\n", s.Counters.SkippedUnreachable)
	fmt.Printf("  skipped, no source:   %d\n", s.Counters.SkippedNoSource)
	fmt.Printf("  failed:               %d\n", s.Counters.Failed)
	if s.Phase == session.Paused {
		fmt.Printf("\nResume with: autotag run --resume --state %s\n", checkpointPath)
	}
}
