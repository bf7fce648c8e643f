// Package session drives a tagging run: enumerate the source, process one
// photo at a time (locate, infer, transform, write), keep the checkpoint
// current, and honor pause and stop at photo boundaries.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/phototools/autotag/internal/checkpoint"
	"github.com/phototools/autotag/internal/config"
	"github.com/phototools/autotag/internal/previews"
	"github.com/phototools/autotag/internal/sidecar"
	"github.com/phototools/autotag/internal/source"
	"github.com/phototools/autotag/internal/transform"
	"github.com/phototools/autotag/internal/writer"
)

// Phase is the runner's lifecycle state. Paused is the only state a run can
// re-enter Running from; Stopped and Completed are terminal and both imply
// the checkpoint is gone.
type Phase int32

const (
	Idle Phase = iota
	Running
	Paused
	Stopped
	Completed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Control requests, observed cooperatively at photo boundaries. Never
// preemptive: an in-flight photo always finishes its writes first.
const (
	ctrlNone int32 = iota
	ctrlPause
	ctrlStop
)

// ErrConfigMismatch means the checkpoint was written under a different
// recognized configuration than the one about to run. The operator decides;
// the runner never guesses and silently substitutes.
var ErrConfigMismatch = errors.New("checkpoint configuration does not match the requested run")

// errInterrupted aborts the current photo before any write happened, so the
// cursor must not advance past it.
var errInterrupted = errors.New("interrupted before write")

// Tagger is the inference boundary the runner drives.
type Tagger interface {
	GenerateTags(ctx context.Context, imagePath string) ([]string, error)
	CheckCriterion(ctx context.Context, imagePath, criterion string) (bool, error)
}

// PreviewLocator resolves rendered preview assets.
type PreviewLocator interface {
	Locate(p source.Photo) previews.Handle
}

// OriginalLocator resolves original image files.
type OriginalLocator interface {
	Locate(p source.Photo) (string, bool)
}

// KeywordReader exposes a photo's pre-existing catalog keywords for the
// additive merge. Nil when no catalog is involved.
type KeywordReader interface {
	ExistingKeywords(photoID int64) ([]string, error)
}

// Deps are the collaborators a runner orchestrates.
type Deps struct {
	Source      source.Source
	Previews    PreviewLocator // nil for folder sources
	Originals   OriginalLocator
	Tagger      Tagger
	Coordinator *writer.Coordinator
	Catalog     KeywordReader // nil for folder sources
	Checkpoint  *checkpoint.Manager
}

// Summary is what a finished (or interrupted) run reports.
type Summary struct {
	Phase    Phase
	Cursor   int
	Total    int
	Counters checkpoint.Counters
}

// Runner owns the session state exclusively while a run is in progress; it
// is the only writer of the checkpoint.
type Runner struct {
	cfg  config.Session
	deps Deps

	phase atomic.Int32
	ctrl  atomic.Int32

	counters checkpoint.Counters
	cursor   int
	total    int
}

func New(cfg config.Session, deps Deps) *Runner {
	return &Runner{cfg: cfg, deps: deps}
}

// Phase returns the current lifecycle state.
func (r *Runner) Phase() Phase {
	return Phase(r.phase.Load())
}

// RequestPause asks the runner to checkpoint and return at the next photo
// boundary. Resumability is preserved.
func (r *Runner) RequestPause() {
	r.ctrl.CompareAndSwap(ctrlNone, ctrlPause)
}

// RequestStop asks the runner to quit at the next photo boundary and
// discard the checkpoint. No resume is possible afterwards.
func (r *Runner) RequestStop() {
	r.ctrl.Store(ctrlStop)
}

// Run starts a fresh session from cursor zero.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if !r.phase.CompareAndSwap(int32(Idle), int32(Running)) {
		return r.summary(), fmt.Errorf("runner already used; phase %s", r.Phase())
	}
	r.cursor = 0
	r.counters = checkpoint.Counters{}
	return r.loop(ctx)
}

// Resume continues a paused session from its saved cursor. The state must
// carry the same configuration fingerprint as this runner; the source is
// re-enumerated, not replayed, relying on its stable order.
func (r *Runner) Resume(ctx context.Context, state *checkpoint.State) (Summary, error) {
	if state.Fingerprint != r.cfg.Fingerprint() {
		return r.summary(), ErrConfigMismatch
	}
	if !r.phase.CompareAndSwap(int32(Idle), int32(Running)) {
		return r.summary(), fmt.Errorf("runner already used; phase %s", r.Phase())
	}
	r.cursor = state.Cursor
	r.counters = state.Counters
	r.total = state.Total
	slog.Info("Resuming session", "cursor", state.Cursor, "total", state.Total, "saved_at", state.SavedAt)
	return r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) (Summary, error) {
	photos, err := r.deps.Source.Enumerate(ctx)
	if err != nil {
		r.phase.Store(int32(Stopped))
		return r.summary(), fmt.Errorf("enumerate source: %w", err)
	}
	if r.total > 0 && r.total != len(photos) {
		slog.Warn("Source size changed since checkpoint; cursor may not land on the same photo",
			"was", r.total, "now", len(photos))
	}
	r.total = len(photos)

	for i := r.cursor; i < len(photos); i++ {
		switch {
		case r.ctrl.Load() == ctrlStop:
			return r.finishStopped()
		case r.ctrl.Load() == ctrlPause, ctx.Err() != nil:
			return r.finishPaused()
		}

		err := r.processPhoto(ctx, photos[i])
		if errors.Is(err, errInterrupted) {
			// Nothing was written for this photo; pause with the cursor
			// still pointing at it.
			return r.finishPaused()
		}

		r.cursor = i + 1
		if err := r.saveCheckpoint(); err != nil {
			slog.Error("Checkpoint save failed", "err", err)
		}
	}

	if err := r.deps.Checkpoint.Clear(); err != nil {
		slog.Warn("Could not clear checkpoint after completion", "err", err)
	}
	r.phase.Store(int32(Completed))
	slog.Info("Session completed", "photos", r.total,
		"catalog_written", r.counters.CatalogWritten, "sidecar_written", r.counters.SidecarWritten)
	return r.summary(), nil
}

func (r *Runner) finishPaused() (Summary, error) {
	if err := r.saveCheckpoint(); err != nil {
		r.phase.Store(int32(Stopped))
		return r.summary(), fmt.Errorf("save checkpoint on pause: %w", err)
	}
	r.phase.Store(int32(Paused))
	slog.Info("Session paused", "cursor", r.cursor, "total", r.total, "checkpoint", r.deps.Checkpoint.Path())
	return r.summary(), nil
}

func (r *Runner) finishStopped() (Summary, error) {
	if err := r.deps.Checkpoint.Clear(); err != nil {
		slog.Warn("Could not clear checkpoint on stop", "err", err)
	}
	r.phase.Store(int32(Stopped))
	slog.Info("Session stopped", "cursor", r.cursor, "total", r.total)
	return r.summary(), nil
}

func (r *Runner) saveCheckpoint() error {
	return r.deps.Checkpoint.Save(&checkpoint.State{
		Config:      r.cfg,
		Fingerprint: r.cfg.Fingerprint(),
		Cursor:      r.cursor,
		Total:       r.total,
		Counters:    r.counters,
	})
}

func (r *Runner) summary() Summary {
	return Summary{Phase: r.Phase(), Cursor: r.cursor, Total: r.total, Counters: r.counters}
}

// processPhoto runs the fixed per-photo sequence. It only returns an error
// when interrupted before any write; every other failure is absorbed into
// counters so one bad photo never aborts the batch.
func (r *Runner) processPhoto(ctx context.Context, p source.Photo) error {
	analysisPath, degraded, ok := r.analysisInput(p)
	if !ok {
		r.counters.SkippedNoSource++
		slog.Warn("No preview and no accessible original, photo skipped", "photo", p.FileName)
		return nil
	}
	r.counters.Analyzed++
	if degraded {
		r.counters.Degraded++
	}

	existing := r.existingKeywords(p)

	raw, err := r.generate(ctx, analysisPath)
	if err != nil {
		if ctx.Err() != nil {
			return errInterrupted
		}
		// Retry exhaustion and permanent failures degrade to zero new
		// keywords; existing keywords still flow through the merge untouched.
		slog.Error("Inference failed, continuing with no generated keywords", "photo", p.FileName, "err", err)
		raw = nil
	}
	raw = append(raw, r.cfg.AutoTags...)

	ks := transform.Apply(raw, existing, transform.Policy{
		Suffix:  r.cfg.FullSuffix(),
		MaxTags: r.cfg.MaxTags,
	})
	if !ks.HasNew() {
		r.counters.SkippedNoTags++
	}

	result := r.deps.Coordinator.Write(p, ks)
	r.recordOutcomes(p, ks, result)
	return nil
}

// analysisInput picks the image handed to the inference service: the
// rendered preview when one exists, otherwise the original (degraded mode,
// slower and dependent on the volume being mounted).
func (r *Runner) analysisInput(p source.Photo) (path string, degraded, ok bool) {
	if r.deps.Previews != nil {
		if h := r.deps.Previews.Locate(p); h.Valid {
			return h.Path, false, true
		}
	}
	if path, accessible := r.deps.Originals.Locate(p); accessible {
		return path, r.deps.Previews != nil, true
	}
	return "", false, false
}

// existingKeywords fetches the photo's current keywords for the additive
// merge: from the catalog when one is attached, else from the sidecar.
func (r *Runner) existingKeywords(p source.Photo) []string {
	if r.deps.Catalog != nil && p.ID != 0 {
		existing, err := r.deps.Catalog.ExistingKeywords(p.ID)
		if err != nil {
			slog.Warn("Could not read existing catalog keywords", "photo", p.ID, "err", err)
			return nil
		}
		return existing
	}
	if path, ok := r.deps.Originals.Locate(p); ok {
		existing, err := sidecar.ReadKeywords(path)
		if err != nil {
			slog.Warn("Could not read existing sidecar keywords", "photo", p.FileName, "err", err)
			return nil
		}
		return existing
	}
	return nil
}

// generate produces raw phrases per the tagging mode. Targeted mode issues
// one inference call per criterion, so a photo costs O(criteria) remote
// calls by contract.
func (r *Runner) generate(ctx context.Context, imagePath string) ([]string, error) {
	if r.cfg.Mode == config.ModeAuto {
		return r.deps.Tagger.GenerateTags(ctx, imagePath)
	}

	var tags []string
	for _, m := range r.cfg.Mappings {
		detected, err := r.deps.Tagger.CheckCriterion(ctx, imagePath, m.Criterion)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			slog.Error("Criterion check failed, skipping criterion", "criterion", m.Criterion, "err", err)
			continue
		}
		if detected {
			tags = append(tags, m.Tag)
		}
	}
	return tags, nil
}

func (r *Runner) recordOutcomes(p source.Photo, ks transform.KeywordSet, result writer.Result) {
	for dest, outcome := range result {
		switch {
		case dest == writer.DestCatalog && outcome == writer.Written:
			r.counters.CatalogWritten++
		case dest == writer.DestSidecar && outcome == writer.Written:
			r.counters.SidecarWritten++
		case outcome == writer.Unreachable:
			r.counters.SkippedUnreachable++
		}
	}

	if ks.HasNew() && result.Processed() {
		r.counters.Tagged++
	}
	if !result.Processed() && ks.HasNew() {
		r.counters.Failed++
		slog.Error("No requested destination holds the keywords for this photo", "photo", p.FileName)
	}
}
