package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phototools/autotag/internal/checkpoint"
	"github.com/phototools/autotag/internal/config"
	"github.com/phototools/autotag/internal/previews"
	"github.com/phototools/autotag/internal/source"
	"github.com/phototools/autotag/internal/transform"
	"github.com/phototools/autotag/internal/writer"
)

type sliceSource struct {
	photos []source.Photo
}

func (s *sliceSource) Enumerate(ctx context.Context) ([]source.Photo, error) {
	return s.photos, nil
}

func (s *sliceSource) Describe() string { return "test" }

type fakePreviews struct {
	valid map[int64]bool
}

func (f *fakePreviews) Locate(p source.Photo) previews.Handle {
	if f.valid[p.ID] {
		return previews.Handle{Path: "/previews/" + p.FileName + ".dng", Valid: true}
	}
	return previews.Handle{}
}

type fakeOriginals struct {
	accessible map[int64]bool
}

func (f *fakeOriginals) Locate(p source.Photo) (string, bool) {
	return "/originals/" + p.FileName, f.accessible[p.ID]
}

type fakeTagger struct {
	tags      []string
	err       error
	seen      []string
	onCall    func()
	criterion map[string]bool
}

func (f *fakeTagger) GenerateTags(ctx context.Context, imagePath string) ([]string, error) {
	f.seen = append(f.seen, imagePath)
	if f.onCall != nil {
		f.onCall()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.tags, f.err
}

func (f *fakeTagger) CheckCriterion(ctx context.Context, imagePath, criterion string) (bool, error) {
	f.seen = append(f.seen, imagePath+"?"+criterion)
	return f.criterion[criterion], nil
}

type fakeDest struct {
	name    writer.Destination
	outcome writer.Outcome
	writes  []transform.KeywordSet
}

func (f *fakeDest) Name() writer.Destination { return f.name }

func (f *fakeDest) Write(p source.Photo, ks transform.KeywordSet) writer.Outcome {
	f.writes = append(f.writes, ks)
	if f.outcome == "" {
		if !ks.HasNew() {
			return writer.AlreadyPresent
		}
		return writer.Written
	}
	return f.outcome
}

type fakeKeywords struct {
	existing map[int64][]string
}

func (f *fakeKeywords) ExistingKeywords(photoID int64) ([]string, error) {
	return f.existing[photoID], nil
}

func testConfig(t *testing.T) config.Session {
	cfg := config.Default()
	cfg.CatalogPath = "/photos/Test.lrcat"
	cfg.CheckpointPath = filepath.Join(t.TempDir(), "session.json")
	return cfg
}

func threePhotos() []source.Photo {
	return []source.Photo{
		{ID: 1, FileName: "one.cr2"},
		{ID: 2, FileName: "two.cr2"},
		{ID: 3, FileName: "three.cr2"},
	}
}

func TestRunCompletes(t *testing.T) {
	cfg := testConfig(t)
	ckpt := checkpoint.NewManager(cfg.CheckpointPath)
	tagger := &fakeTagger{tags: []string{"Mountain", "Lake"}}
	dest := &fakeDest{name: writer.DestCatalog}

	r := New(cfg, Deps{
		Source:      &sliceSource{photos: threePhotos()},
		Previews:    &fakePreviews{valid: map[int64]bool{1: true, 2: true, 3: true}},
		Originals:   &fakeOriginals{},
		Tagger:      tagger,
		Coordinator: writer.NewCoordinator(dest),
		Catalog:     &fakeKeywords{},
		Checkpoint:  ckpt,
	})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Completed, summary.Phase)
	assert.Equal(t, 3, summary.Cursor)
	assert.Equal(t, 3, summary.Counters.Analyzed)
	assert.Equal(t, 3, summary.Counters.Tagged)
	assert.Equal(t, 3, summary.Counters.CatalogWritten)
	assert.Equal(t, 0, summary.Counters.Degraded)

	require.Len(t, dest.writes, 3)
	assert.Equal(t, []string{"Mountain_ai", "Lake_ai"}, dest.writes[0].Added)

	_, err = ckpt.Load()
	assert.ErrorIs(t, err, checkpoint.ErrNoState, "checkpoint must be cleared after completion")
}

func TestRunFallsBackToOriginal(t *testing.T) {
	cfg := testConfig(t)
	tagger := &fakeTagger{tags: []string{"Forest"}}

	r := New(cfg, Deps{
		Source:      &sliceSource{photos: threePhotos()},
		Previews:    &fakePreviews{valid: map[int64]bool{1: true}},
		Originals:   &fakeOriginals{accessible: map[int64]bool{2: true}},
		Tagger:      tagger,
		Coordinator: writer.NewCoordinator(&fakeDest{name: writer.DestCatalog}),
		Catalog:     &fakeKeywords{},
		Checkpoint:  checkpoint.NewManager(cfg.CheckpointPath),
	})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	// Photo 1 via preview, photo 2 via original, photo 3 has neither.
	assert.Equal(t, 2, summary.Counters.Analyzed)
	assert.Equal(t, 1, summary.Counters.Degraded)
	assert.Equal(t, 1, summary.Counters.SkippedNoSource)
	require.Len(t, tagger.seen, 2)
	assert.True(t, strings.HasPrefix(tagger.seen[0], "/previews/"))
	assert.True(t, strings.HasPrefix(tagger.seen[1], "/originals/"))
}

func TestRunInferenceFailureDegradesToNoKeywords(t *testing.T) {
	cfg := testConfig(t)
	dest := &fakeDest{name: writer.DestCatalog}

	r := New(cfg, Deps{
		Source:      &sliceSource{photos: threePhotos()[:1]},
		Previews:    &fakePreviews{valid: map[int64]bool{1: true}},
		Originals:   &fakeOriginals{},
		Tagger:      &fakeTagger{err: errors.New("model crashed")},
		Coordinator: writer.NewCoordinator(dest),
		Catalog:     &fakeKeywords{existing: map[int64][]string{1: {"Keeper"}}},
		Checkpoint:  checkpoint.NewManager(cfg.CheckpointPath),
	})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Completed, summary.Phase)
	assert.Equal(t, 1, summary.Counters.SkippedNoTags)
	assert.Equal(t, 0, summary.Counters.Tagged)
	assert.Equal(t, 0, summary.Counters.Failed)

	// The destination still sees the photo so existing keywords are preserved.
	require.Len(t, dest.writes, 1)
	assert.Empty(t, dest.writes[0].Added)
	assert.Equal(t, []string{"Keeper"}, dest.writes[0].Existing)
}

func TestPauseAndResumeProcessesEachPhotoOnce(t *testing.T) {
	cfg := testConfig(t)
	ckpt := checkpoint.NewManager(cfg.CheckpointPath)
	photos := threePhotos()
	allValid := map[int64]bool{1: true, 2: true, 3: true}

	var firstRunner *Runner
	firstTagger := &fakeTagger{tags: []string{"Alps"}}
	firstTagger.onCall = func() {
		if len(firstTagger.seen) == 1 {
			firstRunner.RequestPause()
		}
	}

	firstRunner = New(cfg, Deps{
		Source:      &sliceSource{photos: photos},
		Previews:    &fakePreviews{valid: allValid},
		Originals:   &fakeOriginals{},
		Tagger:      firstTagger,
		Coordinator: writer.NewCoordinator(&fakeDest{name: writer.DestCatalog}),
		Catalog:     &fakeKeywords{},
		Checkpoint:  ckpt,
	})

	summary, err := firstRunner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Paused, summary.Phase)
	assert.Equal(t, 1, summary.Cursor, "pause lands on the boundary after the in-flight photo")

	state, err := ckpt.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cursor)

	secondTagger := &fakeTagger{tags: []string{"Alps"}}
	secondRunner := New(cfg, Deps{
		Source:      &sliceSource{photos: photos},
		Previews:    &fakePreviews{valid: allValid},
		Originals:   &fakeOriginals{},
		Tagger:      secondTagger,
		Coordinator: writer.NewCoordinator(&fakeDest{name: writer.DestCatalog}),
		Catalog:     &fakeKeywords{},
		Checkpoint:  ckpt,
	})

	summary, err = secondRunner.Resume(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, Completed, summary.Phase)
	assert.Equal(t, 3, summary.Cursor)
	assert.Equal(t, 3, summary.Counters.Analyzed, "counters continue across the resume")

	// One photo before the pause, two after; none twice.
	assert.Len(t, firstTagger.seen, 1)
	assert.Len(t, secondTagger.seen, 2)
}

func TestResumeRejectsChangedConfig(t *testing.T) {
	cfg := testConfig(t)
	state := &checkpoint.State{Fingerprint: cfg.Fingerprint(), Cursor: 1}

	changed := cfg
	changed.Model = "some-other-model"

	r := New(changed, Deps{
		Source:     &sliceSource{},
		Checkpoint: checkpoint.NewManager(cfg.CheckpointPath),
	})
	_, err := r.Resume(context.Background(), state)
	assert.ErrorIs(t, err, ErrConfigMismatch)
}

func TestStopClearsCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	ckpt := checkpoint.NewManager(cfg.CheckpointPath)

	var r *Runner
	tagger := &fakeTagger{tags: []string{"Alps"}}
	tagger.onCall = func() { r.RequestStop() }

	r = New(cfg, Deps{
		Source:      &sliceSource{photos: threePhotos()},
		Previews:    &fakePreviews{valid: map[int64]bool{1: true, 2: true, 3: true}},
		Originals:   &fakeOriginals{},
		Tagger:      tagger,
		Coordinator: writer.NewCoordinator(&fakeDest{name: writer.DestCatalog}),
		Catalog:     &fakeKeywords{},
		Checkpoint:  ckpt,
	})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Stopped, summary.Phase)
	assert.Equal(t, 1, summary.Cursor, "the in-flight photo finishes before the stop")

	_, err = ckpt.Load()
	assert.ErrorIs(t, err, checkpoint.ErrNoState)
}

func TestCancellationPausesWithCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	ckpt := checkpoint.NewManager(cfg.CheckpointPath)
	ctx, cancel := context.WithCancel(context.Background())

	tagger := &fakeTagger{tags: []string{"Alps"}}
	tagger.onCall = func() {
		if len(tagger.seen) == 2 {
			cancel()
		}
	}

	r := New(cfg, Deps{
		Source:      &sliceSource{photos: threePhotos()},
		Previews:    &fakePreviews{valid: map[int64]bool{1: true, 2: true, 3: true}},
		Originals:   &fakeOriginals{},
		Tagger:      tagger,
		Coordinator: writer.NewCoordinator(&fakeDest{name: writer.DestCatalog}),
		Catalog:     &fakeKeywords{},
		Checkpoint:  ckpt,
	})

	summary, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, Paused, summary.Phase)
	assert.Equal(t, 1, summary.Cursor, "the interrupted photo is not past the cursor")

	state, err := ckpt.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cursor)
}

func TestTargetedMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = config.ModeTargeted
	cfg.Mappings = []config.Mapping{
		{Criterion: "a lake or body of water", Tag: "Lake"},
		{Criterion: "snow-covered mountains", Tag: "Mountains"},
	}
	dest := &fakeDest{name: writer.DestCatalog}

	r := New(cfg, Deps{
		Source:    &sliceSource{photos: threePhotos()[:1]},
		Previews:  &fakePreviews{valid: map[int64]bool{1: true}},
		Originals: &fakeOriginals{},
		Tagger: &fakeTagger{criterion: map[string]bool{
			"a lake or body of water": true,
		}},
		Coordinator: writer.NewCoordinator(dest),
		Catalog:     &fakeKeywords{},
		Checkpoint:  checkpoint.NewManager(cfg.CheckpointPath),
	})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counters.Tagged)
	require.Len(t, dest.writes, 1)
	assert.Equal(t, []string{"Lake_ai"}, dest.writes[0].Added)
}
