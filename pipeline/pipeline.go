// Package pipeline runs every stage of one short end to end: topic, script,
// narration, visuals, timeline, subtitles, post-processing, metadata and
// publishing.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"shorts-pipeline/config"
	"shorts-pipeline/manifest"
	"shorts-pipeline/types"
)

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = errors.New("another pipeline run is in progress")

const (
	lockFile     = ".pipeline.lock"
	stateFile    = "pipeline_state.json"
	manifestFile = "manifest.db"
)

// ManifestPath returns where the run manifest lives for cfg.
func ManifestPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.Output, manifestFile)
}

// Options tune a single run.
type Options struct {
	// Topic skips topic selection when set.
	Topic    string
	NoUpload bool
	KeepWork bool
}

// Pipeline sequences the stages and records every run in the manifest.
type Pipeline struct {
	cfg   *config.Config
	deps  Deps
	store *manifest.Store
	log   *slog.Logger

	newID func() string
	now   func() time.Time
}

// New creates a Pipeline.
func New(cfg *config.Config, store *manifest.Store, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		deps:  deps,
		store: store,
		log:   slog.Default().With("component", "pipeline"),
		newID: func() string { return uuid.NewString()[:8] },
		now:   time.Now,
	}
}

// Run executes one full pipeline run. The returned state is also written to
// {output}/{runID}/pipeline_state.json, including on failure.
func (p *Pipeline) Run(ctx context.Context, opts Options) (state types.RunState, err error) {
	out := p.cfg.Paths.Output
	if err := os.MkdirAll(out, 0o755); err != nil {
		return state, fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(out, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return state, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return state, ErrLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.log.Warn("failed to release pipeline lock", "err", err)
		}
	}()

	state.RunID = p.newID()
	state.StartedAt = p.now().UTC().Format(time.RFC3339)
	runDir := filepath.Join(out, state.RunID)
	workDir := filepath.Join(runDir, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return state, fmt.Errorf("create run dir: %w", err)
	}
	if err := p.store.CreateRun(ctx, state.RunID, opts.Topic); err != nil {
		return state, err
	}

	log := p.log.With("run_id", state.RunID)
	log.Info("pipeline starting", "dir", runDir)

	defer func() {
		bg := context.WithoutCancel(ctx)
		state.CompletedAt = p.now().UTC().Format(time.RFC3339)
		if err != nil {
			state.Error = err.Error()
		}
		statePath := filepath.Join(runDir, stateFile)
		if werr := saveJSON(statePath, state); werr != nil {
			log.Warn("could not save run state", "err", werr)
		} else if aerr := p.store.AddArtifact(bg, state.RunID, manifest.KindState, statePath); aerr != nil {
			log.Warn("could not record run state", "err", aerr)
		}
		if ferr := p.store.FinishRun(bg, state.RunID, state.VideoFile, err); ferr != nil {
			log.Warn("could not finish run in manifest", "err", ferr)
		}
		if !opts.KeepWork && !p.cfg.Paths.KeepWork {
			if rerr := os.RemoveAll(workDir); rerr != nil {
				log.Warn("work dir cleanup failed", "dir", workDir, "err", rerr)
			}
		}
		if err != nil {
			log.Error("pipeline failed", "err", err)
			return
		}
		log.Info("pipeline complete", "video", state.VideoFile, "published", len(state.Published))
	}()

	r := &run{p: p, opts: opts, state: &state, dir: runDir, work: workDir, log: log}
	err = r.execute(ctx)
	return state, err
}

type stage struct {
	name string
	run  func(context.Context) error
}

// execute runs the stages in order. Cancellation is checked at every stage
// boundary and errors carry the stage name.
func (r *run) execute(ctx context.Context) error {
	stages := []stage{
		{"topic", r.topic},
		{"script", r.script},
		{"tts", r.tts},
		{"plan", r.plan},
		{"resolve", r.resolve},
		{"normalize", r.normalize},
		{"assemble", r.assemble},
		{"subtitles", r.subtitles},
		{"post", r.post},
		{"metadata", r.metadata},
		{"upload", r.upload},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		start := time.Now()
		r.log.Info("stage starting", "stage", s.name)
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		r.log.Info("stage done", "stage", s.name, "elapsed", time.Since(start).Round(time.Millisecond).String())
	}
	return nil
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
