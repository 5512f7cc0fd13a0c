package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"shorts-pipeline/audio"
	"shorts-pipeline/manifest"
	"shorts-pipeline/metadata"
	"shorts-pipeline/normalize"
	"shorts-pipeline/planner"
	"shorts-pipeline/post"
	"shorts-pipeline/render"
	"shorts-pipeline/script"
	"shorts-pipeline/subtitles"
	"shorts-pipeline/topics"
	"shorts-pipeline/types"
	"shorts-pipeline/visuals"
)

// run carries the intermediate results of one execution between stages.
type run struct {
	p     *Pipeline
	opts  Options
	state *types.RunState
	dir   string
	work  string
	log   *slog.Logger

	assets []string
	clips  []types.NormalizedClip
	video  string
}

func (r *run) record(ctx context.Context, kind, path string) {
	if err := r.p.store.AddArtifact(ctx, r.state.RunID, kind, path); err != nil {
		r.log.Warn("could not record artifact", "kind", kind, "err", err)
	}
}

func (r *run) save(name string, v any) {
	if err := saveJSON(filepath.Join(r.dir, name), v); err != nil {
		r.log.Warn("could not save stage output", "file", name, "err", err)
	}
}

func (r *run) topic(ctx context.Context) error {
	sel := topics.New(r.p.cfg, r.p.deps.LLM, r.p.store)
	topic := r.opts.Topic
	if topic != "" {
		if err := sel.Use(ctx, topic); err != nil {
			return err
		}
	} else {
		var err error
		if topic, err = sel.Pick(ctx); err != nil {
			return err
		}
	}
	r.state.Topic = topic
	return r.p.store.SetTopic(ctx, r.state.RunID, topic)
}

func (r *run) script(ctx context.Context) error {
	if r.p.deps.LLM == nil {
		return errors.New("no language model configured")
	}
	s, err := script.New(r.p.cfg, r.p.deps.LLM).Write(ctx, r.state.Topic)
	if err != nil {
		return err
	}
	r.state.Script = &s
	r.save("script.json", s)
	return nil
}

func (r *run) tts(ctx context.Context) error {
	if r.p.deps.Synth == nil {
		return errors.New("no speech synthesizer configured")
	}
	n := audio.NewNarrator(r.p.cfg, r.p.deps.Synth, r.p.deps.Runner, r.p.deps.Prober)
	track, err := n.Narrate(ctx, r.state.Script.Text, filepath.Join(r.dir, "narration.mp3"))
	if err != nil {
		return err
	}
	r.state.Narration = &track
	r.record(ctx, manifest.KindNarration, track.Path)
	return nil
}

func (r *run) plan(context.Context) error {
	segs, err := r.p.plan(r.state.Script.Text, r.state.Narration.DurationSec)
	if err != nil {
		return err
	}
	r.state.Segments = segs
	return nil
}

func (r *run) resolve(ctx context.Context) error {
	assets, err := r.p.resolver(r.work).ResolveAll(ctx, r.state.Segments, r.state.Topic)
	if err != nil {
		return err
	}
	r.assets = assets
	return nil
}

func (r *run) normalize(ctx context.Context) error {
	clips, err := r.p.normalizer(r.work).NormalizeAll(ctx, r.state.Segments, r.assets)
	if err != nil {
		return err
	}
	r.clips = clips
	return nil
}

func (r *run) assemble(ctx context.Context) error {
	tl, err := render.New(r.p.cfg, r.p.deps.Runner, r.p.deps.Prober).
		Assemble(ctx, r.clips, *r.state.Narration, filepath.Join(r.dir, "timeline.mp4"))
	if err != nil {
		return err
	}
	r.state.Timeline = &tl
	r.video = tl.Path
	r.record(ctx, manifest.KindTimeline, tl.Path)
	return nil
}

// subtitles burns captions. A narration with no recognizable speech keeps the
// plain timeline.
func (r *run) subtitles(ctx context.Context) error {
	eng, err := r.p.engine()
	if err != nil {
		return err
	}
	eng.TempRoot = r.work
	res, err := eng.Run(ctx, r.video, filepath.Join(r.dir, "subtitled.mp4"))
	if errors.Is(err, subtitles.ErrNoSpeech) {
		r.log.Warn("no speech recognized, continuing without captions")
		return nil
	}
	if err != nil {
		return err
	}
	r.state.Subtitles = &res
	r.video = res.VideoPath
	r.record(ctx, manifest.KindSubtitled, res.VideoPath)
	if res.SRTPath != "" {
		r.record(ctx, manifest.KindSRT, res.SRTPath)
	}
	return nil
}

func (r *run) post(ctx context.Context) error {
	chain := post.NewChain(r.p.cfg, post.NewProcessor(r.p.cfg, r.p.deps.Runner, r.p.deps.Prober))
	final, err := chain.Run(ctx, r.video, r.work, filepath.Join(r.dir, "final.mp4"))
	if err != nil {
		return err
	}
	r.video = final
	r.state.VideoFile = final
	r.record(ctx, manifest.KindFinal, final)
	return nil
}

func (r *run) metadata(ctx context.Context) error {
	meta, err := metadata.New(r.p.cfg, r.p.deps.LLM).Generate(ctx, r.state.Topic, *r.state.Script)
	if err != nil {
		return err
	}
	r.state.Metadata = &meta
	r.save("metadata.json", meta)
	return nil
}

func (r *run) upload(ctx context.Context) error {
	pub := r.p.deps.Publisher
	switch {
	case r.opts.NoUpload || !r.p.cfg.Upload.Enabled:
		r.log.Info("upload disabled, skipping")
		return nil
	case pub == nil || !pub.Enabled():
		r.log.Warn("no upload destination configured, skipping")
		return nil
	}
	results, err := pub.Publish(ctx, r.video, *r.state.Metadata)
	r.state.Published = results
	for _, res := range results {
		r.log.Info("published", "platform", res.Platform, "id", res.RemoteID, "url", res.URL)
	}
	return err
}

func (p *Pipeline) plan(text string, narrationSec float64) ([]types.Segment, error) {
	segs := planner.Plan(text, narrationSec, p.cfg.Planner.GranularitySec)
	if len(segs) == 0 {
		return nil, fmt.Errorf("no segments planned for %.3fs of narration", narrationSec)
	}
	return segs, nil
}

func (p *Pipeline) resolver(work string) *visuals.Resolver {
	var kw visuals.KeywordSuggester
	if p.deps.LLM != nil {
		kw = visuals.NewLLMKeywords(p.deps.LLM)
	}
	return visuals.NewResolver(p.cfg.Visuals, kw, p.deps.Search, p.deps.Fetch, filepath.Join(work, "visuals"))
}

func (p *Pipeline) normalizer(work string) *normalize.Normalizer {
	return normalize.New(p.cfg, p.deps.Runner, p.deps.Prober, filepath.Join(work, "clips"))
}

func (p *Pipeline) engine() (*subtitles.Engine, error) {
	if p.deps.Transcriber == nil {
		return nil, errors.New("no transcriber configured")
	}
	return subtitles.New(p.cfg, p.deps.Runner, p.deps.Prober, p.deps.Transcriber, p.deps.Icons), nil
}

// Assemble builds a timeline from existing narration text and audio without
// the script, subtitle or publishing stages.
func (p *Pipeline) Assemble(ctx context.Context, text, narrationPath, topic, out string) (types.Timeline, error) {
	info, err := p.deps.Prober.Probe(ctx, narrationPath)
	if err != nil {
		return types.Timeline{}, fmt.Errorf("probe narration: %w", err)
	}
	narration := types.NarrationTrack{Path: narrationPath, DurationSec: info.Duration}
	segs, err := p.plan(text, narration.DurationSec)
	if err != nil {
		return types.Timeline{}, err
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return types.Timeline{}, fmt.Errorf("create output dir: %w", err)
	}
	work, err := os.MkdirTemp(filepath.Dir(out), "assemble-*")
	if err != nil {
		return types.Timeline{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	assets, err := p.resolver(work).ResolveAll(ctx, segs, topic)
	if err != nil {
		return types.Timeline{}, fmt.Errorf("resolve: %w", err)
	}
	clips, err := p.normalizer(work).NormalizeAll(ctx, segs, assets)
	if err != nil {
		return types.Timeline{}, fmt.Errorf("normalize: %w", err)
	}
	return render.New(p.cfg, p.deps.Runner, p.deps.Prober).Assemble(ctx, clips, narration, out)
}

// Subtitle runs only the subtitle engine on an existing video.
func (p *Pipeline) Subtitle(ctx context.Context, video, out string) (types.SubtitleResult, error) {
	eng, err := p.engine()
	if err != nil {
		return types.SubtitleResult{}, err
	}
	return eng.Run(ctx, video, out)
}
