// Package normalize coerces arbitrary clips to the timeline's resolution,
// frame rate and per-segment duration.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/types"
)

// ErrNormalizeMismatch is returned when an encoded clip does not match its target.
var ErrNormalizeMismatch = errors.New("normalized clip does not match target")

// Normalizer fits visual assets to segment targets.
type Normalizer struct {
	runner  ffmpeg.Runner
	prober  ffmpeg.Prober
	enc     ffmpeg.Encoding
	video   config.VideoConfig
	epsilon float64
	dir     string
	log     *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Normalizer writing clips into dir.
func New(cfg *config.Config, runner ffmpeg.Runner, prober ffmpeg.Prober, dir string) *Normalizer {
	return &Normalizer{
		runner:  runner,
		prober:  prober,
		enc:     ffmpeg.Encoding{Codec: cfg.Video.Codec, Preset: cfg.Video.Preset, CRF: cfg.Video.CRF},
		video:   cfg.Video,
		epsilon: cfg.Video.Epsilon,
		dir:     dir,
		log:     slog.Default().With("component", "normalize"),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xc11b)),
	}
}

// WithRand replaces the window-offset source.
func (n *Normalizer) WithRand(rng *rand.Rand) *Normalizer {
	n.mu.Lock()
	n.rng = rng
	n.mu.Unlock()
	return n
}

// Target returns the configured shape for a clip of the given duration.
func (n *Normalizer) Target(duration float64) Target {
	return Target{Duration: duration, Width: n.video.Width, Height: n.video.Height, FPS: n.video.FPS}
}

// Normalize fits assetPath to t. An empty or unreadable asset, or a failed
// encode, yields a placeholder clip instead; only a placeholder failure is an
// error.
func (n *Normalizer) Normalize(ctx context.Context, assetPath string, index int, t Target) (types.NormalizedClip, error) {
	if err := os.MkdirAll(n.dir, 0o755); err != nil {
		return types.NormalizedClip{}, fmt.Errorf("create clip dir: %w", err)
	}
	if assetPath == "" {
		return n.placeholder(ctx, index, t)
	}

	src, err := n.prober.Probe(ctx, assetPath)
	if err != nil || !src.HasVideo() {
		if ctx.Err() != nil {
			return types.NormalizedClip{}, ctx.Err()
		}
		n.log.Warn("unreadable visual, using placeholder", "segment", index, "file", filepath.Base(assetPath), "err", err)
		return n.placeholder(ctx, index, t)
	}

	n.mu.Lock()
	plan := PlanClip(src.Duration, t.Duration, n.epsilon, n.rng)
	n.mu.Unlock()

	out := filepath.Join(n.dir, fmt.Sprintf("clip_%03d.mp4", index))
	n.log.Debug("normalizing clip", "segment", index, "mode", plan.Mode.String(), "source_sec", src.Duration, "target_sec", t.Duration)
	if err := n.runner.Run(ctx, Args(assetPath, plan, t, n.enc, out)...); err != nil {
		if ctx.Err() != nil {
			return types.NormalizedClip{}, ctx.Err()
		}
		n.log.Warn("clip encode failed, using placeholder", "segment", index, "err", err)
		return n.placeholder(ctx, index, t)
	}

	clip, err := n.verify(ctx, out, index, t)
	if err != nil {
		if ctx.Err() != nil {
			return types.NormalizedClip{}, ctx.Err()
		}
		n.log.Warn("clip verification failed, using placeholder", "segment", index, "err", err)
		return n.placeholder(ctx, index, t)
	}
	return clip, nil
}

// NormalizeAll normalizes one clip per segment, in order. assets is aligned
// with segments; an empty entry becomes a placeholder.
func (n *Normalizer) NormalizeAll(ctx context.Context, segments []types.Segment, assets []string) ([]types.NormalizedClip, error) {
	clips := make([]types.NormalizedClip, 0, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		asset := ""
		if i < len(assets) {
			asset = assets[i]
		}
		clip, err := n.Normalize(ctx, asset, seg.Index, n.Target(seg.TargetDuration))
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		clips = append(clips, clip)
	}
	placeholders := 0
	for _, c := range clips {
		if c.Placeholder {
			placeholders++
		}
	}
	n.log.Info("clips normalized", "clips", len(clips), "placeholders", placeholders)
	return clips, nil
}

func (n *Normalizer) placeholder(ctx context.Context, index int, t Target) (types.NormalizedClip, error) {
	out := filepath.Join(n.dir, fmt.Sprintf("placeholder_%03d.mp4", index))
	if err := n.runner.Run(ctx, PlaceholderArgs(t, n.enc, out)...); err != nil {
		return types.NormalizedClip{}, fmt.Errorf("placeholder clip: %w", err)
	}
	clip, err := n.verify(ctx, out, index, t)
	if err != nil {
		return types.NormalizedClip{}, err
	}
	clip.Placeholder = true
	return clip, nil
}

// verify probes an encoded clip. Duration may differ from the target by at
// most one frame since encoders quantize to whole frames.
func (n *Normalizer) verify(ctx context.Context, path string, index int, t Target) (types.NormalizedClip, error) {
	info, err := n.prober.Probe(ctx, path)
	if err != nil {
		return types.NormalizedClip{}, fmt.Errorf("probe %s: %w", filepath.Base(path), err)
	}
	tolerance := math.Max(1e-3, 1/t.FPS)
	switch {
	case info.Width != t.Width || info.Height != t.Height:
		return types.NormalizedClip{}, fmt.Errorf("%w: resolution %dx%d, want %dx%d", ErrNormalizeMismatch, info.Width, info.Height, t.Width, t.Height)
	case math.Abs(info.FPS-t.FPS) > 0.01:
		return types.NormalizedClip{}, fmt.Errorf("%w: fps %.3f, want %.3f", ErrNormalizeMismatch, info.FPS, t.FPS)
	case math.Abs(info.Duration-t.Duration) > tolerance:
		return types.NormalizedClip{}, fmt.Errorf("%w: duration %.3f, want %.3f", ErrNormalizeMismatch, info.Duration, t.Duration)
	}
	return types.NormalizedClip{
		Index:    index,
		Path:     path,
		Duration: t.Duration,
		Width:    t.Width,
		Height:   t.Height,
		FPS:      t.FPS,
	}, nil
}
