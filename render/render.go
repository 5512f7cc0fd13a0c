// Package render concatenates normalized clips into a single timeline bound to
// the narration track.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/types"
)

var (
	// ErrNoClips is returned when there is nothing to assemble.
	ErrNoClips = errors.New("no clips to assemble")
	// ErrNoAudio is returned when the narration has no duration.
	ErrNoAudio = errors.New("narration has no duration")
	// ErrDurationMismatch is returned when the assembled video does not match the narration.
	ErrDurationMismatch = errors.New("timeline duration does not match narration")
)

// Assembler builds the timeline video.
type Assembler struct {
	runner ffmpeg.Runner
	prober ffmpeg.Prober
	enc    ffmpeg.Encoding
	video  config.VideoConfig
	log    *slog.Logger
}

// New creates a new Assembler
func New(cfg *config.Config, runner ffmpeg.Runner, prober ffmpeg.Prober) *Assembler {
	return &Assembler{
		runner: runner,
		prober: prober,
		enc:    ffmpeg.Encoding{Codec: cfg.Video.Codec, Preset: cfg.Video.Preset, CRF: cfg.Video.CRF},
		video:  cfg.Video,
		log:    slog.Default().With("component", "render"),
	}
}

// FitDurations returns per-clip durations summing exactly to total. Only the
// last clip changes: it is trimmed when the clips run long and held when they
// run short.
func FitDurations(durations []float64, total float64) ([]float64, error) {
	if len(durations) == 0 {
		return nil, ErrNoClips
	}
	fitted := append([]float64(nil), durations...)
	var head float64
	for _, d := range fitted[:len(fitted)-1] {
		head += d
	}
	last := total - head
	if last <= 0 {
		return nil, fmt.Errorf("%w: clips before the last already run %.3fs of %.3fs", ErrDurationMismatch, head, total)
	}
	fitted[len(fitted)-1] = last
	return fitted, nil
}

// Assemble concatenates clips in order, binds the narration as the only audio
// track and cuts the result to the narration's exact duration.
func (a *Assembler) Assemble(ctx context.Context, clips []types.NormalizedClip, narration types.NarrationTrack, out string) (types.Timeline, error) {
	if len(clips) == 0 {
		return types.Timeline{}, ErrNoClips
	}
	if narration.DurationSec <= 0 {
		return types.Timeline{}, ErrNoAudio
	}

	durations := make([]float64, len(clips))
	for i, c := range clips {
		durations[i] = c.Duration
	}
	fitted, err := FitDurations(durations, narration.DurationSec)
	if err != nil {
		return types.Timeline{}, err
	}
	drift := fitted[len(fitted)-1] - durations[len(durations)-1]
	a.log.Info("assembling timeline", "clips", len(clips), "narration_sec", narration.DurationSec, "last_clip_drift_sec", drift)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return types.Timeline{}, fmt.Errorf("create output dir: %w", err)
	}

	args := a.args(clips, fitted, narration, out)
	if err := a.runner.Run(ctx, args...); err != nil {
		return types.Timeline{}, fmt.Errorf("ffmpeg concat: %w", err)
	}

	info, err := a.prober.Probe(ctx, out)
	if err != nil {
		return types.Timeline{}, fmt.Errorf("probe timeline: %w", err)
	}
	if math.Abs(info.Duration-narration.DurationSec) > a.frameTolerance() {
		return types.Timeline{}, fmt.Errorf("%w: video %.3fs, narration %.3fs", ErrDurationMismatch, info.Duration, narration.DurationSec)
	}
	if !info.HasAudio() {
		return types.Timeline{}, fmt.Errorf("%w: no audio stream in output", ErrDurationMismatch)
	}

	bound := make([]types.NormalizedClip, len(clips))
	copy(bound, clips)
	bound[len(bound)-1].Duration = fitted[len(fitted)-1]

	a.log.Info("timeline ready", "file", out, "duration_sec", info.Duration)
	return types.Timeline{Path: out, DurationSec: narration.DurationSec, Clips: bound}, nil
}

func (a *Assembler) frameTolerance() float64 {
	return math.Max(1e-3, 1/a.video.FPS)
}

func (a *Assembler) args(clips []types.NormalizedClip, fitted []float64, narration types.NarrationTrack, out string) []string {
	var args []string
	for _, c := range clips {
		args = append(args, "-i", c.Path)
	}
	args = append(args, "-i", narration.Path)

	rate := ffmpeg.FormatRate(a.video.FPS)
	var graph strings.Builder
	for i, c := range clips {
		fmt.Fprintf(&graph, "[%d:v]scale=%d:%d,setsar=1,fps=%s", i, a.video.Width, a.video.Height, rate)
		if pad := fitted[i] - c.Duration; pad > 0 {
			fmt.Fprintf(&graph, ",tpad=stop_mode=clone:stop_duration=%s", ffmpeg.Seconds(pad))
		}
		fmt.Fprintf(&graph, ",trim=duration=%s,setpts=PTS-STARTPTS[v%d];", ffmpeg.Seconds(fitted[i]), i)
	}
	for i := range clips {
		fmt.Fprintf(&graph, "[v%d]", i)
	}
	fmt.Fprintf(&graph, "concat=n=%d:v=1:a=0[v]", len(clips))

	args = append(args,
		"-filter_complex", graph.String(),
		"-map", "[v]",
		"-map", strconv.Itoa(len(clips))+":a",
		"-t", ffmpeg.Seconds(narration.DurationSec),
		"-r", rate,
	)
	args = append(args, a.enc.VideoArgs()...)
	args = append(args, "-c:a", "aac", "-b:a", "192k", "-movflags", "+faststart")
	return append(args, out)
}
