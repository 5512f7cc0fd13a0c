// Package post applies optional finishing steps to a subtitled video:
// background music and a still outro card.
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
)

// ErrPostMismatch is returned when a post-processed file has the wrong length.
var ErrPostMismatch = errors.New("post-processed duration mismatch")

// Processor runs single post-processing passes.
type Processor struct {
	runner ffmpeg.Runner
	prober ffmpeg.Prober
	enc    ffmpeg.Encoding
	video  config.VideoConfig
	log    *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(cfg *config.Config, runner ffmpeg.Runner, prober ffmpeg.Prober) *Processor {
	return &Processor{
		runner: runner,
		prober: prober,
		enc:    ffmpeg.Encoding{Codec: cfg.Video.Codec, Preset: cfg.Video.Preset, CRF: cfg.Video.CRF},
		video:  cfg.Video,
		log:    slog.Default().With("component", "post"),
	}
}

// AddMusic mixes a looped, volume-scaled music bed under the video's audio.
// A video without audio gets the music alone. The video stream is copied and
// the output keeps the input's length.
func (p *Processor) AddMusic(ctx context.Context, video, music string, volume float64, out string) error {
	if _, err := os.Stat(music); err != nil {
		return fmt.Errorf("music track: %w", err)
	}
	src, err := p.prober.Probe(ctx, video)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}

	length := ffmpeg.Seconds(src.Duration)
	bed := fmt.Sprintf("[1:a]atrim=duration=%s,asetpts=PTS-STARTPTS,volume=%s", length, strconv.FormatFloat(volume, 'f', -1, 64))
	var graph string
	if src.HasAudio() {
		graph = bed + "[m];[0:a][m]amix=inputs=2:duration=first:normalize=0[aout]"
	} else {
		p.log.Debug("video has no audio, music only", "file", filepath.Base(video))
		graph = bed + "[aout]"
	}

	args := []string{
		"-i", video,
		"-stream_loop", "-1", "-i", music,
		"-filter_complex", graph,
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
		"-t", length,
		out,
	}
	if err := p.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg music mix: %w", err)
	}
	return p.verify(ctx, out, src.Duration)
}

// AppendOutro concatenates a hold-second clip of still after the video. The
// still is letterboxed to the frame and carries stereo 44.1 kHz silence.
func (p *Processor) AppendOutro(ctx context.Context, video, still string, hold float64, out string) error {
	if hold <= 0 {
		return fmt.Errorf("outro hold must be positive, got %v", hold)
	}
	if _, err := os.Stat(still); err != nil {
		return fmt.Errorf("outro image: %w", err)
	}
	src, err := p.prober.Probe(ctx, video)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}

	w, h := p.video.Width, p.video.Height
	rate := ffmpeg.FormatRate(p.video.FPS)
	holdArg := ffmpeg.Seconds(hold)

	args := []string{
		"-i", video,
		"-loop", "1", "-framerate", rate, "-t", holdArg, "-i", still,
		"-f", "lavfi", "-t", holdArg, "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
	}
	mainAudio := "[0:a]"
	if !src.HasAudio() {
		args = append(args, "-f", "lavfi", "-t", ffmpeg.Seconds(src.Duration), "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
		mainAudio = "[3:a]"
	}

	graph := fmt.Sprintf(
		"[0:v]scale=%[1]d:%[2]d,setsar=1,fps=%[3]s,format=yuv420p[v0];"+
			"[1:v]scale=%[1]d:%[2]d:force_original_aspect_ratio=decrease,pad=%[1]d:%[2]d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%[3]s,format=yuv420p[v1];"+
			"%[4]saresample=44100,aformat=channel_layouts=stereo[a0];"+
			"[v0][a0][v1][2:a]concat=n=2:v=1:a=1[v][a]",
		w, h, rate, mainAudio,
	)
	total := src.Duration + hold
	args = append(args, "-filter_complex", graph, "-map", "[v]", "-map", "[a]")
	args = append(args, p.enc.VideoArgs()...)
	args = append(args,
		"-c:a", "aac", "-b:a", "192k",
		"-r", rate,
		"-t", ffmpeg.Seconds(total),
		out,
	)
	if err := p.runner.Run(ctx, args...); err != nil {
		return fmt.Errorf("ffmpeg outro concat: %w", err)
	}
	return p.verify(ctx, out, total)
}

func (p *Processor) verify(ctx context.Context, out string, want float64) error {
	info, err := p.prober.Probe(ctx, out)
	if err != nil {
		return fmt.Errorf("probe %s: %w", filepath.Base(out), err)
	}
	if math.Abs(info.Duration-want) > math.Max(1e-3, 1/p.video.FPS) {
		return fmt.Errorf("%w: %s is %.3fs, want %.3fs", ErrPostMismatch, filepath.Base(out), info.Duration, want)
	}
	if !info.HasAudio() {
		return fmt.Errorf("%w: %s has no audio", ErrPostMismatch, filepath.Base(out))
	}
	return nil
}
