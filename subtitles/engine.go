// Package subtitles transcribes a finished video's speech and burns short
// timed captions, plus optional keyword stickers, back into it.
package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/types"
)

// State is one step of a subtitle run.
type State string

const (
	StateExtractAudio State = "EXTRACT_AUDIO"
	StateTranscribe   State = "TRANSCRIBE"
	StateChunk        State = "CHUNK"
	StateSyncRender   State = "SYNC_RENDER"
	StateExport       State = "EXPORT"
	StateCleanup      State = "CLEANUP"
)

// ErrNoSpeech is returned when transcription yields no caption text.
var ErrNoSpeech = errors.New("no speech recognized")

// Engine runs the subtitle state machine.
type Engine struct {
	runner      ffmpeg.Runner
	prober      ffmpeg.Prober
	transcriber Transcriber
	icons       IconSource
	cfg         config.SubtitlesConfig
	enc         ffmpeg.Encoding
	log         *slog.Logger

	// TempRoot is where the per-run scratch directory is created. Empty
	// means the system temp dir.
	TempRoot string

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an Engine. icons may be nil to disable stickers.
func New(cfg *config.Config, runner ffmpeg.Runner, prober ffmpeg.Prober, tr Transcriber, icons IconSource) *Engine {
	return &Engine{
		runner:      runner,
		prober:      prober,
		transcriber: tr,
		icons:       icons,
		cfg:         cfg.Subtitles,
		enc:         ffmpeg.Encoding{Codec: cfg.Video.Codec, Preset: cfg.Video.Preset, CRF: cfg.Video.CRF},
		log:         slog.Default().With("component", "subtitles"),
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5b7)),
	}
}

// WithRand replaces the sticker placement source.
func (e *Engine) WithRand(rng *rand.Rand) *Engine {
	e.mu.Lock()
	e.rng = rng
	e.mu.Unlock()
	return e
}

func (e *Engine) enter(s State, attrs ...any) {
	e.log.Info("subtitle state", append([]any{"state", string(s)}, attrs...)...)
}

// Run burns captions into video and writes the result to out. Intermediate
// files live in a scratch directory that is removed on every exit path.
func (e *Engine) Run(ctx context.Context, video, out string) (types.SubtitleResult, error) {
	src, err := e.prober.Probe(ctx, video)
	if err != nil {
		return types.SubtitleResult{}, fmt.Errorf("probe input: %w", err)
	}
	if !src.HasAudio() {
		return types.SubtitleResult{}, fmt.Errorf("%s has no audio to transcribe", filepath.Base(video))
	}

	scratch, err := os.MkdirTemp(e.TempRoot, "subtitles-*")
	if err != nil {
		return types.SubtitleResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		e.enter(StateCleanup)
		if err := os.RemoveAll(scratch); err != nil {
			e.log.Warn("scratch cleanup failed", "dir", scratch, "err", err)
		}
	}()

	e.enter(StateExtractAudio)
	wav := filepath.Join(scratch, "audio.wav")
	if err := e.runner.Run(ctx, "-i", video, "-vn", "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le", wav); err != nil {
		return types.SubtitleResult{}, fmt.Errorf("extract audio: %w", err)
	}

	e.enter(StateTranscribe, "engine", e.cfg.Engine)
	spans, err := e.transcriber.Transcribe(ctx, wav)
	if err != nil {
		return types.SubtitleResult{}, fmt.Errorf("transcribe: %w", err)
	}

	e.enter(StateChunk, "spans", len(spans))
	chunks := Chunk(spans, e.cfg.WordsPerChunk)
	if len(chunks) == 0 {
		return types.SubtitleResult{}, ErrNoSpeech
	}

	e.enter(StateSyncRender, "chunks", len(chunks))
	srt := filepath.Join(scratch, "captions.srt")
	if err := WriteSRT(srt, chunks); err != nil {
		return types.SubtitleResult{}, fmt.Errorf("write srt: %w", err)
	}
	if err := ValidateSRT(srt); err != nil {
		return types.SubtitleResult{}, err
	}
	style, err := ForceStyle(e.cfg)
	if err != nil {
		return types.SubtitleResult{}, err
	}
	cues := e.stickers(ctx, chunks, src, scratch)

	e.enter(StateExport, "stickers", len(cues))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return types.SubtitleResult{}, err
	}
	if err := e.runner.Run(ctx, exportArgs(video, srt, style, cues, src, e.enc, out)...); err != nil {
		return types.SubtitleResult{}, fmt.Errorf("burn subtitles: %w", err)
	}

	result := types.SubtitleResult{VideoPath: out, Chunks: chunks, Stickers: cues}
	if e.cfg.KeepSRT {
		kept := strings.TrimSuffix(out, filepath.Ext(out)) + ".srt"
		if err := copyFile(srt, kept); err != nil {
			e.log.Warn("could not keep srt", "err", err)
		} else {
			result.SRTPath = kept
		}
	}
	return result, nil
}

// stickers matches keyword cues and fetches their icons. Icon failures drop
// the cue and never fail the run.
func (e *Engine) stickers(ctx context.Context, chunks []types.CaptionChunk, src ffmpeg.MediaInfo, scratch string) []types.StickerCue {
	if !e.cfg.Stickers || e.icons == nil || len(e.cfg.KeywordIcons) == 0 {
		return nil
	}
	layout := StickerLayout{
		Width:   src.Width,
		Height:  src.Height,
		MaxSec:  e.cfg.StickerMaxSec,
		Scale:   e.cfg.StickerScale,
		Keyword: e.cfg.KeywordIcons,
	}
	e.mu.Lock()
	matched := MatchStickers(chunks, layout, e.rng)
	e.mu.Unlock()

	fetched := make(map[string]string)
	var cues []types.StickerCue
	for _, cue := range matched {
		path, ok := fetched[cue.Asset]
		if !ok {
			data, err := e.icons.Fetch(ctx, cue.Asset)
			if err != nil {
				e.log.Warn("sticker icon unavailable", "keyword", cue.Keyword, "code", cue.Asset, "err", err)
				fetched[cue.Asset] = ""
				continue
			}
			path = filepath.Join(scratch, "icon_"+cue.Asset+".png")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				e.log.Warn("could not save sticker icon", "code", cue.Asset, "err", err)
				fetched[cue.Asset] = ""
				continue
			}
			fetched[cue.Asset] = path
		}
		if path == "" {
			continue
		}
		cue.Asset = path
		cues = append(cues, cue)
	}
	return cues
}

func exportArgs(video, srt, style string, cues []types.StickerCue, src ffmpeg.MediaInfo, enc ffmpeg.Encoding, out string) []string {
	args := []string{"-i", video}
	for _, cue := range cues {
		args = append(args, "-loop", "1", "-t", ffmpeg.Seconds(cue.Start+cue.Duration), "-i", cue.Asset)
	}

	graph := []string{"[0:v]" + SubtitleFilter(srt, style) + "[sub]"}
	parts, last := stickerGraph(cues, "sub", 1)
	graph = append(graph, parts...)
	graph = append(graph, fmt.Sprintf("[%s]null[v]", last))

	args = append(args,
		"-filter_complex", strings.Join(graph, ";"),
		"-map", "[v]", "-map", "0:a?",
	)
	args = append(args, enc.VideoArgs()...)
	return append(args,
		"-c:a", "copy",
		"-r", ffmpeg.FormatRate(src.FPS),
		"-t", ffmpeg.Seconds(src.Duration),
		out,
	)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
