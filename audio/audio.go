// Package audio synthesizes narration and encodes it to a probed MP3 track.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/types"
)

// ErrEmptyAudio is returned when synthesis yields no samples.
var ErrEmptyAudio = errors.New("synthesizer returned no audio")

// Synthesizer turns text into raw PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (types.PCM, error)
}

// OpenAISynthesizer requests raw PCM from the speech endpoint.
type OpenAISynthesizer struct {
	api openai.Client
	cfg config.TTSConfig
}

// NewOpenAISynthesizer creates a synthesizer. baseURL may be empty.
func NewOpenAISynthesizer(cfg config.TTSConfig, apiKey, baseURL string) *OpenAISynthesizer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(2)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAISynthesizer{api: openai.NewClient(opts...), cfg: cfg}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text, voice string) (types.PCM, error) {
	if voice == "" {
		voice = s.cfg.Voice
	}
	resp, err := s.api.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.cfg.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return types.PCM{}, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.PCM{}, fmt.Errorf("read speech body: %w", err)
	}
	if len(data) == 0 {
		return types.PCM{}, ErrEmptyAudio
	}
	return types.PCM{
		Data:       data,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		BitDepth:   s.cfg.BitDepth,
	}, nil
}

// Narrator synthesizes and encodes the narration track.
type Narrator struct {
	synth  Synthesizer
	runner ffmpeg.Runner
	prober ffmpeg.Prober
	voice  string
	log    *slog.Logger

	attempts int
	backoff  time.Duration
}

// NewNarrator creates a Narrator.
func NewNarrator(cfg *config.Config, synth Synthesizer, runner ffmpeg.Runner, prober ffmpeg.Prober) *Narrator {
	return &Narrator{
		synth:    synth,
		runner:   runner,
		prober:   prober,
		voice:    cfg.TTS.Voice,
		log:      slog.Default().With("component", "audio"),
		attempts: 3,
		backoff:  2 * time.Second,
	}
}

// Narrate synthesizes text and writes an MP3 to out.
func (n *Narrator) Narrate(ctx context.Context, text, out string) (types.NarrationTrack, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.NarrationTrack{}, errors.New("nothing to narrate")
	}
	n.log.Info("synthesizing narration", "chars", len(text), "voice", n.voice)

	var pcm types.PCM
	var err error
	for attempt := 1; attempt <= n.attempts; attempt++ {
		pcm, err = n.synth.Synthesize(ctx, text, n.voice)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return types.NarrationTrack{}, ctx.Err()
		}
		if attempt == n.attempts {
			return types.NarrationTrack{}, fmt.Errorf("tts failed after %d attempts: %w", n.attempts, err)
		}
		n.log.Warn("tts attempt failed, retrying", "attempt", attempt, "err", err)
		timer := time.NewTimer(time.Duration(attempt) * n.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return types.NarrationTrack{}, ctx.Err()
		case <-timer.C:
		}
	}
	return n.Encode(ctx, pcm, out)
}

// Encode converts pcm to MP3 using only its declared format and probes the
// result for the track duration.
func (n *Narrator) Encode(ctx context.Context, pcm types.PCM, out string) (types.NarrationTrack, error) {
	if len(pcm.Data) == 0 {
		return types.NarrationTrack{}, ErrEmptyAudio
	}
	format, err := sampleFormat(pcm.BitDepth)
	if err != nil {
		return types.NarrationTrack{}, err
	}
	if pcm.SampleRate <= 0 || pcm.Channels <= 0 {
		return types.NarrationTrack{}, fmt.Errorf("invalid pcm format: %d Hz, %d channels", pcm.SampleRate, pcm.Channels)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return types.NarrationTrack{}, err
	}

	raw := strings.TrimSuffix(out, filepath.Ext(out)) + ".pcm"
	if err := os.WriteFile(raw, pcm.Data, 0o644); err != nil {
		return types.NarrationTrack{}, fmt.Errorf("write pcm: %w", err)
	}
	defer os.Remove(raw)

	args := []string{
		"-f", format,
		"-ar", strconv.Itoa(pcm.SampleRate),
		"-ac", strconv.Itoa(pcm.Channels),
		"-i", raw,
		"-vn",
		"-c:a", "libmp3lame", "-q:a", "2",
		out,
	}
	if err := n.runner.Run(ctx, args...); err != nil {
		return types.NarrationTrack{}, fmt.Errorf("encode narration: %w", err)
	}

	info, err := n.prober.Probe(ctx, out)
	if err != nil {
		return types.NarrationTrack{}, fmt.Errorf("probe narration: %w", err)
	}
	if info.Duration <= 0 {
		return types.NarrationTrack{}, fmt.Errorf("narration %s has no duration", filepath.Base(out))
	}
	if declared := pcm.Duration(); declared > 0 && math.Abs(info.Duration-declared) > 0.1 {
		n.log.Warn("encoded narration length differs from pcm", "declared_sec", declared, "probed_sec", info.Duration)
	}
	n.log.Info("narration ready", "file", out, "duration_sec", info.Duration)
	return types.NarrationTrack{Path: out, DurationSec: info.Duration}, nil
}

func sampleFormat(bits int) (string, error) {
	switch bits {
	case 16:
		return "s16le", nil
	case 24:
		return "s24le", nil
	case 32:
		return "s32le", nil
	}
	return "", fmt.Errorf("unsupported pcm bit depth %d", bits)
}
