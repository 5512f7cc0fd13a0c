package subtitles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// Transcriber turns an audio file into ordered recognized spans.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]types.Span, error)
}

// NewTranscriber picks the configured speech-to-text engine.
func NewTranscriber(cfg config.SubtitlesConfig, secrets config.Secrets) (Transcriber, error) {
	switch strings.ToLower(cfg.Engine) {
	case "whisper":
		return &WhisperCLI{Binary: cfg.WhisperBinary, Model: cfg.WhisperModel, Language: cfg.Language}, nil
	case "openai":
		if secrets.OpenAIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set for openai transcription")
		}
		return NewOpenAITranscriber(secrets.OpenAIKey, cfg.Language), nil
	default:
		return nil, fmt.Errorf("unknown transcription engine %q", cfg.Engine)
	}
}

// WhisperCLI runs the openai-whisper command line tool.
type WhisperCLI struct {
	Binary   string
	Model    string
	Language string
}

func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string) ([]types.Span, error) {
	outDir := filepath.Dir(audioPath)
	binary := w.Binary
	if binary == "" {
		binary = "whisper"
	}
	args := []string{
		audioPath,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False",
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whisper failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return ParseSegments(data)
}

// OpenAITranscriber uses the hosted transcription endpoint.
type OpenAITranscriber struct {
	api      openai.Client
	language string
}

// NewOpenAITranscriber creates a transcriber for the given API key.
func NewOpenAITranscriber(apiKey, language string) *OpenAITranscriber {
	return &OpenAITranscriber{
		api:      openai.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(2)),
		language: language,
	}
}

func (o *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) ([]types.Span, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   f,
		Model:                  openai.AudioModelWhisper1,
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}
	resp, err := o.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	return ParseSegments([]byte(resp.RawJSON()))
}

// ParseSegments reads whisper-style JSON: a "segments" array of
// {start, end, text}. A payload with only "text" and "duration" becomes a
// single span. Silence yields no spans and no error.
func ParseSegments(data []byte) ([]types.Span, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("transcript is not valid JSON")
	}
	root := gjson.ParseBytes(data)

	var spans []types.Span
	root.Get("segments").ForEach(func(_, seg gjson.Result) bool {
		text := strings.TrimSpace(seg.Get("text").String())
		if text == "" {
			return true
		}
		start := seg.Get("start").Float()
		end := seg.Get("end").Float()
		if end < start {
			end = start
		}
		spans = append(spans, types.Span{Start: start, End: end, Text: text})
		return true
	})

	if len(spans) == 0 {
		text := strings.TrimSpace(root.Get("text").String())
		dur := root.Get("duration").Float()
		if text != "" && dur > 0 {
			spans = append(spans, types.Span{Start: 0, End: dur, Text: text})
		}
	}
	return spans, nil
}
