package pipeline

import (
	"context"
	"log/slog"
	"time"

	"shorts-pipeline/audio"
	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/llm"
	"shorts-pipeline/subtitles"
	"shorts-pipeline/types"
	"shorts-pipeline/upload"
	"shorts-pipeline/visuals"
)

// Publisher sends the finished video to its destinations.
type Publisher interface {
	Enabled() bool
	Publish(ctx context.Context, video string, meta types.VideoMetadata) ([]types.PublishResult, error)
}

// Deps are the external services a run talks to. Nil members disable the
// stages that need them; Run reports which one is missing.
type Deps struct {
	Runner      ffmpeg.Runner
	Prober      ffmpeg.Prober
	LLM         llm.Completer
	Synth       audio.Synthesizer
	Search      visuals.StockSearcher
	Fetch       visuals.Fetcher
	Transcriber subtitles.Transcriber
	Icons       subtitles.IconSource
	Publisher   Publisher
}

// DefaultDeps wires the production clients from config and secrets. Missing
// credentials leave the matching dependency nil and log a warning.
func DefaultDeps(ctx context.Context, cfg *config.Config, secrets config.Secrets, withUpload bool) (Deps, error) {
	log := slog.Default().With("component", "pipeline")
	exec := ffmpeg.NewExec()
	deps := Deps{
		Runner: exec,
		Prober: exec,
		Search: visuals.NewPexelsClient(cfg.Visuals, secrets.PexelsKey),
		Fetch:  visuals.NewDownloader(time.Duration(cfg.Visuals.DownloadTimeoutSec) * time.Second),
	}
	if secrets.PexelsKey == "" {
		log.Warn("PEXELS_API_KEY not set, every segment will use a placeholder")
	}

	if secrets.OpenAIKey != "" {
		deps.LLM = llm.New(cfg.LLM, secrets.OpenAIKey)
		deps.Synth = audio.NewOpenAISynthesizer(cfg.TTS, secrets.OpenAIKey, cfg.LLM.BaseURL)
	} else {
		log.Warn("OPENAI_API_KEY not set, script and narration are unavailable")
	}

	tr, err := subtitles.NewTranscriber(cfg.Subtitles, secrets)
	if err != nil {
		return Deps{}, err
	}
	deps.Transcriber = tr

	if cfg.Subtitles.Stickers {
		deps.Icons = subtitles.NewTwemoji(cfg.Subtitles.IconBaseURL, time.Duration(cfg.Subtitles.IconTimeoutSec)*time.Second)
	}

	if withUpload && cfg.Upload.Enabled {
		pub, err := upload.NewPublisher(ctx, cfg, secrets)
		if err != nil {
			return Deps{}, err
		}
		deps.Publisher = pub
	}
	return deps, nil
}
