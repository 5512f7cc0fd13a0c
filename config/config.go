package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Video     VideoConfig     `yaml:"video"`
	Planner   PlannerConfig   `yaml:"planner"`
	Visuals   VisualsConfig   `yaml:"visuals"`
	Subtitles SubtitlesConfig `yaml:"subtitles"`
	Music     MusicConfig     `yaml:"music"`
	Outro     OutroConfig     `yaml:"outro"`
	LLM       LLMConfig       `yaml:"llm"`
	TTS       TTSConfig       `yaml:"tts"`
	Script    ScriptConfig    `yaml:"script"`
	Topics    TopicsConfig    `yaml:"topics"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	Upload    UploadConfig    `yaml:"upload"`
	Paths     PathsConfig     `yaml:"paths"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type VideoConfig struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	FPS     float64 `yaml:"fps"`
	Codec   string  `yaml:"codec"`
	Preset  string  `yaml:"preset"`
	CRF     int     `yaml:"crf"`
	Epsilon float64 `yaml:"epsilon"`
}

type PlannerConfig struct {
	GranularitySec float64 `yaml:"granularity_sec"`
}

type VisualsConfig struct {
	KeywordsPerSegment int     `yaml:"keywords_per_segment"`
	Orientation        string  `yaml:"orientation"`
	PerPage            int     `yaml:"per_page"`
	MaxPages           int     `yaml:"max_pages"`
	SearchTimeoutSec   int     `yaml:"search_timeout_sec"`
	DownloadTimeoutSec int     `yaml:"download_timeout_sec"`
	MaxConcurrent      int     `yaml:"max_concurrent"`
	RequestsPerMinute  float64 `yaml:"requests_per_minute"`
	PexelsBaseURL      string  `yaml:"pexels_base_url"`
}

type SubtitlesConfig struct {
	Engine          string            `yaml:"engine"` // whisper | openai
	WhisperBinary   string            `yaml:"whisper_binary"`
	WhisperModel    string            `yaml:"whisper_model"`
	Language        string            `yaml:"language"`
	WordsPerChunk   int               `yaml:"words_per_chunk"`
	Font            string            `yaml:"font"`
	FontScale       float64           `yaml:"font_scale"`
	StrokeScale     float64           `yaml:"stroke_scale"`
	WidthScale      float64           `yaml:"width_scale"`
	Color           string            `yaml:"color"`
	StrokeColor     string            `yaml:"stroke_color"`
	Stickers        bool              `yaml:"stickers"`
	StickerMaxSec   float64           `yaml:"sticker_max_sec"`
	StickerScale    float64           `yaml:"sticker_scale"`
	IconBaseURL     string            `yaml:"icon_base_url"`
	IconTimeoutSec  int               `yaml:"icon_timeout_sec"`
	KeywordIcons    map[string]string `yaml:"keyword_icons"`
	KeepSRT         bool              `yaml:"keep_srt"`
}

type MusicConfig struct {
	Enabled bool    `yaml:"enabled"`
	Path    string  `yaml:"path"`
	Volume  float64 `yaml:"volume"`
}

type OutroConfig struct {
	Enabled bool    `yaml:"enabled"`
	Image   string  `yaml:"image"`
	HoldSec float64 `yaml:"hold_sec"`
}

type LLMConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

type TTSConfig struct {
	Model      string `yaml:"model"`
	Voice      string `yaml:"voice"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	BitDepth   int    `yaml:"bit_depth"`
}

type ScriptConfig struct {
	Sentences int `yaml:"sentences"`
}

type TopicsConfig struct {
	MaxRepeats int      `yaml:"max_repeats"`
	Examples   []string `yaml:"examples"`
}

type MetadataConfig struct {
	TitleMaxChars     int    `yaml:"title_max_chars"`
	TagsCount         int    `yaml:"tags_count"`
	YouTubeCategoryID string `yaml:"youtube_category_id"`
}

type UploadConfig struct {
	Enabled         bool    `yaml:"enabled"`
	YouTube         bool    `yaml:"youtube"`
	Instagram       bool    `yaml:"instagram"`
	Visibility      string  `yaml:"visibility"`
	MadeForKids     bool    `yaml:"made_for_kids"`
	DefaultLanguage string  `yaml:"default_language"`
	DriveFolderID   string  `yaml:"drive_folder_id"`
	GraphBaseURL    string  `yaml:"graph_base_url"`
	PollInitialSec  float64 `yaml:"poll_initial_sec"`
	PollMaxSec      float64 `yaml:"poll_max_sec"`
	PollAttempts    int     `yaml:"poll_attempts"`
}

type PathsConfig struct {
	Output   string `yaml:"output"`
	Env      string `yaml:"env"`
	KeepWork bool   `yaml:"keep_work"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto | text | json
}

// Default returns a Config populated with every default value
func Default() *Config {
	return &Config{
		Video: VideoConfig{
			Width:   1080,
			Height:  1920,
			FPS:     24,
			Codec:   "libx264",
			Preset:  "fast",
			CRF:     23,
			Epsilon: 0.05,
		},
		Planner: PlannerConfig{GranularitySec: 3},
		Visuals: VisualsConfig{
			KeywordsPerSegment: 3,
			Orientation:        "portrait",
			PerPage:            6,
			MaxPages:           1,
			SearchTimeoutSec:   20,
			DownloadTimeoutSec: 60,
			MaxConcurrent:      4,
			RequestsPerMinute:  120,
			PexelsBaseURL:      "https://api.pexels.com",
		},
		Subtitles: SubtitlesConfig{
			Engine:         "whisper",
			WhisperBinary:  "whisper",
			WhisperModel:   "base",
			Language:       "en",
			WordsPerChunk:  3,
			Font:           "Arial",
			FontScale:      0.085,
			StrokeScale:    0.006,
			WidthScale:     0.88,
			Color:          "yellow",
			StrokeColor:    "black",
			Stickers:       true,
			StickerMaxSec:  1.5,
			StickerScale:   0.22,
			IconBaseURL:    "https://twemoji.maxcdn.com/v/latest/72x72",
			IconTimeoutSec: 10,
			KeywordIcons: map[string]string{
				"egg":    "1f95a",
				"banana": "1f34c",
				"fire":   "1f525",
				"money":  "1f4b0",
				"love":   "2764",
				"laugh":  "1f602",
				"happy":  "1f600",
				"sad":    "1f622",
			},
		},
		Music: MusicConfig{Volume: 0.15},
		Outro: OutroConfig{HoldSec: 2},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.8,
			TimeoutSec:  60,
		},
		TTS: TTSConfig{
			Model:      "tts-1",
			Voice:      "alloy",
			SampleRate: 24000,
			Channels:   1,
			BitDepth:   16,
		},
		Script: ScriptConfig{Sentences: 6},
		Topics: TopicsConfig{
			MaxRepeats: 3,
			Examples: []string{
				"deep sea creatures",
				"ancient inventions",
				"strange laws",
				"space oddities",
			},
		},
		Metadata: MetadataConfig{
			TitleMaxChars:     100,
			TagsCount:         15,
			YouTubeCategoryID: "22",
		},
		Upload: UploadConfig{
			YouTube:         true,
			Visibility:      "public",
			DefaultLanguage: "en",
			GraphBaseURL:    "https://graph.facebook.com/v24.0",
			PollInitialSec:  5,
			PollMaxSec:      60,
			PollAttempts:    30,
		},
		Paths: PathsConfig{
			Output: "output",
			Env:    ".env",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
