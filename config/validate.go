package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateVideo(),
		c.validatePlanner(),
		c.validateVisuals(),
		c.validateSubtitles(),
		c.validatePost(),
		c.validateTTS(),
		c.validateUpload(),
	)
}

func (c *Config) validateVideo() error {
	if c.Video.Width <= 0 || c.Video.Height <= 0 {
		return fmt.Errorf("video resolution must be positive, got %dx%d", c.Video.Width, c.Video.Height)
	}
	if c.Video.Width%2 != 0 || c.Video.Height%2 != 0 {
		return errors.New("video width and height must be even for yuv420p")
	}
	if c.Video.FPS <= 0 {
		return errors.New("video.fps must be positive")
	}
	if c.Video.Epsilon < 0 {
		return errors.New("video.epsilon must not be negative")
	}
	return nil
}

func (c *Config) validatePlanner() error {
	if c.Planner.GranularitySec <= 0 {
		return errors.New("planner.granularity_sec must be positive")
	}
	return nil
}

func (c *Config) validateVisuals() error {
	if c.Visuals.MaxConcurrent < 1 {
		return errors.New("visuals.max_concurrent must be at least 1")
	}
	if c.Visuals.SearchTimeoutSec <= 0 || c.Visuals.DownloadTimeoutSec <= 0 {
		return errors.New("visuals timeouts must be positive")
	}
	switch c.Visuals.Orientation {
	case "portrait", "landscape", "square":
	default:
		return fmt.Errorf("visuals.orientation: unsupported value %q", c.Visuals.Orientation)
	}
	return nil
}

// maxStickerSec caps how long a sticker stays on screen.
const maxStickerSec = 1.5

func (c *Config) validateSubtitles() error {
	switch strings.ToLower(c.Subtitles.Engine) {
	case "whisper", "openai":
	default:
		return fmt.Errorf("subtitles.engine: unsupported value %q", c.Subtitles.Engine)
	}
	if c.Subtitles.WordsPerChunk < 1 {
		return errors.New("subtitles.words_per_chunk must be at least 1")
	}
	if c.Subtitles.StickerMaxSec < 0 || c.Subtitles.StickerMaxSec > maxStickerSec {
		return fmt.Errorf("subtitles.sticker_max_sec must be between 0 and %g", maxStickerSec)
	}
	return nil
}

func (c *Config) validatePost() error {
	if c.Music.Enabled && strings.TrimSpace(c.Music.Path) == "" {
		return errors.New("music.path must be set when music.enabled is true")
	}
	if c.Music.Volume < 0 {
		return errors.New("music.volume must not be negative")
	}
	if c.Outro.Enabled {
		if strings.TrimSpace(c.Outro.Image) == "" {
			return errors.New("outro.image must be set when outro.enabled is true")
		}
		if c.Outro.HoldSec <= 0 {
			return errors.New("outro.hold_sec must be positive")
		}
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.SampleRate <= 0 || c.TTS.Channels <= 0 {
		return errors.New("tts sample_rate and channels must be positive")
	}
	if c.TTS.BitDepth != 16 {
		return fmt.Errorf("tts.bit_depth: only 16-bit PCM is supported, got %d", c.TTS.BitDepth)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if !c.Upload.Enabled {
		return nil
	}
	if c.Upload.PollAttempts < 1 {
		return errors.New("upload.poll_attempts must be at least 1")
	}
	if c.Upload.PollInitialSec <= 0 || c.Upload.PollMaxSec < c.Upload.PollInitialSec {
		return errors.New("upload poll intervals must be positive and max >= initial")
	}
	return nil
}
