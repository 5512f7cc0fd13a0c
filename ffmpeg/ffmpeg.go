// Package ffmpeg wraps the ffmpeg and ffprobe binaries behind small interfaces
// so the media stages can be exercised without them.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes one ffmpeg invocation. The last argument is the output path.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// Prober inspects a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
}

// MediaInfo holds the properties the pipeline cares about.
type MediaInfo struct {
	Duration     float64
	Width        int
	Height       int
	FPS          float64
	AudioStreams int
}

// HasVideo reports whether a video stream was found.
func (m MediaInfo) HasVideo() bool { return m.Width > 0 && m.Height > 0 }

// HasAudio reports whether at least one audio stream was found.
func (m MediaInfo) HasAudio() bool { return m.AudioStreams > 0 }

// Exec runs the real binaries.
type Exec struct {
	FFmpeg  string
	FFprobe string
}

// NewExec returns an Exec using binaries from PATH.
func NewExec() *Exec {
	return &Exec{FFmpeg: "ffmpeg", FFprobe: "ffprobe"}
}

// Available returns true if ffmpeg and ffprobe are on the PATH.
func Available() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

func (e *Exec) Run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, e.FFmpeg, full...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, tail(string(out), 800))
	}
	return nil
}

func (e *Exec) Probe(ctx context.Context, path string) (MediaInfo, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return MediaInfo{}, errors.New("ffprobe: empty path")
	}
	cmd := exec.CommandContext(ctx, e.FFprobe,
		"-v", "error",
		"-show_format", "-show_streams",
		"-of", "json",
		"--", path,
	)
	out, err := cmd.Output()
	if err != nil {
		return MediaInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseProbe(out)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		AvgRate    string `json:"avg_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}

// ParseProbe decodes ffprobe's JSON output.
func ParseProbe(data []byte) (MediaInfo, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return MediaInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	var info MediaInfo
	info.Duration, _ = strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if info.Width > 0 {
				continue
			}
			info.Width, info.Height = s.Width, s.Height
			info.FPS = ParseRate(s.AvgRate)
			if info.FPS == 0 {
				info.FPS = ParseRate(s.RFrameRate)
			}
			if info.Duration == 0 {
				info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
			}
		case "audio":
			info.AudioStreams++
		}
	}
	if info.Duration <= 0 {
		return info, errors.New("ffprobe: no duration")
	}
	return info, nil
}

// ParseRate parses an ffprobe rational such as "30000/1001".
func ParseRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// Seconds formats a duration argument with millisecond precision.
func Seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// EscapeFilterPath escapes a path for use inside a filtergraph option.
func EscapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "\\'")
	return path
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Encoding holds the H.264 output settings shared by every video stage.
type Encoding struct {
	Codec  string
	Preset string
	CRF    int
}

// VideoArgs returns the output codec arguments.
func (e Encoding) VideoArgs() []string {
	codec := e.Codec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{"-c:v", codec}
	if e.Preset != "" {
		args = append(args, "-preset", e.Preset)
	}
	if e.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(e.CRF))
	}
	return append(args, "-pix_fmt", "yuv420p")
}

// FormatRate formats a frame rate without trailing zeros.
func FormatRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
