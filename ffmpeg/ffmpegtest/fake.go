// Package ffmpegtest provides an in-memory stand-in for ffmpeg and ffprobe.
package ffmpegtest

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"shorts-pipeline/ffmpeg"
)

var (
	scaleRe = regexp.MustCompile(`scale=(\d+):(\d+)`)
	fpsRe   = regexp.MustCompile(`fps=([0-9.]+)`)
)

// Fake implements ffmpeg.Runner and ffmpeg.Prober. Each Run writes an empty
// output file and records MediaInfo derived from the arguments so later
// probes see what a real encode would have produced.
type Fake struct {
	mu    sync.Mutex
	calls [][]string
	media map[string]ffmpeg.MediaInfo

	// FailWhen returns a non-nil error to make a Run fail.
	FailWhen func(args []string) error
	// Override adjusts the derived output info.
	Override func(args []string, info *ffmpeg.MediaInfo)
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{media: make(map[string]ffmpeg.MediaInfo)}
}

// Register makes path probe-able with the given info.
func (f *Fake) Register(path string, info ffmpeg.MediaInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[path] = info
}

// Calls returns a copy of every recorded invocation.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = append([]string(nil), c...)
	}
	return out
}

func (f *Fake) Run(ctx context.Context, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	f.mu.Unlock()

	if f.FailWhen != nil {
		if err := f.FailWhen(args); err != nil {
			return err
		}
	}
	if len(args) == 0 {
		return fmt.Errorf("ffmpegtest: no arguments")
	}

	out := args[len(args)-1]
	if err := os.WriteFile(out, nil, 0o644); err != nil {
		return fmt.Errorf("ffmpegtest: write output: %w", err)
	}

	info := f.derive(args)
	if f.Override != nil {
		f.Override(args, &info)
	}
	f.Register(out, info)
	return nil
}

func (f *Fake) Probe(ctx context.Context, path string) (ffmpeg.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return ffmpeg.MediaInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.media[path]
	if !ok {
		return ffmpeg.MediaInfo{}, fmt.Errorf("ffmpegtest: %s: no such media", path)
	}
	return info, nil
}

func (f *Fake) derive(args []string) ffmpeg.MediaInfo {
	lastInput := -1
	var first ffmpeg.MediaInfo
	firstSeen := false
	for i := 0; i < len(args)-1; i++ {
		if args[i] != "-i" {
			continue
		}
		lastInput = i + 1
		if firstSeen {
			continue
		}
		firstSeen = true
		src := args[i+1]
		if strings.HasPrefix(src, "color=") {
			first = parseColorSource(src)
			continue
		}
		f.mu.Lock()
		first = f.media[src]
		f.mu.Unlock()
	}

	info := first
	outArgs := args[lastInput+1 : len(args)-1]
	filters := ""
	for i, a := range args {
		if (a == "-vf" || a == "-filter_complex") && i+1 < len(args) {
			filters += args[i+1] + ";"
		}
	}
	if m := scaleRe.FindStringSubmatch(filters); m != nil {
		info.Width, _ = strconv.Atoi(m[1])
		info.Height, _ = strconv.Atoi(m[2])
	}
	if m := fpsRe.FindStringSubmatch(filters); m != nil {
		info.FPS, _ = strconv.ParseFloat(m[1], 64)
	}

	maps := 0
	audioMapped := false
	for i := 0; i < len(outArgs); i++ {
		switch outArgs[i] {
		case "-t":
			if i+1 < len(outArgs) {
				info.Duration, _ = strconv.ParseFloat(outArgs[i+1], 64)
			}
		case "-r":
			if i+1 < len(outArgs) {
				info.FPS, _ = strconv.ParseFloat(outArgs[i+1], 64)
			}
		case "-map":
			if i+1 < len(outArgs) {
				maps++
				v := outArgs[i+1]
				if strings.Contains(v, ":a") || v == "[a]" || v == "[aout]" {
					audioMapped = true
				}
			}
		case "-an":
			info.AudioStreams = 0
		case "-vn":
			info.Width, info.Height, info.FPS = 0, 0, 0
			info.AudioStreams = 1
		}
	}
	if maps > 0 {
		info.AudioStreams = 0
		if audioMapped {
			info.AudioStreams = 1
		}
	}
	return info
}

func parseColorSource(src string) ffmpeg.MediaInfo {
	var info ffmpeg.MediaInfo
	for _, part := range strings.Split(src[len("color="):], ":") {
		k, v, _ := strings.Cut(part, "=")
		switch k {
		case "s":
			w, h, _ := strings.Cut(v, "x")
			info.Width, _ = strconv.Atoi(w)
			info.Height, _ = strconv.Atoi(h)
		case "r":
			info.FPS, _ = strconv.ParseFloat(v, 64)
		case "d":
			info.Duration, _ = strconv.ParseFloat(v, 64)
		}
	}
	return info
}
