package normalize

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"shorts-pipeline/ffmpeg"
)

// Mode is how a source clip is fitted to its target duration.
type Mode int

const (
	ModePlaceholder Mode = iota
	ModeWindow
	ModeLoop
	ModeExact
)

func (m Mode) String() string {
	switch m {
	case ModeWindow:
		return "window"
	case ModeLoop:
		return "loop"
	case ModeExact:
		return "exact"
	default:
		return "placeholder"
	}
}

// Target is the uniform shape every clip in a timeline is coerced to.
type Target struct {
	Duration float64
	Width    int
	Height   int
	FPS      float64
}

// ClipPlan describes one normalization.
type ClipPlan struct {
	Mode  Mode
	Start float64 // window offset into the source
	Loops int     // extra source repetitions for -stream_loop
}

// PlanClip picks the fitting mode for a source of the given duration. A
// longer source yields a random window, a shorter one is looped, and one
// within epsilon of the target is used as-is.
func PlanClip(source, target, epsilon float64, rng *rand.Rand) ClipPlan {
	switch {
	case source <= 0:
		return ClipPlan{Mode: ModePlaceholder}
	case source > target+epsilon:
		return ClipPlan{Mode: ModeWindow, Start: rng.Float64() * (source - target)}
	case source < target-epsilon:
		return ClipPlan{Mode: ModeLoop, Loops: int(math.Ceil(target / source))}
	default:
		return ClipPlan{Mode: ModeExact}
	}
}

// filterChain scales first, then resamples the frame rate, then holds the last
// frame so the output -t can always be met.
func filterChain(t Target) string {
	return fmt.Sprintf("scale=%d:%d,setsar=1,fps=%s,tpad=stop_mode=clone:stop_duration=%s",
		t.Width, t.Height, ffmpeg.FormatRate(t.FPS), ffmpeg.Seconds(t.Duration))
}

// Args builds the ffmpeg arguments for a real source.
func Args(src string, plan ClipPlan, t Target, enc ffmpeg.Encoding, out string) []string {
	var args []string
	switch plan.Mode {
	case ModeWindow:
		args = append(args, "-ss", ffmpeg.Seconds(plan.Start))
	case ModeLoop:
		args = append(args, "-stream_loop", strconv.Itoa(plan.Loops))
	}
	args = append(args,
		"-i", src,
		"-vf", filterChain(t),
		"-t", ffmpeg.Seconds(t.Duration),
		"-r", ffmpeg.FormatRate(t.FPS),
		"-an",
	)
	args = append(args, enc.VideoArgs()...)
	return append(args, out)
}

// PlaceholderColor is the solid fill used when a segment has no visual.
const PlaceholderColor = "0x141414"

// PlaceholderArgs builds the ffmpeg arguments for a solid-colour clip.
func PlaceholderArgs(t Target, enc ffmpeg.Encoding, out string) []string {
	src := fmt.Sprintf("color=c=%s:s=%dx%d:r=%s:d=%s",
		PlaceholderColor, t.Width, t.Height, ffmpeg.FormatRate(t.FPS), ffmpeg.Seconds(t.Duration))
	args := []string{
		"-f", "lavfi",
		"-i", src,
		"-t", ffmpeg.Seconds(t.Duration),
		"-r", ffmpeg.FormatRate(t.FPS),
	}
	args = append(args, enc.VideoArgs()...)
	return append(args, out)
}
