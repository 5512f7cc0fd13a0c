package normalize

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/ffmpeg/ffmpegtest"
	"shorts-pipeline/types"
)

func newTestNormalizer(t *testing.T, fake *ffmpegtest.Fake) *Normalizer {
	t.Helper()
	n := New(config.Default(), fake, fake, t.TempDir())
	return n.WithRand(rand.New(rand.NewPCG(7, 7)))
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestPlanClipModes(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	cases := []struct {
		source, target float64
		want           Mode
	}{
		{0, 3, ModePlaceholder},
		{10, 3, ModeWindow},
		{1, 3, ModeLoop},
		{3.04, 3, ModeExact},
		{2.96, 3, ModeExact},
	}
	for _, tc := range cases {
		if got := PlanClip(tc.source, tc.target, 0.05, rng).Mode; got != tc.want {
			t.Errorf("PlanClip(%v, %v).Mode = %v, want %v", tc.source, tc.target, got, tc.want)
		}
	}
}

func TestPlanClipWindowWithinSource(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 200; i++ {
		p := PlanClip(10, 3, 0.05, rng)
		if p.Start < 0 || p.Start > 7 {
			t.Fatalf("window start %v outside [0, 7]", p.Start)
		}
	}
}

func TestPlanClipLoopCount(t *testing.T) {
	p := PlanClip(1, 3, 0.05, nil)
	if p.Loops != 3 {
		t.Errorf("Loops = %d, want 3", p.Loops)
	}
	if float64(p.Loops)*1 < 3 {
		t.Errorf("looped length %v shorter than target", float64(p.Loops))
	}
}

func TestArgsFilterOrder(t *testing.T) {
	tgt := Target{Duration: 3, Width: 1080, Height: 1920, FPS: 24}
	args := Args("in.mp4", ClipPlan{Mode: ModeExact}, tgt, ffmpeg.Encoding{}, "out.mp4")
	vf := argAfter(args, "-vf")
	scale := strings.Index(vf, "scale=1080:1920")
	fps := strings.Index(vf, "fps=24")
	pad := strings.Index(vf, "tpad=")
	if scale < 0 || fps < 0 || pad < 0 || !(scale < fps && fps < pad) {
		t.Errorf("filter chain %q not ordered scale, fps, tpad", vf)
	}
	if argAfter(args, "-t") != "3.000" {
		t.Errorf("-t = %q, want 3.000", argAfter(args, "-t"))
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output = %q", args[len(args)-1])
	}
}

func TestNormalizeLoopsShortSource(t *testing.T) {
	fake := ffmpegtest.New()
	fake.Register("short.mp4", ffmpeg.MediaInfo{Duration: 1, Width: 640, Height: 360, FPS: 30})
	n := newTestNormalizer(t, fake)

	clip, err := n.Normalize(context.Background(), "short.mp4", 0, n.Target(3))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if clip.Placeholder {
		t.Fatal("clip is a placeholder")
	}
	if math.Abs(clip.Duration-3.0) > 1e-3 {
		t.Errorf("Duration = %v, want 3.0", clip.Duration)
	}
	info, _ := fake.Probe(context.Background(), clip.Path)
	if math.Abs(info.Duration-3.0) > 1e-3 || info.Width != 1080 || info.Height != 1920 || info.FPS != 24 {
		t.Errorf("encoded = %+v, want 3.0s 1080x1920@24", info)
	}
	args := fake.Calls()[0]
	if argAfter(args, "-stream_loop") != "3" {
		t.Errorf("-stream_loop = %q, want 3", argAfter(args, "-stream_loop"))
	}
}

func TestNormalizeWindowsLongSource(t *testing.T) {
	fake := ffmpegtest.New()
	fake.Register("long.mp4", ffmpeg.MediaInfo{Duration: 20, Width: 1920, Height: 1080, FPS: 25})
	n := newTestNormalizer(t, fake)

	clip, err := n.Normalize(context.Background(), "long.mp4", 2, n.Target(2.5))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	args := fake.Calls()[0]
	if argAfter(args, "-ss") == "" {
		t.Error("window mode without -ss")
	}
	if clip.Duration != 2.5 || clip.FPS != 24 || clip.Width != 1080 {
		t.Errorf("clip = %+v", clip)
	}
	if filepath.Base(clip.Path) != "clip_002.mp4" {
		t.Errorf("path = %q", clip.Path)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	fake := ffmpegtest.New()
	fake.Register("src.mp4", ffmpeg.MediaInfo{Duration: 7, Width: 720, Height: 1280, FPS: 30})
	n := newTestNormalizer(t, fake)
	ctx := context.Background()

	first, err := n.Normalize(ctx, "src.mp4", 0, n.Target(3))
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	second, err := n.Normalize(ctx, first.Path, 1, n.Target(3))
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}
	if first.Duration != second.Duration || first.Width != second.Width || first.Height != second.Height || first.FPS != second.FPS {
		t.Errorf("second pass drifted: %+v vs %+v", first, second)
	}
	calls := fake.Calls()
	last := calls[len(calls)-1]
	if slices.Contains(last, "-ss") || slices.Contains(last, "-stream_loop") {
		t.Errorf("second pass was not exact: %v", last)
	}
}

func TestNormalizeNullAssetYieldsPlaceholder(t *testing.T) {
	fake := ffmpegtest.New()
	n := newTestNormalizer(t, fake)

	clip, err := n.Normalize(context.Background(), "", 5, n.Target(1.25))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !clip.Placeholder || clip.Duration != 1.25 || clip.Width != 1080 || clip.Height != 1920 || clip.FPS != 24 {
		t.Errorf("clip = %+v", clip)
	}
	src := argAfter(fake.Calls()[0], "-i")
	if !strings.HasPrefix(src, "color=c=0x141414:s=1080x1920:r=24:d=1.250") {
		t.Errorf("placeholder source = %q", src)
	}
}

func TestNormalizeUnreadableAssetYieldsPlaceholder(t *testing.T) {
	fake := ffmpegtest.New()
	n := newTestNormalizer(t, fake)
	clip, err := n.Normalize(context.Background(), "missing.mp4", 0, n.Target(3))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !clip.Placeholder {
		t.Error("expected placeholder for unreadable asset")
	}
}

func TestNormalizeEncodeFailureFallsBack(t *testing.T) {
	fake := ffmpegtest.New()
	fake.Register("bad.mp4", ffmpeg.MediaInfo{Duration: 5, Width: 10, Height: 10, FPS: 30})
	fake.FailWhen = func(args []string) error {
		if slices.Contains(args, "bad.mp4") {
			return errors.New("decode error")
		}
		return nil
	}
	n := newTestNormalizer(t, fake)
	clip, err := n.Normalize(context.Background(), "bad.mp4", 0, n.Target(3))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !clip.Placeholder || clip.Duration != 3 {
		t.Errorf("clip = %+v, want 3s placeholder", clip)
	}
}

func TestNormalizePlaceholderFailureIsFatal(t *testing.T) {
	fake := ffmpegtest.New()
	fake.FailWhen = func([]string) error { return errors.New("no lavfi") }
	n := newTestNormalizer(t, fake)
	if _, err := n.Normalize(context.Background(), "", 0, n.Target(3)); err == nil {
		t.Error("Normalize = nil error, want placeholder failure")
	}
}

func TestNormalizeAllPlaceholders(t *testing.T) {
	fake := ffmpegtest.New()
	n := newTestNormalizer(t, fake)
	segs := []types.Segment{
		{Index: 0, TargetDuration: 3},
		{Index: 1, TargetDuration: 3},
		{Index: 2, TargetDuration: 1},
	}
	clips, err := n.NormalizeAll(context.Background(), segs, make([]string, len(segs)))
	if err != nil {
		t.Fatalf("NormalizeAll: %v", err)
	}
	var total float64
	for i, c := range clips {
		if !c.Placeholder || c.Index != i {
			t.Errorf("clip %d = %+v", i, c)
		}
		total += c.Duration
	}
	if math.Abs(total-7) > 1e-3 {
		t.Errorf("total = %v, want 7", total)
	}
}

func TestNormalizeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := newTestNormalizer(t, ffmpegtest.New())
	_, err := n.NormalizeAll(ctx, []types.Segment{{TargetDuration: 1}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestVerifyAllowsOneFrameOfDrift(t *testing.T) {
	cases := []struct {
		name    string
		drift   float64
		wantErr bool
	}{
		{"exact", 0, false},
		{"under one frame", 0.03, false},
		{"under one frame short", -0.04, false},
		{"over one frame", 0.05, true},
		{"two frames short", -2.0 / 24, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := ffmpegtest.New()
			n := newTestNormalizer(t, fake)
			target := n.Target(3)
			fake.Register("enc.mp4", ffmpeg.MediaInfo{Duration: 3 + tc.drift, Width: target.Width, Height: target.Height, FPS: target.FPS})

			clip, err := n.verify(context.Background(), "enc.mp4", 0, target)
			if tc.wantErr {
				if !errors.Is(err, ErrNormalizeMismatch) {
					t.Errorf("verify = %v, want ErrNormalizeMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if clip.Duration != 3 {
				t.Errorf("Duration = %v, want the target", clip.Duration)
			}
		})
	}
}
