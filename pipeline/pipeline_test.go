package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/ffmpeg/ffmpegtest"
	"shorts-pipeline/manifest"
	"shorts-pipeline/types"
)

const scriptReply = "[NARRATOR]: Octopuses have three hearts.\n[NARRATOR]: Their blood is blue."

type stubLLM struct {
	onCall func()
}

func (s stubLLM) Complete(context.Context, string, string) (string, error) {
	if s.onCall != nil {
		s.onCall()
	}
	return scriptReply, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(context.Context, string, string) (types.PCM, error) {
	return types.PCM{Data: make([]byte, 24000*2*6), SampleRate: 24000, Channels: 1, BitDepth: 16}, nil
}

type noResults struct{}

func (noResults) Search(context.Context, string, string, int) ([]types.StockVideo, error) {
	return nil, nil
}

type noFetch struct{}

func (noFetch) Fetch(context.Context, string, string) error { return errors.New("unreachable") }

type stubTranscriber struct{ spans []types.Span }

func (s stubTranscriber) Transcribe(context.Context, string) ([]types.Span, error) {
	return s.spans, nil
}

type fakePublisher struct {
	video string
	meta  types.VideoMetadata
}

func (f *fakePublisher) Enabled() bool { return true }

func (f *fakePublisher) Publish(_ context.Context, video string, meta types.VideoMetadata) ([]types.PublishResult, error) {
	f.video, f.meta = video, meta
	return []types.PublishResult{{Platform: "youtube", RemoteID: "abc", URL: "https://www.youtube.com/shorts/abc"}}, nil
}

type fixture struct {
	cfg   *config.Config
	store *manifest.Store
	fake  *ffmpegtest.Fake
	deps  Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Output = t.TempDir()

	store, err := manifest.Open(ManifestPath(cfg))
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fake := ffmpegtest.New()
	fake.Override = func(args []string, info *ffmpeg.MediaInfo) {
		if strings.HasSuffix(args[len(args)-1], "narration.mp3") {
			info.Duration = 6
			info.AudioStreams = 1
		}
	}
	return &fixture{
		cfg:   cfg,
		store: store,
		fake:  fake,
		deps: Deps{
			Runner:      fake,
			Prober:      fake,
			LLM:         stubLLM{},
			Synth:       stubSynth{},
			Search:      noResults{},
			Fetch:       noFetch{},
			Transcriber: stubTranscriber{spans: []types.Span{{Start: 0, End: 6, Text: "Octopuses have three hearts. Their blood is blue."}}},
		},
	}
}

func (f *fixture) pipeline(id string) *Pipeline {
	p := New(f.cfg, f.store, f.deps)
	p.newID = func() string { return id }
	return p
}

func TestRunProducesFinalVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.pipeline("run1").Run(ctx, Options{Topic: "Octopus Facts"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	runDir := filepath.Join(f.cfg.Paths.Output, "run1")
	if state.VideoFile != filepath.Join(runDir, "subtitled.mp4") {
		t.Errorf("VideoFile = %q", state.VideoFile)
	}
	if state.Topic != "Octopus Facts" || state.Narration.DurationSec != 6 || len(state.Segments) != 2 {
		t.Errorf("state = topic %q narration %+v segments %d", state.Topic, state.Narration, len(state.Segments))
	}
	for _, c := range state.Timeline.Clips {
		if !c.Placeholder {
			t.Errorf("clip %d should be a placeholder without stock results", c.Index)
		}
	}
	if state.Metadata == nil || !strings.Contains(state.Metadata.Title, "Octopus Facts") {
		t.Errorf("metadata = %+v, want topic fallback", state.Metadata)
	}
	if state.Error != "" || state.CompletedAt == "" {
		t.Errorf("state error %q completed %q", state.Error, state.CompletedAt)
	}

	for _, name := range []string{"pipeline_state.json", "script.json", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(runDir, "work")); !os.IsNotExist(err) {
		t.Errorf("work dir should be removed, stat err = %v", err)
	}

	run, err := f.store.GetRun(ctx, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != manifest.StatusSucceeded || run.FinalVideo != state.VideoFile {
		t.Errorf("manifest run = %+v", run)
	}
	final, err := f.store.LatestArtifact(ctx, manifest.KindFinal)
	if err != nil || final.Path != state.VideoFile {
		t.Errorf("latest final = %+v, %v", final, err)
	}
	if n, _ := f.store.TopicCount(ctx, "octopus facts"); n != 1 {
		t.Errorf("TopicCount = %d, want 1", n)
	}
}

func TestRunKeepsWorkDir(t *testing.T) {
	f := newFixture(t)
	if _, err := f.pipeline("keep").Run(context.Background(), Options{Topic: "x", KeepWork: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.Output, "keep", "work")); err != nil {
		t.Errorf("work dir should be kept: %v", err)
	}
}

func TestRunWithoutSpeechKeepsTimeline(t *testing.T) {
	f := newFixture(t)
	f.deps.Transcriber = stubTranscriber{}

	state, err := f.pipeline("quiet").Run(context.Background(), Options{Topic: "x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := filepath.Join(f.cfg.Paths.Output, "quiet", "timeline.mp4"); state.VideoFile != want {
		t.Errorf("VideoFile = %q, want %q", state.VideoFile, want)
	}
	if state.Subtitles != nil {
		t.Errorf("Subtitles = %+v, want nil", state.Subtitles)
	}
}

func TestRunFailsWhileLocked(t *testing.T) {
	f := newFixture(t)
	held := flock.New(filepath.Join(f.cfg.Paths.Output, lockFile))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer held.Unlock()

	if _, err := f.pipeline("locked").Run(context.Background(), Options{Topic: "x"}); !errors.Is(err, ErrLocked) {
		t.Errorf("Run = %v, want ErrLocked", err)
	}
}

func TestRunRecordsStageFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Synth = nil
	ctx := context.Background()

	state, err := f.pipeline("fail").Run(ctx, Options{Topic: "x"})
	if err == nil || !strings.HasPrefix(state.Error, "tts: ") {
		t.Fatalf("Run = %v, state error %q, want tts failure", err, state.Error)
	}
	run, _ := f.store.GetRun(ctx, "fail")
	if run.Status != manifest.StatusFailed || !strings.HasPrefix(run.Error, "tts: ") {
		t.Errorf("manifest run = %+v", run)
	}
	if _, err := os.Stat(filepath.Join(f.cfg.Paths.Output, "fail", stateFile)); err != nil {
		t.Errorf("state file missing after failure: %v", err)
	}
}

func TestRunStopsAtStageBoundaryOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.deps.LLM = stubLLM{onCall: cancel}

	state, err := f.pipeline("cancel").Run(ctx, Options{Topic: "x"})
	if !errors.Is(err, context.Canceled) || !strings.HasPrefix(state.Error, "tts: ") {
		t.Fatalf("Run = %v, state error %q", err, state.Error)
	}
	if len(f.fake.Calls()) != 0 {
		t.Errorf("ffmpeg ran %d times after cancel", len(f.fake.Calls()))
	}
	run, _ := f.store.GetRun(context.Background(), "cancel")
	if run.Status != manifest.StatusFailed {
		t.Errorf("manifest status = %q, want failed", run.Status)
	}
}

func TestRunPublishes(t *testing.T) {
	cases := []struct {
		name     string
		noUpload bool
		want     int
	}{
		{"publishes", false, 1},
		{"no upload flag", true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Upload.Enabled = true
			pub := &fakePublisher{}
			f.deps.Publisher = pub

			state, err := f.pipeline("pub").Run(context.Background(), Options{Topic: "x", NoUpload: tc.noUpload})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(state.Published) != tc.want {
				t.Errorf("published = %+v, want %d", state.Published, tc.want)
			}
			if tc.want > 0 && (pub.video != state.VideoFile || pub.meta.Title == "") {
				t.Errorf("publisher got %q %+v", pub.video, pub.meta)
			}
		})
	}
}

func TestAssembleOnly(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	narration := filepath.Join(dir, "voice.mp3")
	f.fake.Register(narration, ffmpeg.MediaInfo{Duration: 7.5, AudioStreams: 1})

	tl, err := f.pipeline("x").Assemble(context.Background(), "one two three four five", narration, "topic", filepath.Join(dir, "out", "timeline.mp4"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(tl.Clips) != 3 || tl.DurationSec != 7.5 {
		t.Errorf("timeline = %d clips, %.3fs", len(tl.Clips), tl.DurationSec)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "out"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "assemble-") {
			t.Errorf("work dir %s left behind", e.Name())
		}
	}
}

func TestSubtitleRequiresTranscriber(t *testing.T) {
	f := newFixture(t)
	f.deps.Transcriber = nil
	if _, err := f.pipeline("x").Subtitle(context.Background(), "in.mp4", "out.mp4"); err == nil {
		t.Error("expected error without transcriber")
	}
}
