package upload

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

type seqChecker struct {
	mu     sync.Mutex
	states []types.ProcessingState
	errs   []error
	calls  int
}

func (s *seqChecker) Status(context.Context, string) (types.ProcessingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i >= len(s.states) {
		return types.StatePending, err
	}
	return s.states[i], err
}

func fastPoller(attempts int) *Poller {
	p := NewPoller(config.Default().Upload)
	p.Initial, p.Max, p.Attempts = time.Millisecond, 2*time.Millisecond, attempts
	return p
}

func TestPollerWait(t *testing.T) {
	cases := []struct {
		name    string
		checker *seqChecker
		want    error
		calls   int
	}{
		{"finishes", &seqChecker{states: []types.ProcessingState{types.StatePending, types.StatePending, types.StateFinished}}, nil, 3},
		{"fails", &seqChecker{states: []types.ProcessingState{types.StatePending, types.StateError}}, ErrProcessingFailed, 2},
		{"times out", &seqChecker{}, ErrPollTimeout, 4},
		{"check errors are retried", &seqChecker{
			states: []types.ProcessingState{types.StateFinished, types.StateFinished},
			errs:   []error{errors.New("502")},
		}, nil, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := fastPoller(4).Wait(context.Background(), tc.checker, "id")
			if tc.want == nil && err != nil || tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("Wait = %v, want %v", err, tc.want)
			}
			if tc.checker.calls != tc.calls {
				t.Errorf("calls = %d, want %d", tc.checker.calls, tc.calls)
			}
		})
	}
}

func TestPollerWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := fastPoller(100)
	p.Initial, p.Max = time.Hour, time.Hour
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := p.Wait(ctx, &seqChecker{}, "id"); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}
}

func TestNewPoller(t *testing.T) {
	p := NewPoller(config.UploadConfig{PollInitialSec: 5, PollMaxSec: 60, PollAttempts: 3})
	if p.Initial != 5*time.Second || p.Max != time.Minute || p.Attempts != 3 {
		t.Errorf("poller = %+v", p)
	}
}

func TestYouTubeState(t *testing.T) {
	cases := []struct {
		processing, upload string
		want               types.ProcessingState
	}{
		{"processing", "uploaded", types.StatePending},
		{"succeeded", "processed", types.StateFinished},
		{"", "processed", types.StateFinished},
		{"failed", "uploaded", types.StateError},
		{"terminated", "", types.StateError},
		{"", "rejected", types.StateError},
		{"", "", types.StatePending},
	}
	for _, tc := range cases {
		if got := YouTubeState(tc.processing, tc.upload); got != tc.want {
			t.Errorf("YouTubeState(%q, %q) = %v, want %v", tc.processing, tc.upload, got, tc.want)
		}
	}
}

func TestCaption(t *testing.T) {
	got := Caption(types.VideoMetadata{Title: "Title", Description: "Desc", Tags: []string{"deep sea", " facts "}})
	want := "Title\n\nDesc\n\n#deepsea #facts"
	if got != want {
		t.Errorf("Caption = %q, want %q", got, want)
	}
}

type graphServer struct {
	mu       sync.Mutex
	statuses []string
	polls    int
	caption  string
	videoURL string
	fail     bool
}

func (g *graphServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("access_token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad token"}}`))
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/42/media":
			if g.fail {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"video_url unreachable"}}`))
				return
			}
			g.caption, g.videoURL = r.Form.Get("caption"), r.Form.Get("video_url")
			if r.Form.Get("media_type") != "REELS" {
				t.Errorf("media_type = %q", r.Form.Get("media_type"))
			}
			w.Write([]byte(`{"id":"c1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/c1":
			status := "FINISHED"
			if g.polls < len(g.statuses) {
				status = g.statuses[g.polls]
			}
			g.polls++
			w.Write([]byte(`{"status_code":"` + status + `","id":"c1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/42/media_publish":
			if r.Form.Get("creation_id") != "c1" {
				t.Errorf("creation_id = %q", r.Form.Get("creation_id"))
			}
			w.Write([]byte(`{"id":"m9"}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestInstagram(srvURL string) *Instagram {
	cfg := config.Default().Upload
	cfg.GraphBaseURL = srvURL + "/"
	return NewInstagram(cfg, config.Secrets{InstagramUserID: "42", InstagramToken: "tok"})
}

type fakeDrive struct{ shared string }

func (f *fakeDrive) Share(_ context.Context, path string) (string, string, error) {
	f.shared = path
	return "file1", "https://drive.example/file1", nil
}

type fakeYouTube struct {
	seqChecker
	uploadErr error
	uploaded  string
}

func (f *fakeYouTube) Upload(_ context.Context, video string, _ types.VideoMetadata) (string, error) {
	f.uploaded = video
	return "yt123", f.uploadErr
}

func TestPublishInstagramFlow(t *testing.T) {
	graph := &graphServer{statuses: []string{"IN_PROGRESS", "IN_PROGRESS"}}
	srv := httptest.NewServer(graph.handler(t))
	defer srv.Close()

	drive := &fakeDrive{}
	p := &Publisher{Drive: drive, Instagram: newTestInstagram(srv.URL), Poller: fastPoller(5), log: slog.Default()}
	results, err := p.Publish(context.Background(), "/out/final.mp4", types.VideoMetadata{Title: "T", Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(results) != 1 || results[0].Platform != "instagram" || results[0].RemoteID != "m9" {
		t.Fatalf("results = %+v", results)
	}
	if drive.shared != "/out/final.mp4" || graph.videoURL != "https://drive.example/file1" {
		t.Errorf("shared %q, container url %q", drive.shared, graph.videoURL)
	}
	if graph.polls != 3 || !strings.Contains(graph.caption, "#x") {
		t.Errorf("polls = %d, caption = %q", graph.polls, graph.caption)
	}
}

func TestPublishInstagramProcessingError(t *testing.T) {
	graph := &graphServer{statuses: []string{"ERROR"}}
	srv := httptest.NewServer(graph.handler(t))
	defer srv.Close()

	p := &Publisher{Drive: &fakeDrive{}, Instagram: newTestInstagram(srv.URL), Poller: fastPoller(5), log: slog.Default()}
	_, err := p.Publish(context.Background(), "v.mp4", types.VideoMetadata{})
	if !errors.Is(err, ErrProcessingFailed) {
		t.Errorf("err = %v, want ErrProcessingFailed", err)
	}
}

func TestInstagramGraphError(t *testing.T) {
	graph := &graphServer{fail: true}
	srv := httptest.NewServer(graph.handler(t))
	defer srv.Close()

	_, err := newTestInstagram(srv.URL).CreateContainer(context.Background(), "u", "c")
	if err == nil || !strings.Contains(err.Error(), "video_url unreachable") {
		t.Errorf("err = %v, want graph error message", err)
	}
}

func TestPublishContinuesAfterFailure(t *testing.T) {
	graph := &graphServer{}
	srv := httptest.NewServer(graph.handler(t))
	defer srv.Close()

	yt := &fakeYouTube{uploadErr: errors.New("quota exceeded")}
	p := &Publisher{YouTube: yt, Drive: &fakeDrive{}, Instagram: newTestInstagram(srv.URL), Poller: fastPoller(3), log: slog.Default()}
	results, err := p.Publish(context.Background(), "v.mp4", types.VideoMetadata{})
	if err == nil || !strings.Contains(err.Error(), "youtube: quota exceeded") {
		t.Errorf("err = %v, want youtube failure", err)
	}
	if len(results) != 1 || results[0].Platform != "instagram" {
		t.Errorf("results = %+v, want instagram only", results)
	}
}

func TestPublishYouTubeTimeoutIsSoft(t *testing.T) {
	yt := &fakeYouTube{}
	p := &Publisher{YouTube: yt, Poller: fastPoller(2), log: slog.Default()}
	results, err := p.Publish(context.Background(), "v.mp4", types.VideoMetadata{})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://www.youtube.com/shorts/yt123" {
		t.Errorf("results = %+v", results)
	}
}

func TestNewPublisherSkipsMissingCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.Enabled, cfg.Upload.Instagram = true, true
	p, err := NewPublisher(context.Background(), cfg, config.Secrets{})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	if p.Enabled() {
		t.Error("publisher without credentials should have no destinations")
	}
}
