package subtitles

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shorts-pipeline/types"
)

func TestMatchStickersBounds(t *testing.T) {
	layout := StickerLayout{
		Width: 1080, Height: 1920,
		MaxSec: 1.5, Scale: 0.22,
		Keyword: map[string]string{"fire": "1f525", "money": "1f4b0"},
	}
	rng := rand.New(rand.NewPCG(9, 9))
	var chunks []types.CaptionChunk
	for i := 0; i < 100; i++ {
		chunks = append(chunks, types.CaptionChunk{Text: "so much Money!", Start: float64(2 * i), End: float64(2*i) + 0.5})
	}
	cues := MatchStickers(chunks, layout, rng)
	if len(cues) != 100 {
		t.Fatalf("got %d cues, want 100", len(cues))
	}
	for _, c := range cues {
		if c.X < 216 || c.X > 648 || c.Y < 192 || c.Y > 576 {
			t.Fatalf("cue position (%d, %d) out of bounds", c.X, c.Y)
		}
		if c.Duration != 0.5 {
			t.Fatalf("duration = %v, want chunk length 0.5", c.Duration)
		}
		if c.Height != 422 {
			t.Fatalf("height = %d, want 422", c.Height)
		}
		if c.Keyword != "money" || c.Asset != "1f4b0" {
			t.Fatalf("cue = %+v", c)
		}
	}
}

func TestMatchStickersOnePerChunkCapped(t *testing.T) {
	layout := StickerLayout{Width: 100, Height: 100, MaxSec: 1.5, Scale: 0.2,
		Keyword: map[string]string{"fire": "1f525", "money": "1f4b0"}}
	cues := MatchStickers([]types.CaptionChunk{
		{Text: "fire and money", Start: 0, End: 4},
		{Text: "nothing here", Start: 4, End: 5},
	}, layout, rand.New(rand.NewPCG(1, 2)))
	if len(cues) != 1 {
		t.Fatalf("got %d cues, want 1", len(cues))
	}
	if cues[0].Keyword != "fire" || cues[0].Duration != 1.5 {
		t.Errorf("cue = %+v", cues[0])
	}
}

func TestStickerGraph(t *testing.T) {
	parts, last := stickerGraph([]types.StickerCue{
		{Start: 1, Duration: 1.5, X: 300, Y: 400, Height: 422},
		{Start: 5, Duration: 1, X: 310, Y: 410, Height: 422},
	}, "sub", 1)
	if last != "st1" || len(parts) != 4 {
		t.Fatalf("last = %q, parts = %d", last, len(parts))
	}
	if !strings.HasPrefix(parts[0], "[1:v]") || !strings.HasPrefix(parts[2], "[2:v]") {
		t.Errorf("icon inputs not numbered from 1: %v", parts)
	}
	if !strings.Contains(parts[1], "enable='between(t,1.000,2.500)'") || !strings.Contains(parts[1], "eof_action=pass") {
		t.Errorf("overlay = %q", parts[1])
	}
	if !strings.Contains(parts[0], "sin(8*(t-1.000))") {
		t.Errorf("pulse missing: %q", parts[0])
	}
}

func TestTwemojiFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1f525.png" {
			w.Write([]byte("png"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src := NewTwemoji(srv.URL+"/", time.Second)
	data, err := src.Fetch(context.Background(), "1f525")
	if err != nil || string(data) != "png" {
		t.Fatalf("Fetch = %q, %v", data, err)
	}
	if _, err := src.Fetch(context.Background(), "nope"); !errors.Is(err, ErrIconNotFound) {
		t.Errorf("missing icon err = %v, want ErrIconNotFound", err)
	}
}
