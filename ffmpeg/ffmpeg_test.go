package ffmpeg

import (
	"math"
	"testing"
)

func TestParseProbe(t *testing.T) {
	payload := []byte(`{
		"streams": [
			{"codec_type": "video", "width": 1080, "height": 1920, "r_frame_rate": "24/1", "avg_frame_rate": "24/1"},
			{"codec_type": "audio"}
		],
		"format": {"duration": "12.500000"}
	}`)

	info, err := ParseProbe(payload)
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.Width != 1080 || info.Height != 1920 {
		t.Errorf("resolution = %dx%d, want 1080x1920", info.Width, info.Height)
	}
	if info.FPS != 24 {
		t.Errorf("FPS = %v, want 24", info.FPS)
	}
	if info.Duration != 12.5 {
		t.Errorf("Duration = %v, want 12.5", info.Duration)
	}
	if !info.HasAudio() || !info.HasVideo() {
		t.Errorf("HasAudio/HasVideo = %v/%v, want true/true", info.HasAudio(), info.HasVideo())
	}
}

func TestParseProbeFallsBackToStreamDuration(t *testing.T) {
	payload := []byte(`{"streams":[{"codec_type":"video","width":2,"height":2,"r_frame_rate":"30000/1001","duration":"4.2"}],"format":{}}`)
	info, err := ParseProbe(payload)
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.Duration != 4.2 {
		t.Errorf("Duration = %v, want 4.2", info.Duration)
	}
	if math.Abs(info.FPS-29.97) > 0.01 {
		t.Errorf("FPS = %v, want ~29.97", info.FPS)
	}
}

func TestParseProbeNoDuration(t *testing.T) {
	if _, err := ParseProbe([]byte(`{"streams":[],"format":{}}`)); err == nil {
		t.Error("ParseProbe(empty) = nil error, want failure")
	}
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"24/1", 24},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
	}
	for _, tc := range cases {
		if got := ParseRate(tc.in); got != tc.want {
			t.Errorf("ParseRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSeconds(t *testing.T) {
	if got := Seconds(3); got != "3.000" {
		t.Errorf("Seconds(3) = %q, want %q", got, "3.000")
	}
	if got := Seconds(0.1234); got != "0.123" {
		t.Errorf("Seconds(0.1234) = %q, want %q", got, "0.123")
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := EscapeFilterPath(`C:\tmp\it's.srt`)
	want := `C\:/tmp/it\'s.srt`
	if got != want {
		t.Errorf("EscapeFilterPath = %q, want %q", got, want)
	}
}
