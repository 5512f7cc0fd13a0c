package subtitles

import (
	"strings"
	"testing"

	"shorts-pipeline/config"
)

func TestASSColour(t *testing.T) {
	cases := map[string]string{
		"yellow":  "&H0000FFFF",
		"black":   "&H00000000",
		"#FF8800": "&H000088FF",
		"White":   "&H00FFFFFF",
	}
	for in, want := range cases {
		got, err := ASSColour(in)
		if err != nil || got != want {
			t.Errorf("ASSColour(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ASSColour("chartreuse-ish"); err == nil {
		t.Error("unknown colour should fail")
	}
}

func TestForceStyleDefaults(t *testing.T) {
	style, err := ForceStyle(config.Default().Subtitles)
	if err != nil {
		t.Fatalf("ForceStyle: %v", err)
	}
	for _, want := range []string{
		"FontName=Arial",
		"FontSize=24",
		"Bold=1",
		"PrimaryColour=&H0000FFFF",
		"OutlineColour=&H00000000",
		"Outline=1.73",
		"Alignment=5",
		"MarginL=23",
		"MarginR=23",
	} {
		if !strings.Contains(style, want) {
			t.Errorf("style %q missing %q", style, want)
		}
	}
}

func TestSubtitleFilterEscapesPath(t *testing.T) {
	got := SubtitleFilter("C:/tmp/it's.srt", "Bold=1")
	want := `subtitles='C\:/tmp/it\'s.srt':force_style='Bold=1'`
	if got != want {
		t.Errorf("SubtitleFilter = %q, want %q", got, want)
	}
}
