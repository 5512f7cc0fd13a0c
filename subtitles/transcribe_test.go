package subtitles

import (
	"testing"

	"shorts-pipeline/config"
)

func TestParseSegments(t *testing.T) {
	data := []byte(`{"text":"ignored","segments":[
		{"start":0,"end":2.5,"text":" Hello there. "},
		{"start":2.5,"end":2.5,"text":"   "},
		{"start":3,"end":1,"text":"backwards"}
	]}`)
	spans, err := ParseSegments(data)
	if err != nil {
		t.Fatalf("ParseSegments: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(spans), spans)
	}
	if spans[0].Text != "Hello there." || spans[0].End != 2.5 {
		t.Errorf("span[0] = %+v", spans[0])
	}
	if spans[1].End != spans[1].Start {
		t.Errorf("backwards span not clamped: %+v", spans[1])
	}
}

func TestParseSegmentsTextFallback(t *testing.T) {
	spans, err := ParseSegments([]byte(`{"text":"just words","duration":4.2}`))
	if err != nil {
		t.Fatalf("ParseSegments: %v", err)
	}
	if len(spans) != 1 || spans[0].Start != 0 || spans[0].End != 4.2 || spans[0].Text != "just words" {
		t.Errorf("spans = %+v", spans)
	}
}

func TestParseSegmentsInvalidJSON(t *testing.T) {
	if _, err := ParseSegments([]byte(`not json`)); err == nil {
		t.Error("ParseSegments(not json) = nil error")
	}
}

func TestParseSegmentsSilence(t *testing.T) {
	for _, in := range []string{
		`{"text":"","segments":[]}`,
		`{"segments":[{"start":0,"end":3,"text":"  "}]}`,
		`{"text":"","duration":3}`,
		`{}`,
	} {
		spans, err := ParseSegments([]byte(in))
		if err != nil || len(spans) != 0 {
			t.Errorf("ParseSegments(%s) = %+v, %v; want no spans and no error", in, spans, err)
		}
	}
}

func TestNewTranscriber(t *testing.T) {
	cfg := config.Default().Subtitles
	tr, err := NewTranscriber(cfg, config.Secrets{})
	if err != nil {
		t.Fatalf("whisper engine: %v", err)
	}
	if _, ok := tr.(*WhisperCLI); !ok {
		t.Errorf("got %T, want *WhisperCLI", tr)
	}

	cfg.Engine = "openai"
	if _, err := NewTranscriber(cfg, config.Secrets{}); err == nil {
		t.Error("openai engine without key should fail")
	}
	if _, err := NewTranscriber(cfg, config.Secrets{OpenAIKey: "sk-test"}); err != nil {
		t.Errorf("openai engine with key: %v", err)
	}

	cfg.Engine = "bogus"
	if _, err := NewTranscriber(cfg, config.Secrets{}); err == nil {
		t.Error("unknown engine should fail")
	}
}
