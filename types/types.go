package types

// NarrationTrack is the synthesized voice-over for one video
type NarrationTrack struct {
	Path        string  `json:"path"`
	DurationSec float64 `json:"duration_sec"`
}

// Segment is one time-bounded slice of narration text used to pick one visual
type Segment struct {
	Index          int     `json:"index"`
	Text           string  `json:"text"`
	TargetDuration float64 `json:"target_duration"`
}

// StockVideo is one candidate returned by the stock media search
type StockVideo struct {
	ID          string  `json:"id"`
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FileType    string  `json:"file_type"`
	DownloadURL string  `json:"download_url"`
}

// VisualAsset is a downloaded clip (or nothing, when resolution failed)
type VisualAsset struct {
	SourcePath     string  `json:"source_path"`
	NativeDuration float64 `json:"native_duration"`
	NativeWidth    int     `json:"native_width"`
	NativeHeight   int     `json:"native_height"`
}

// NormalizedClip is a visual coerced to the timeline's resolution, fps and the
// owning segment's duration
type NormalizedClip struct {
	Index       int     `json:"index"`
	Path        string  `json:"path"`
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	Placeholder bool    `json:"placeholder"`
}

// Timeline is the assembled video bound to the narration audio
type Timeline struct {
	Path        string           `json:"path"`
	DurationSec float64          `json:"duration_sec"`
	Clips       []NormalizedClip `json:"clips"`
}

// Span is one recognized stretch of speech
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// CaptionChunk is a short timed subtitle unit
type CaptionChunk struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// StickerCue is a short animated icon overlay tied to a caption chunk
type StickerCue struct {
	Keyword  string  `json:"keyword"`
	Asset    string  `json:"asset"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Height   int     `json:"height"`
}

// SubtitleResult is the output of the subtitle engine
type SubtitleResult struct {
	VideoPath string         `json:"video_path"`
	SRTPath   string         `json:"srt_path,omitempty"`
	Chunks    []CaptionChunk `json:"chunks"`
	Stickers  []StickerCue   `json:"stickers"`
}

// Script is the narration script for one video
type Script struct {
	Topic     string   `json:"topic"`
	Sentences []string `json:"sentences"`
	Text      string   `json:"text"`
}

// VideoMetadata holds all publishing metadata
type VideoMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
	Visibility  string   `json:"visibility"`
}

// ProcessingState is the remote processing status of an uploaded video
type ProcessingState string

const (
	StatePending  ProcessingState = "PENDING"
	StateFinished ProcessingState = "FINISHED"
	StateError    ProcessingState = "ERROR"
)

// PublishResult records one publishing destination
type PublishResult struct {
	Platform string `json:"platform"`
	RemoteID string `json:"remote_id"`
	URL      string `json:"url,omitempty"`
}

// RunState tracks the full state of one pipeline run
type RunState struct {
	RunID       string          `json:"run_id"`
	Topic       string          `json:"topic"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at"`
	Script      *Script         `json:"script,omitempty"`
	Narration   *NarrationTrack `json:"narration,omitempty"`
	Segments    []Segment       `json:"segments,omitempty"`
	Timeline    *Timeline       `json:"timeline,omitempty"`
	Subtitles   *SubtitleResult `json:"subtitles,omitempty"`
	VideoFile   string          `json:"video_file"`
	Metadata    *VideoMetadata  `json:"metadata,omitempty"`
	Published   []PublishResult `json:"published,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// PCM is raw little-endian audio with its declared format
type PCM struct {
	Data       []byte `json:"-"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// Duration is derived from the declared format only
func (p PCM) Duration() float64 {
	frame := p.SampleRate * p.Channels * p.BitDepth / 8
	if frame <= 0 {
		return 0
	}
	return float64(len(p.Data)) / float64(frame)
}
