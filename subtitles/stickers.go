package subtitles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
	"unicode"

	"shorts-pipeline/ffmpeg"
	"shorts-pipeline/types"
)

// ErrIconNotFound is returned when an icon source has no image for a code.
var ErrIconNotFound = errors.New("icon not found")

// IconSource fetches PNG bytes for an emoji code point such as "1f525".
type IconSource interface {
	Fetch(ctx context.Context, code string) ([]byte, error)
}

// Twemoji serves icons from a Twemoji-style CDN: {base}/{code}.png.
type Twemoji struct {
	BaseURL string
	client  *http.Client
}

// NewTwemoji creates an icon source with a per-request timeout.
func NewTwemoji(baseURL string, timeout time.Duration) *Twemoji {
	return &Twemoji{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *Twemoji) Fetch(ctx context.Context, code string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s.png", t.BaseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; shorts-pipeline/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch icon %s: %w", code, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrIconNotFound, code)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch icon %s: HTTP %d", code, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// StickerLayout bounds where and how long stickers appear.
type StickerLayout struct {
	Width   int
	Height  int
	MaxSec  float64
	Scale   float64
	Keyword map[string]string
}

// MatchStickers assigns at most one sticker per chunk, for the first word of
// the chunk found in the keyword table. Cue.Asset holds the icon code until
// the icon is fetched. Positions fall in the upper part of the frame:
// x in [0.2w, 0.6w], y in [0.1h, 0.3h].
func MatchStickers(chunks []types.CaptionChunk, layout StickerLayout, rng *rand.Rand) []types.StickerCue {
	var cues []types.StickerCue
	for _, c := range chunks {
		length := c.End - c.Start
		if length <= 0 {
			continue
		}
		for _, word := range strings.Fields(c.Text) {
			word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			}))
			code, ok := layout.Keyword[word]
			if !ok {
				continue
			}
			cues = append(cues, types.StickerCue{
				Keyword:  word,
				Asset:    code,
				Start:    c.Start,
				Duration: math.Min(layout.MaxSec, length),
				X:        between(rng, 0.2*float64(layout.Width), 0.6*float64(layout.Width)),
				Y:        between(rng, 0.1*float64(layout.Height), 0.3*float64(layout.Height)),
				Height:   int(math.Round(layout.Scale * float64(layout.Height))),
			})
			break
		}
	}
	return cues
}

func between(rng *rand.Rand, lo, hi float64) int {
	return int(math.Round(lo + rng.Float64()*(hi-lo)))
}

// stickerGraph appends one pulse-and-jitter overlay per cue to the filter
// graph. in is the label of the captioned video; icon inputs start at
// firstInput. It returns the graph parts and the final label.
func stickerGraph(cues []types.StickerCue, in string, firstInput int) ([]string, string) {
	var parts []string
	cur := in
	for i, cue := range cues {
		start := ffmpeg.Seconds(cue.Start)
		end := ffmpeg.Seconds(cue.Start + cue.Duration)
		icon := fmt.Sprintf("ic%d", i)
		next := fmt.Sprintf("st%d", i)
		parts = append(parts,
			fmt.Sprintf("[%d:v]format=rgba,scale=w=-2:h='%d*(1+0.25*sin(8*(t-%s)))':eval=frame[%s]",
				firstInput+i, cue.Height, start, icon),
			fmt.Sprintf("[%s][%s]overlay=x='%d+6*(2*random(1)-1)':y='%d+6*(2*random(2)-1)':enable='between(t,%s,%s)':eof_action=pass[%s]",
				cur, icon, cue.X, cue.Y, start, end, next),
		)
		cur = next
	}
	return parts, cur
}
