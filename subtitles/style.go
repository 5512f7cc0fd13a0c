package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"shorts-pipeline/config"
	"shorts-pipeline/ffmpeg"
)

// ffmpeg converts SRT to ASS with a 384x288 script resolution and libass
// scales that to the frame, so pixel fractions are expressed in script units.
const (
	scriptResX = 384
	scriptResY = 288
)

var namedColours = map[string]string{
	"white":   "FFFFFF",
	"black":   "000000",
	"yellow":  "FFFF00",
	"red":     "FF0000",
	"green":   "00FF00",
	"blue":    "0000FF",
	"cyan":    "00FFFF",
	"magenta": "FF00FF",
}

// ASSColour converts a colour name or #RRGGBB into ASS &HAABBGGRR form.
func ASSColour(c string) (string, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	rgb, ok := namedColours[c]
	if !ok {
		rgb = strings.TrimPrefix(c, "#")
		if _, err := strconv.ParseUint(rgb, 16, 32); err != nil || len(rgb) != 6 {
			return "", fmt.Errorf("unsupported colour %q", c)
		}
	}
	rgb = strings.ToUpper(rgb)
	return "&H00" + rgb[4:6] + rgb[2:4] + rgb[0:2], nil
}

// ForceStyle builds the subtitles filter force_style value: centered, bold,
// stroked, sized relative to frame height and kept within the configured
// fraction of frame width.
func ForceStyle(cfg config.SubtitlesConfig) (string, error) {
	primary, err := ASSColour(cfg.Color)
	if err != nil {
		return "", err
	}
	outline, err := ASSColour(cfg.StrokeColor)
	if err != nil {
		return "", err
	}
	fontSize := math.Round(cfg.FontScale * scriptResY)
	stroke := cfg.StrokeScale * scriptResY
	margin := int(math.Round((1 - cfg.WidthScale) / 2 * scriptResX))

	return fmt.Sprintf(
		"FontName=%s,FontSize=%.0f,Bold=1,PrimaryColour=%s,OutlineColour=%s,BorderStyle=1,Outline=%.2f,Shadow=0,Alignment=5,MarginL=%d,MarginR=%d",
		cfg.Font, fontSize, primary, outline, stroke, margin, margin,
	), nil
}

// SubtitleFilter returns the subtitles filter burning srtPath with style.
func SubtitleFilter(srtPath, style string) string {
	return fmt.Sprintf("subtitles='%s':force_style='%s'", ffmpeg.EscapeFilterPath(srtPath), style)
}
