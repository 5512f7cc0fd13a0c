package subtitles

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"shorts-pipeline/types"
)

// FormatSRTTime converts seconds to SRT time format HH:MM:SS,mmm.
func FormatSRTTime(seconds float64) string {
	ms := int64(math.Round(math.Max(seconds, 0) * 1000))
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// RenderSRT renders chunks as an SRT document.
func RenderSRT(chunks []types.CaptionChunk) string {
	var sb strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, FormatSRTTime(c.Start), FormatSRTTime(c.End), c.Text)
	}
	return sb.String()
}

// WriteSRT writes chunks to path.
func WriteSRT(path string, chunks []types.CaptionChunk) error {
	return os.WriteFile(path, []byte(RenderSRT(chunks)), 0o644)
}

var srtTimeRE = regexp.MustCompile(`^(\d{2,}):([0-5]\d):([0-5]\d),(\d{3})$`)

// ParseSRTTime is the inverse of FormatSRTTime.
func ParseSRTTime(ts string) (float64, error) {
	m := srtTimeRE.FindStringSubmatch(strings.TrimSpace(ts))
	if m == nil {
		return 0, fmt.Errorf("bad SRT timestamp %q", ts)
	}
	var parts [4]int64
	for i := range parts {
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad SRT timestamp %q: %w", ts, err)
		}
		parts[i] = n
	}
	ms := parts[0]*3_600_000 + parts[1]*60_000 + parts[2]*1000 + parts[3]
	return float64(ms) / 1000, nil
}

// ValidateSRT parses every cue in srtFile. Each cue needs a numeric index, a
// "start --> end" line with end not before start, and at least one text line.
// Cue starts must not go backwards and the file must hold at least one cue.
func ValidateSRT(srtFile string) error {
	f, err := os.Open(srtFile)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		cue       []string
		cues      int
		prevStart float64
	)
	check := func() error {
		if len(cue) == 0 {
			return nil
		}
		defer func() { cue = cue[:0] }()
		cues++
		if len(cue) < 3 {
			return fmt.Errorf("SRT cue %d: want index, timing and text, got %d lines", cues, len(cue))
		}
		if _, err := strconv.Atoi(cue[0]); err != nil {
			return fmt.Errorf("SRT cue %d: bad index %q", cues, cue[0])
		}
		from, to, ok := strings.Cut(cue[1], " --> ")
		if !ok {
			return fmt.Errorf("SRT cue %d: bad timing line %q", cues, cue[1])
		}
		start, err := ParseSRTTime(from)
		if err != nil {
			return fmt.Errorf("SRT cue %d: %w", cues, err)
		}
		end, err := ParseSRTTime(to)
		if err != nil {
			return fmt.Errorf("SRT cue %d: %w", cues, err)
		}
		switch {
		case end < start:
			return fmt.Errorf("SRT cue %d ends at %s before it starts at %s", cues, strings.TrimSpace(to), strings.TrimSpace(from))
		case start < prevStart:
			return fmt.Errorf("SRT cue %d starts at %s, before the previous cue", cues, strings.TrimSpace(from))
		}
		prevStart = start
		return nil
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if err := check(); err != nil {
				return err
			}
			continue
		}
		cue = append(cue, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := check(); err != nil {
		return err
	}
	if cues == 0 {
		return errors.New("SRT file has no cues")
	}
	return nil
}
