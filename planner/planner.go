// Package planner splits narration text into fixed-length timed segments.
package planner

import (
	"math"
	"strings"

	"shorts-pipeline/types"
)

// MinSegmentDuration is the floor applied to the final segment.
const MinSegmentDuration = 0.1

// countEpsilon keeps exact multiples such as 9/3 from rounding up to an
// extra segment.
const countEpsilon = 1e-9

// Plan partitions text into ceil(total/granularity) segments by proportional
// rune offset. Boundaries can fall mid-word. Every segment but the last lasts
// granularity seconds; the last takes the remainder, floored at
// MinSegmentDuration. Empty text or non-positive durations yield nil.
func Plan(text string, total, granularity float64) []types.Segment {
	text = strings.TrimSpace(text)
	if text == "" || total <= 0 || granularity <= 0 {
		return nil
	}

	n := int(math.Ceil(total/granularity - countEpsilon))
	if n < 1 {
		n = 1
	}

	runes := []rune(text)
	segments := make([]types.Segment, 0, n)
	for i := 0; i < n; i++ {
		start := i * len(runes) / n
		end := (i + 1) * len(runes) / n
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk == "" {
			chunk = text
		}

		dur := granularity
		if i == n-1 {
			dur = math.Max(MinSegmentDuration, total-granularity*float64(n-1))
		}
		segments = append(segments, types.Segment{
			Index:          i,
			Text:           chunk,
			TargetDuration: dur,
		})
	}
	return segments
}

// Total sums the target durations.
func Total(segments []types.Segment) float64 {
	var sum float64
	for _, s := range segments {
		sum += s.TargetDuration
	}
	return sum
}
