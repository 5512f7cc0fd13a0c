package subtitles

import (
	"strings"

	"github.com/samber/lo"

	"shorts-pipeline/types"
)

// Chunk splits every span into groups of at most size words. Each group gets
// an equal share of its span: group i of n starts at
// span.Start + i*(span.End-span.Start)/n. A short trailing group is kept.
func Chunk(spans []types.Span, size int) []types.CaptionChunk {
	if size < 1 {
		size = 1
	}
	var chunks []types.CaptionChunk
	for _, span := range spans {
		words := strings.Fields(span.Text)
		if len(words) == 0 {
			continue
		}
		groups := lo.Chunk(words, size)
		step := (span.End - span.Start) / float64(len(groups))
		for i, g := range groups {
			end := span.Start + float64(i+1)*step
			if i == len(groups)-1 {
				end = span.End
			}
			chunks = append(chunks, types.CaptionChunk{
				Text:  strings.Join(g, " "),
				Start: span.Start + float64(i)*step,
				End:   end,
			})
		}
	}
	return chunks
}
