package visuals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"shorts-pipeline/llm"
)

// KeywordSuggester proposes short stock-footage search phrases for a segment.
type KeywordSuggester interface {
	Suggest(ctx context.Context, text, topic string, k int) ([]string, error)
}

const keywordSystemPrompt = `You pick stock footage search terms for short vertical videos.
Reply with ONLY a JSON array of short search phrases (1-3 words each). No prose.`

// LLMKeywords asks the language model for search phrases.
type LLMKeywords struct {
	llm llm.Completer
}

// NewLLMKeywords creates a KeywordSuggester backed by a Completer.
func NewLLMKeywords(c llm.Completer) *LLMKeywords {
	return &LLMKeywords{llm: c}
}

func (s *LLMKeywords) Suggest(ctx context.Context, text, topic string, k int) ([]string, error) {
	user := fmt.Sprintf("Topic: %s\nNarration: %s\nGive up to %d visual search phrases that fit both the topic and this line.", topic, text, k)
	reply, err := s.llm.Complete(ctx, keywordSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	kws, err := llm.StringArray(reply)
	if err != nil {
		return nil, err
	}
	kws = lo.UniqBy(kws, strings.ToLower)
	if len(kws) > k {
		kws = kws[:k]
	}
	return kws, nil
}

var stopwords = map[string]bool{
	"about": true, "which": true, "there": true, "they": true, "this": true,
	"that": true, "were": true, "have": true, "their": true, "from": true,
	"with": true, "into": true, "your": true, "what": true, "when": true,
	"then": true, "than": true, "these": true, "those": true, "been": true,
	"some": true, "just": true, "like": true, "will": true, "would": true,
	"could": true, "should": true, "nobody": true, "somebody": true,
	"everyone": true, "anyone": true, "because": true, "really": true,
}

// FallbackKeywords derives keywords without the model: the topic first, then
// the longest distinct tokens longer than three letters that are not stopwords.
func FallbackKeywords(text, topic string, k int) []string {
	if k < 1 {
		k = 1
	}
	var out []string
	topic = strings.TrimSpace(topic)
	if topic != "" {
		out = append(out, topic)
	}

	tokens := lo.Filter(strings.FieldsFunc(strings.ToLower(text), isTokenBreak), func(w string, _ int) bool {
		return utf8.RuneCountInString(w) > 3 && !stopwords[w] && !strings.EqualFold(w, topic)
	})
	tokens = lo.Uniq(tokens)
	sort.SliceStable(tokens, func(i, j int) bool {
		return utf8.RuneCountInString(tokens[i]) > utf8.RuneCountInString(tokens[j])
	})

	for _, tok := range tokens {
		if len(out) >= k {
			break
		}
		out = append(out, tok)
	}
	return out
}

func isTokenBreak(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
}

// Queries orders search queries from most to least specific:
// "{topic} {keywords}", then "{keywords}", then "{topic}", where keywords are
// space-joined. Keywords equal to the topic are left out of the join.
func Queries(topic string, keywords []string) []string {
	topic = strings.TrimSpace(topic)
	kws := lo.FilterMap(keywords, func(kw string, _ int) (string, bool) {
		kw = strings.TrimSpace(kw)
		return kw, kw != "" && !strings.EqualFold(kw, topic)
	})
	joined := strings.Join(kws, " ")

	var qs []string
	if topic != "" && joined != "" {
		qs = append(qs, topic+" "+joined)
	}
	qs = append(qs, joined, topic)

	qs = lo.Compact(qs)
	return lo.UniqBy(qs, strings.ToLower)
}
